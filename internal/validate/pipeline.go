package validate

import (
	"errors"
	"strconv"
	"strings"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// MaxBitmaps is the number of bitmap slots a printer exposes.
const MaxBitmaps = 20

// Verdict tells the pipeline what to do after a hook accepted a part.
type Verdict int

const (
	// Continue runs the generic checks for the part.
	Continue Verdict = iota
	// SkipRemaining treats the part as fully validated.
	SkipRemaining
)

// Hook lets a driver tighten or replace the checks for single parts.
type Hook interface {
	ValidatePart(station upos.Station, part escseq.Part) (Verdict, error)
}

// HookFunc adapts a function to Hook.
type HookFunc func(station upos.Station, part escseq.Part) (Verdict, error)

func (f HookFunc) ValidatePart(station upos.Station, part escseq.Part) (Verdict, error) {
	return f(station, part)
}

// NopHook accepts everything and leaves the generic checks in place.
type NopHook struct{}

func (NopHook) ValidatePart(upos.Station, escseq.Part) (Verdict, error) {
	return Continue, nil
}

// Chain runs hooks in order. The first error or SkipRemaining ends the chain.
func Chain(hooks ...Hook) Hook {
	return HookFunc(func(station upos.Station, part escseq.Part) (Verdict, error) {
		for _, h := range hooks {
			if h == nil {
				continue
			}
			verdict, err := h.ValidatePart(station, part)
			if err != nil || verdict == SkipRemaining {
				return verdict, err
			}
		}
		return Continue, nil
	})
}

// Pipeline validates parsed markup for one station.
type Pipeline struct {
	Caps Matrix
	Hook Hook
}

// Validate checks every part. Missing features fail with an Unsupported error,
// out of range values with an InvalidParameter error.
func (p Pipeline) Validate(station upos.Station, parts []escseq.Part) error {
	caps, err := p.Caps.Station(station)
	if err != nil {
		return err
	}
	for _, part := range parts {
		if err := p.validatePart(station, caps, part); err != nil {
			return err
		}
	}
	return nil
}

func (p Pipeline) validatePart(station upos.Station, caps StationCaps, part escseq.Part) error {
	if p.Hook != nil {
		verdict, err := p.Hook.ValidatePart(station, part)
		if err != nil {
			var uerr *upos.Error
			if errors.As(err, &uerr) {
				return err
			}
			return &upos.Error{Kind: upos.KindInvalidParameter, Message: "odrzucone przez urządzenie", Err: err}
		}
		if verdict == SkipRemaining {
			return nil
		}
	}

	switch v := part.(type) {
	case escseq.PlainText, escseq.ControlChar, escseq.Alignment, escseq.Normalize, escseq.Embedded:
		return nil
	case escseq.Unknown:
		return upos.Unsupported("nieobsługiwana sekwencja sterująca %q", v.Raw)
	case escseq.Logo:
		for _, inner := range v.Parts {
			if err := p.validatePart(station, caps, inner); err != nil {
				return err
			}
		}
		return nil
	case escseq.Barcode:
		return checkBarcode(caps, v)
	case escseq.Scale:
		return checkScale(caps, v)
	case escseq.Color:
		return checkColor(caps, v)
	case escseq.RuledLine:
		return checkRuledLine(caps, v)
	case escseq.Cut:
		return checkCut(caps, v)
	case escseq.Stamp:
		if !caps.Stamp {
			return upos.Unsupported("stempel nieobsługiwany na %s", station)
		}
		return nil
	case escseq.Bitmap:
		if !caps.Bitmap {
			return upos.Unsupported("bitmapy nieobsługiwane")
		}
		if v.Number < 1 || v.Number > MaxBitmaps {
			return upos.Invalid("numer bitmapy %d poza zakresem", v.Number)
		}
		return nil
	case escseq.Feed:
		if v.Reverse && !caps.ReverseFeed {
			return upos.Unsupported("wysuw wsteczny nieobsługiwany")
		}
		return nil
	case escseq.FontTypeface:
		if v.Index > caps.FontTypefaces {
			return upos.Invalid("krój czcionki %d poza zakresem", v.Index)
		}
		return nil
	case escseq.SimpleAttribute:
		return checkAttribute(caps, v)
	case escseq.Line:
		if v.Thickness == 0 {
			return nil
		}
		if v.Underline && !caps.Underline {
			return upos.Unsupported("podkreślenie nieobsługiwane")
		}
		if !v.Underline && !caps.Strikethrough {
			return upos.Unsupported("przekreślenie nieobsługiwane")
		}
		return nil
	case escseq.Shade:
		if !caps.Shading {
			return upos.Unsupported("cieniowanie nieobsługiwane")
		}
		if v.Percent < 0 || v.Percent > 100 {
			return upos.Invalid("cieniowanie %d%% poza zakresem", v.Percent)
		}
		return nil
	}
	return upos.Unsupported("nieobsługiwane dane wydruku %T", part)
}

func checkBarcode(caps StationCaps, b escseq.Barcode) error {
	if !caps.Barcode {
		return upos.Unsupported("kody kreskowe nieobsługiwane")
	}
	switch {
	case b.Symbology < escseq.SymbologyMin:
		return upos.Invalid("niepoprawna symbologia kodu %d", b.Symbology)
	case b.Height <= 0:
		return upos.Invalid("niepoprawna wysokość kodu %d", b.Height)
	case b.Width <= 0 || (caps.LineWidth > 0 && b.Width > caps.LineWidth):
		return upos.Invalid("niepoprawna szerokość kodu %d", b.Width)
	case b.Data == "":
		return upos.Invalid("puste dane kodu kreskowego")
	}
	switch b.Alignment {
	case escseq.BarcodeLeft, escseq.BarcodeCenter, escseq.BarcodeRight:
	default:
		if b.Alignment < 0 || (caps.LineWidth > 0 && b.Alignment+b.Width > caps.LineWidth) {
			return upos.Invalid("niepoprawne wyrównanie kodu %d", b.Alignment)
		}
	}
	switch b.TextPosition {
	case escseq.BarcodeTextNone, escseq.BarcodeTextAbove, escseq.BarcodeTextBelow:
	default:
		return upos.Invalid("niepoprawna pozycja tekstu kodu %d", b.TextPosition)
	}
	return nil
}

func checkScale(caps StationCaps, s escseq.Scale) error {
	switch {
	case s.Horizontal:
		return checkAxis(s.Value, caps.DoubleWide, "poziome")
	case s.Vertical:
		return checkAxis(s.Value, caps.DoubleHigh, "pionowe")
	}
	switch s.Value {
	case 1:
		return nil
	case 2:
		if !caps.DoubleWide {
			return upos.Unsupported("podwójna szerokość nieobsługiwana")
		}
	case 3:
		if !caps.DoubleHigh {
			return upos.Unsupported("podwójna wysokość nieobsługiwana")
		}
	case 4:
		if !caps.DoubleHighDoubleWide {
			return upos.Unsupported("podwójna wysokość i szerokość nieobsługiwana")
		}
	default:
		return upos.Invalid("niepoprawny tryb skalowania %d", s.Value)
	}
	return nil
}

func checkAxis(value int, doubled bool, axis string) error {
	switch {
	case value == 1:
		return nil
	case value < 1:
		return upos.Invalid("niepoprawne skalowanie %s %d", axis, value)
	case value == 2 && doubled:
		return nil
	}
	return upos.Unsupported("skalowanie %s %d nieobsługiwane", axis, value)
}

func checkColor(caps StationCaps, c escseq.Color) error {
	if c.RGB {
		if caps.Color&escseq.ColorFull == 0 {
			return upos.Unsupported("kolory RGB nieobsługiwane")
		}
		if c.Value < 0 || c.Value > 0xffffff {
			return upos.Invalid("niepoprawna wartość RGB %#x", c.Value)
		}
		return nil
	}
	return checkCartridge(caps, c.Value)
}

func checkCartridge(caps StationCaps, value int) error {
	if value <= 0 || value&(value-1) != 0 || value > escseq.ColorCustom6 {
		return upos.Invalid("niepoprawny kolor %#x", value)
	}
	if value == escseq.ColorPrimary {
		return nil
	}
	if caps.Color&value == 0 {
		return upos.Unsupported("kolor %#x nieobsługiwany", value)
	}
	return nil
}

func checkRuledLine(caps StationCaps, r escseq.RuledLine) error {
	if r.Direction != escseq.RuledHorizontal && r.Direction != escseq.RuledVertical {
		return upos.Invalid("niepoprawny kierunek linii %d", r.Direction)
	}
	if caps.RuledLine&r.Direction == 0 {
		return upos.Unsupported("kierunek linii %d nieobsługiwany", r.Direction)
	}
	if r.Width <= 0 {
		return upos.Invalid("niepoprawna grubość linii %d", r.Width)
	}
	if r.Style < escseq.LineSingleSolid || r.Style > escseq.LineChain {
		return upos.Invalid("niepoprawny styl linii %d", r.Style)
	}
	if err := checkCartridge(caps, r.Color); err != nil {
		return err
	}
	return checkPositions(caps.LineWidth, r.Direction, r.Positions)
}

// checkPositions validates "start,end;start,end" for horizontal lines and
// "pos;pos" for vertical lines.
func checkPositions(lineWidth, direction int, positions string) error {
	if positions == "" {
		return upos.Invalid("brak pozycji linii")
	}
	for _, entry := range strings.Split(positions, ";") {
		fields := strings.Split(entry, ",")
		if direction == escseq.RuledVertical && len(fields) != 1 {
			return upos.Invalid("niepoprawna pozycja linii pionowej %q", entry)
		}
		if direction == escseq.RuledHorizontal && len(fields) != 2 {
			return upos.Invalid("niepoprawna pozycja linii poziomej %q", entry)
		}
		prev := -1
		for _, f := range fields {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil || n < 0 || (lineWidth > 0 && n > lineWidth) {
				return upos.Invalid("niepoprawna pozycja linii %q", entry)
			}
			if n < prev {
				return upos.Invalid("pozycje linii %q nie są uporządkowane", entry)
			}
			prev = n
		}
	}
	return nil
}

func checkCut(caps StationCaps, c escseq.Cut) error {
	if !caps.PaperCut {
		return upos.Unsupported("obcinanie papieru nieobsługiwane")
	}
	if c.Percent < 0 || c.Percent > 100 {
		return upos.Invalid("niepoprawny procent cięcia %d", c.Percent)
	}
	if c.Stamp && !caps.Stamp {
		return upos.Unsupported("stempel nieobsługiwany")
	}
	return nil
}

func checkAttribute(caps StationCaps, a escseq.SimpleAttribute) error {
	if !a.Activate {
		return nil
	}
	var ok bool
	switch a.Kind {
	case escseq.AttrBold:
		ok = caps.Bold
	case escseq.AttrItalic:
		ok = caps.Italic
	case escseq.AttrReverse:
		ok = caps.Reverse
	case escseq.AttrSubscript:
		ok = caps.Subscript
	case escseq.AttrSuperscript:
		ok = caps.Superscript
	}
	if !ok {
		return upos.Unsupported("atrybut znaku %d nieobsługiwany", a.Kind)
	}
	return nil
}
