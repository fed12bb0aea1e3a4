package display

import (
	"slices"

	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// Video attribute bits.
const (
	AttrForeground = 0x07
	AttrIntensity  = 0x08
	AttrBackground = 0x70
	AttrBlink      = 0x80

	colorBlack = 0
	colorWhite = 7
)

// DrawBox border types.
const (
	BorderSingle = 1
	BorderDouble = 2
	BorderSolid  = 3
)

// ControlCursor functions.
const (
	CursorLine       = 1
	CursorLineBlink  = 2
	CursorBlock      = 3
	CursorBlockBlink = 4
	CursorOff        = 5
)

// ControlClock functions.
const (
	ClockStart  = 1
	ClockPause  = 2
	ClockResume = 3
	ClockMove   = 4
	ClockStop   = 5
)

// ControlClock modes.
const (
	ClockShort     = 1
	ClockNormal    = 2
	Clock24Short   = 3
	Clock24Long    = 4
	ClockCountdown = 5
)

// UpdateVideoRegionAttribute functions.
const (
	UAMSet          = 1
	UAMIntensityOn  = 2
	UAMIntensityOff = 3
	UAMReverseOn    = 4
	UAMReverseOff   = 5
	UAMBlinkOn      = 6
	UAMBlinkOff     = 7
)

// Command is one display operation. The set of commands is closed.
type Command interface {
	Method() string
	check(caps UnitCaps) error
	apply(p *UnitProperties)
}

type DisplayData struct {
	Row, Column int
	Attribute   int
	Data        string
}

type ClearVideo struct {
	Attribute int
}

type ClearVideoRegion struct {
	Row, Column   int
	Height, Width int
	Attribute     int
}

type DrawBox struct {
	Row, Column   int
	Height, Width int
	Attribute     int
	Border        int
}

type SetCursor struct {
	Row, Column int
}

type ControlCursor struct {
	Function int
}

type VideoSound struct {
	Frequency      int
	Duration       int
	Cycles         int
	InterSoundWait int
}

type ResetVideo struct{}

type SelectCharacterSet struct {
	CharacterSet int
}

type ControlClock struct {
	Function    int
	ClockID     int
	Hour, Min   int
	Sec         int
	Row, Column int
	Attribute   int
	Mode        int
}

type UpdateVideoRegionAttribute struct {
	Function      int
	Row, Column   int
	Height, Width int
	Attribute     int
}

func (DisplayData) Method() string                { return "DisplayData" }
func (ClearVideo) Method() string                 { return "ClearVideo" }
func (ClearVideoRegion) Method() string           { return "ClearVideoRegion" }
func (DrawBox) Method() string                    { return "DrawBox" }
func (SetCursor) Method() string                  { return "SetCursor" }
func (ControlCursor) Method() string              { return "ControlCursor" }
func (VideoSound) Method() string                 { return "VideoSound" }
func (ResetVideo) Method() string                 { return "ResetVideo" }
func (SelectCharacterSet) Method() string         { return "SelectCharacterSet" }
func (ControlClock) Method() string               { return "ControlClock" }
func (UpdateVideoRegionAttribute) Method() string { return "UpdateVideoRegionAttribute" }

func checkPosition(caps UnitCaps, row, column int) error {
	if row < 0 || row >= caps.Rows || column < 0 || column >= caps.Columns {
		return upos.Invalid("pozycja %d,%d poza %dx%d", row, column, caps.Rows, caps.Columns)
	}
	return nil
}

func checkRegion(caps UnitCaps, row, column, height, width int) error {
	if err := checkPosition(caps, row, column); err != nil {
		return err
	}
	if height <= 0 || width <= 0 || row+height > caps.Rows || column+width > caps.Columns {
		return upos.Invalid("obszar %dx%d w %d,%d nie mieści się", height, width, row, column)
	}
	return nil
}

func checkAttribute(caps UnitCaps, attr int) error {
	if attr < 0 || attr > 0xff {
		return upos.Invalid("niepoprawny atrybut %#x", attr)
	}
	if attr&AttrBlink != 0 && !caps.Blink {
		return upos.Unsupported("miganie nieobsługiwane")
	}
	if caps.Color {
		return nil
	}
	fg, bg := attr&AttrForeground, (attr&AttrBackground)>>4
	if (fg != colorBlack && fg != colorWhite) || (bg != colorBlack && bg != colorWhite) {
		return upos.Unsupported("kolory nieobsługiwane")
	}
	return nil
}

func (c DisplayData) check(caps UnitCaps) error {
	if err := checkPosition(caps, c.Row, c.Column); err != nil {
		return err
	}
	return checkAttribute(caps, c.Attribute)
}

func (c DisplayData) apply(p *UnitProperties) {
	width := p.Columns
	if width <= 0 {
		return
	}
	end := c.Row*width + c.Column + len([]rune(c.Data))
	if end >= p.Rows*width {
		end = p.Rows*width - 1
	}
	p.CursorRow, p.CursorColumn = end/width, end%width
}

func (c ClearVideo) check(caps UnitCaps) error {
	return checkAttribute(caps, c.Attribute)
}

func (ClearVideo) apply(p *UnitProperties) {
	p.CursorRow, p.CursorColumn = 0, 0
}

func (c ClearVideoRegion) check(caps UnitCaps) error {
	if err := checkRegion(caps, c.Row, c.Column, c.Height, c.Width); err != nil {
		return err
	}
	return checkAttribute(caps, c.Attribute)
}

func (ClearVideoRegion) apply(*UnitProperties) {}

func (c DrawBox) check(caps UnitCaps) error {
	if err := checkRegion(caps, c.Row, c.Column, c.Height, c.Width); err != nil {
		return err
	}
	if c.Border < BorderSingle || c.Border > BorderSolid {
		return upos.Invalid("niepoprawny typ ramki %d", c.Border)
	}
	return checkAttribute(caps, c.Attribute)
}

func (DrawBox) apply(*UnitProperties) {}

func (c SetCursor) check(caps UnitCaps) error {
	return checkPosition(caps, c.Row, c.Column)
}

func (c SetCursor) apply(p *UnitProperties) {
	p.CursorRow, p.CursorColumn = c.Row, c.Column
}

func (c ControlCursor) check(caps UnitCaps) error {
	if c.Function < CursorLine || c.Function > CursorOff {
		return upos.Invalid("niepoprawna funkcja kursora %d", c.Function)
	}
	if !caps.Cursor && c.Function != CursorOff {
		return upos.Unsupported("kursor nieobsługiwany")
	}
	return nil
}

func (c ControlCursor) apply(p *UnitProperties) {
	p.CursorType = c.Function
}

func (c VideoSound) check(caps UnitCaps) error {
	if !caps.Sound {
		return upos.Unsupported("dźwięk nieobsługiwany")
	}
	switch {
	case c.Frequency <= 0, c.Duration <= 0:
		return upos.Invalid("niepoprawny dźwięk %d Hz przez %d ms", c.Frequency, c.Duration)
	case c.Cycles == 0 || c.Cycles < upos.ForeverTimeout:
		return upos.Invalid("niepoprawna liczba powtórzeń dźwięku %d", c.Cycles)
	case c.InterSoundWait < 0:
		return upos.Invalid("niepoprawna przerwa między dźwiękami %d", c.InterSoundWait)
	}
	return nil
}

func (VideoSound) apply(*UnitProperties) {}

func (ResetVideo) check(UnitCaps) error { return nil }

func (ResetVideo) apply(p *UnitProperties) {
	p.CursorRow, p.CursorColumn = 0, 0
	p.CursorType = CursorOff
	p.ClocksRunning = 0
}

func (c SelectCharacterSet) check(caps UnitCaps) error {
	if !slices.Contains(caps.CharacterSets, c.CharacterSet) {
		return upos.Invalid("zestaw znaków %d niedostępny", c.CharacterSet)
	}
	return nil
}

func (c SelectCharacterSet) apply(p *UnitProperties) {
	p.CharacterSet = c.CharacterSet
}

func (c ControlClock) check(caps UnitCaps) error {
	if caps.Clocks == 0 {
		return upos.Unsupported("zegary nieobsługiwane")
	}
	if c.ClockID < 1 || c.ClockID > caps.Clocks {
		return upos.Invalid("niepoprawny zegar %d", c.ClockID)
	}
	switch c.Function {
	case ClockStart:
		if c.Mode < ClockShort || c.Mode > ClockCountdown {
			return upos.Invalid("niepoprawny tryb zegara %d", c.Mode)
		}
		if c.Hour < 0 || c.Hour > 23 || c.Min < 0 || c.Min > 59 || c.Sec < 0 || c.Sec > 59 {
			return upos.Invalid("niepoprawny czas zegara %02d:%02d:%02d", c.Hour, c.Min, c.Sec)
		}
		if err := checkPosition(caps, c.Row, c.Column); err != nil {
			return err
		}
		return checkAttribute(caps, c.Attribute)
	case ClockMove:
		return checkPosition(caps, c.Row, c.Column)
	case ClockPause, ClockResume, ClockStop:
		return nil
	}
	return upos.Invalid("niepoprawna funkcja zegara %d", c.Function)
}

func (c ControlClock) apply(p *UnitProperties) {
	bit := 1 << uint(c.ClockID-1)
	switch c.Function {
	case ClockStart, ClockResume:
		p.ClocksRunning |= bit
	case ClockPause, ClockStop:
		p.ClocksRunning &^= bit
	}
}

func (c UpdateVideoRegionAttribute) check(caps UnitCaps) error {
	if err := checkRegion(caps, c.Row, c.Column, c.Height, c.Width); err != nil {
		return err
	}
	switch c.Function {
	case UAMSet:
		return checkAttribute(caps, c.Attribute)
	case UAMIntensityOn, UAMIntensityOff:
		return nil
	case UAMReverseOn, UAMReverseOff:
		if !caps.Reverse {
			return upos.Unsupported("negatyw nieobsługiwany")
		}
		return nil
	case UAMBlinkOn, UAMBlinkOff:
		if !caps.Blink {
			return upos.Unsupported("miganie nieobsługiwane")
		}
		return nil
	}
	return upos.Invalid("niepoprawna funkcja atrybutu %d", c.Function)
}

func (UpdateVideoRegionAttribute) apply(*UnitProperties) {}
