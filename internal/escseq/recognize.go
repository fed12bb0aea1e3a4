package escseq

import (
	"strconv"
	"strings"
)

// Lowercase subtypes packed base-1000 per character, as scan builds them.
const (
	subNone = 0
	subB    = 'b'
	subC    = 'c'
	subD    = 'd'
	subF    = 'f'
	subH    = 'h'
	subI    = 'i'
	subL    = 'l'
	subR    = 'r'
	subS    = 's'
	subT    = 't'
	subU    = 'u'
	subV    = 'v'
	subRV   = 'r'*1000 + 'v'
	subST   = 's'*1000 + 't'
	subTB   = 't'*1000 + 'b'
	subTP   = 't'*1000 + 'p'
)

type recognizer func(p *parser, seq sequence) (Part, bool)

func (p *parser) recognize(seq sequence) Part {
	if seq.terminator != 0 {
		chain := [...]recognizer{
			recognizeCut,
			recognizeRuledLine,
			recognizeNormalize,
			recognizeLogo,
			recognizeStamp,
			recognizeBitmap,
			recognizeFeed,
			recognizeEmbedded,
			recognizeBarcode,
			recognizeFontTypeface,
			recognizeAlignment,
			recognizeScale,
			recognizeSimpleAttribute,
			recognizeLine,
			recognizeColor,
			recognizeShade,
		}
		for _, r := range chain {
			if part, ok := r(p, seq); ok {
				return part
			}
		}
	}
	return Unknown{Raw: seq.raw}
}

func recognizeCut(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'P' || seq.negated || seq.valueIsLen {
		return nil, false
	}
	cut := Cut{Percent: 100}
	if seq.hasValue {
		cut.Percent = seq.value
	}
	switch seq.subtype {
	case subNone:
	case subF:
		cut.Feed = true
	case subS:
		cut.Feed = true
		cut.Stamp = true
	default:
		return nil, false
	}
	return cut, true
}

func recognizeRuledLine(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'L' || seq.subtype != subD || !seq.valueIsLen {
		return nil, false
	}
	line := RuledLine{Direction: -1, Width: 1, Style: LineSingleSolid, Color: ColorPrimary}
	fields := splitFields(seq.payload, "pdwsc")
	for key, value := range fields {
		if key == 'p' {
			line.Positions = value
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			n = -1
		}
		switch key {
		case 'd':
			line.Direction = n
		case 'w':
			line.Width = n
		case 's':
			line.Style = n
		case 'c':
			line.Color = n
		}
	}
	return line, true
}

// splitFields reads "k<value>k<value>..." where every key is one of keys.
func splitFields(payload, keys string) map[byte]string {
	fields := map[byte]string{}
	for len(payload) > 0 {
		key := payload[0]
		if strings.IndexByte(keys, key) < 0 {
			break
		}
		end := 1
		for end < len(payload) && strings.IndexByte(keys, payload[end]) < 0 {
			end++
		}
		fields[key] = payload[1:end]
		payload = payload[end:]
	}
	return fields
}

func recognizeNormalize(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'N' || seq.subtype != subNone || seq.hasValue || seq.negated {
		return nil, false
	}
	return Normalize{}, true
}

func recognizeLogo(p *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'L' || seq.hasValue || seq.negated || (seq.subtype != subT && seq.subtype != subB) {
		return nil, false
	}
	logo := Logo{Top: seq.subtype == subT}
	text := p.opts.BottomLogo
	if logo.Top {
		text = p.opts.TopLogo
	}
	inner := p.opts
	inner.TopLogo, inner.BottomLogo = "", ""
	logo.Parts = Parse(text, inner)
	return logo, true
}

func recognizeStamp(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'L' || seq.subtype != subS || seq.hasValue || seq.negated {
		return nil, false
	}
	return Stamp{}, true
}

func recognizeBitmap(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'B' || seq.subtype != subNone || !seq.hasValue || seq.negated || seq.valueIsLen {
		return nil, false
	}
	return Bitmap{Number: seq.value}, true
}

func recognizeFeed(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'F' || seq.negated || seq.valueIsLen {
		return nil, false
	}
	feed := Feed{Count: 1}
	if seq.hasValue {
		feed.Count = seq.value
	}
	switch seq.subtype {
	case subL:
	case subU:
		feed.Units = true
	case subR:
		feed.Reverse = true
	default:
		return nil, false
	}
	return feed, true
}

func recognizeEmbedded(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'E' || seq.subtype != subNone || seq.negated {
		return nil, false
	}
	return Embedded{Data: seq.payload}, true
}

func recognizeBarcode(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'R' || seq.subtype != subNone || seq.negated {
		return nil, false
	}
	fields, ok := barcodeFields(seq.payload)
	if !ok {
		return nil, false
	}
	data, hasData := fields['d']
	if _, hasSym := fields['s']; !hasData || !hasSym {
		return nil, false
	}

	bc := Barcode{Alignment: BarcodeLeft, TextPosition: BarcodeTextNone, Data: data}
	numbers := []struct {
		key byte
		dst *int
	}{
		{'s', &bc.Symbology},
		{'h', &bc.Height},
		{'w', &bc.Width},
		{'a', &bc.Alignment},
		{'t', &bc.TextPosition},
	}
	for _, n := range numbers {
		raw, ok := fields[n.key]
		if !ok {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, false
		}
		*n.dst = v
	}
	return bc, true
}

// barcodeFields reads "<k>value" fields up to the closing "<e>". The data field
// runs to the last "<e>" so it may contain '<'.
func barcodeFields(payload string) (map[byte]string, bool) {
	fields := map[byte]string{}
	rest := payload
	for rest != "" {
		if len(rest) < 3 || rest[0] != '<' || rest[2] != '>' {
			return nil, false
		}
		key := rest[1]
		rest = rest[3:]
		switch key {
		case 'e':
			return fields, true
		case 'd':
			end := strings.LastIndex(rest, "<e>")
			if end < 0 {
				end = len(rest)
			}
			fields[key] = rest[:end]
			rest = rest[end:]
		default:
			end := strings.IndexByte(rest, '<')
			if end < 0 {
				end = len(rest)
			}
			fields[key] = rest[:end]
			rest = rest[end:]
		}
	}
	return fields, true
}

func recognizeFontTypeface(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'T' || seq.subtype != subF || !seq.hasValue || seq.negated || seq.valueIsLen {
		return nil, false
	}
	return FontTypeface{Index: seq.value}, true
}

func recognizeAlignment(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'A' || seq.hasValue || seq.negated {
		return nil, false
	}
	switch seq.subtype {
	case subL:
		return Alignment{Value: AlignLeft}, true
	case subC:
		return Alignment{Value: AlignCenter}, true
	case subR:
		return Alignment{Value: AlignRight}, true
	}
	return nil, false
}

func recognizeScale(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'C' || !seq.hasValue || seq.negated || seq.valueIsLen {
		return nil, false
	}
	switch seq.subtype {
	case subNone:
		return Scale{Value: seq.value}, true
	case subH:
		return Scale{Value: seq.value, Horizontal: true}, true
	case subV:
		return Scale{Value: seq.value, Vertical: true}, true
	}
	return nil, false
}

func recognizeSimpleAttribute(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'C' || seq.hasValue || seq.valueIsLen {
		return nil, false
	}
	attrs := map[int]Attribute{
		subB:  AttrBold,
		subI:  AttrItalic,
		subRV: AttrReverse,
		subTB: AttrSubscript,
		subTP: AttrSuperscript,
	}
	kind, ok := attrs[seq.subtype]
	if !ok {
		return nil, false
	}
	return SimpleAttribute{Activate: !seq.negated, Kind: kind}, true
}

func recognizeLine(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'C' || seq.valueIsLen || (seq.subtype != subU && seq.subtype != subST) {
		return nil, false
	}
	line := Line{Thickness: 1, Underline: seq.subtype == subU}
	switch {
	case seq.negated:
		line.Thickness = 0
	case seq.hasValue:
		line.Thickness = seq.value
	}
	return line, true
}

func recognizeColor(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'C' || seq.negated || seq.valueIsLen {
		return nil, false
	}
	switch {
	case seq.subtype == subR && !seq.hasValue:
		return Color{Value: ColorCustom1}, true
	case seq.subtype == subR:
		return Color{Value: seq.value}, true
	case seq.subtype == subF && seq.hasValue:
		return Color{RGB: true, Value: seq.value}, true
	}
	return nil, false
}

func recognizeShade(_ *parser, seq sequence) (Part, bool) {
	if seq.terminator != 'C' || seq.subtype != subS || !seq.hasValue || seq.negated || seq.valueIsLen {
		return nil, false
	}
	return Shade{Percent: seq.value}, true
}
