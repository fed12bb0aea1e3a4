package escseq

import (
	"fmt"
	"strconv"
	"strings"
)

// Escape renders the cut as markup. Parsing the result yields c again.
func (c Cut) Escape() string {
	sub := ""
	switch {
	case c.Stamp:
		sub = "s"
	case c.Feed:
		sub = "f"
	}
	return Introducer + strconv.Itoa(c.Percent) + sub + "P"
}

// Escape renders the feed as markup.
func (f Feed) Escape() string {
	sub := "l"
	switch {
	case f.Reverse:
		sub = "r"
	case f.Units:
		sub = "u"
	}
	return Introducer + strconv.Itoa(f.Count) + sub + "F"
}

// Escape renders the bitmap reference as markup.
func (b Bitmap) Escape() string {
	return Introducer + strconv.Itoa(b.Number) + "B"
}

// Escape renders the barcode as markup.
func (b Barcode) Escape() string {
	payload := fmt.Sprintf("<s>%d<h>%d<w>%d<a>%d<t>%d<d>%s<e>",
		b.Symbology, b.Height, b.Width, b.Alignment, b.TextPosition, b.Data)
	return Introducer + strconv.Itoa(len(payload)) + "R" + payload
}

// Escape renders the ruled line as markup.
func (r RuledLine) Escape() string {
	payload := fmt.Sprintf("p%sd%dw%ds%dc%d", r.Positions, r.Direction, r.Width, r.Style, r.Color)
	return Introducer + "*" + strconv.Itoa(len(payload)) + "dL" + payload
}

// Describe renders a part for logs and the parse command.
func Describe(part Part) string {
	switch p := part.(type) {
	case PlainText:
		return fmt.Sprintf("text %q", p.Text)
	case ControlChar:
		if p.Char == '\n' {
			return "LF"
		}
		return "CR"
	case Cut:
		return fmt.Sprintf("cut %d%% feed=%t stamp=%t", p.Percent, p.Feed, p.Stamp)
	case RuledLine:
		return fmt.Sprintf("ruled line positions=%q direction=%d width=%d style=%d color=%#x",
			p.Positions, p.Direction, p.Width, p.Style, p.Color)
	case Logo:
		where := "bottom"
		if p.Top {
			where = "top"
		}
		inner := make([]string, 0, len(p.Parts))
		for _, sub := range p.Parts {
			inner = append(inner, Describe(sub))
		}
		return fmt.Sprintf("%s logo [%s]", where, strings.Join(inner, ", "))
	case Stamp:
		return "stamp"
	case Bitmap:
		return fmt.Sprintf("bitmap %d", p.Number)
	case Feed:
		unit := "lines"
		if p.Units {
			unit = "units"
		}
		if p.Reverse {
			return fmt.Sprintf("reverse feed %d %s", p.Count, unit)
		}
		return fmt.Sprintf("feed %d %s", p.Count, unit)
	case Embedded:
		return fmt.Sprintf("embedded %d bytes", len(p.Data))
	case Barcode:
		return fmt.Sprintf("barcode symbology=%d height=%d width=%d alignment=%d text=%d data=%q",
			p.Symbology, p.Height, p.Width, p.Alignment, p.TextPosition, p.Data)
	case FontTypeface:
		return fmt.Sprintf("font %d", p.Index)
	case Alignment:
		return [...]string{"align left", "align center", "align right"}[p.Value]
	case Normalize:
		return "normal"
	case SimpleAttribute:
		names := map[Attribute]string{
			AttrBold:        "bold",
			AttrItalic:      "italic",
			AttrReverse:     "reverse",
			AttrSubscript:   "subscript",
			AttrSuperscript: "superscript",
		}
		return fmt.Sprintf("%s %t", names[p.Kind], p.Activate)
	case Line:
		if p.Underline {
			return fmt.Sprintf("underline %d", p.Thickness)
		}
		return fmt.Sprintf("strike-through %d", p.Thickness)
	case Color:
		if p.RGB {
			return fmt.Sprintf("color rgb #%06x", p.Value)
		}
		return fmt.Sprintf("color %#x", p.Value)
	case Scale:
		switch {
		case p.Horizontal:
			return fmt.Sprintf("scale horizontal %d", p.Value)
		case p.Vertical:
			return fmt.Sprintf("scale vertical %d", p.Value)
		}
		return fmt.Sprintf("scale mode %d", p.Value)
	case Shade:
		return fmt.Sprintf("shade %d%%", p.Percent)
	case Unknown:
		return fmt.Sprintf("unknown %q", p.Raw)
	}
	return fmt.Sprintf("%T", part)
}
