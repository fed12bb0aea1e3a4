package escpos

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// raster is a registered bitmap ready to send.
type raster struct {
	data      []byte
	alignment int
}

// encoder renders parsed parts for one station. Character attributes and
// scaling live until the end of the job.
type encoder struct {
	buf       bytes.Buffer
	lineWidth int
	bitmaps   map[int]raster
	align     escseq.Align
	scaleW    int
	scaleH    int
	table     int
}

func newEncoder(lineWidth int, bitmaps map[int]raster) *encoder {
	return &encoder{lineWidth: lineWidth, bitmaps: bitmaps, scaleW: 1, scaleH: 1, table: -1}
}

func (e *encoder) write(b ...byte) {
	e.buf.Write(b)
}

func boolByte(on bool) byte {
	if on {
		return 1
	}
	return 0
}

// job renders one print job, selecting the station first and normalizing at
// the end.
func (e *encoder) job(station upos.Station, parts []escseq.Part, upsideDown bool) {
	e.write(esc, 'c', '0', stationSelect(station))
	if upsideDown {
		e.write(esc, '{', 1)
	}
	e.parts(parts)
	e.buf.Write(cmdNormalize)
	if upsideDown {
		e.write(esc, '{', 0)
	}
	e.align, e.scaleW, e.scaleH = escseq.AlignLeft, 1, 1
}

func (e *encoder) parts(parts []escseq.Part) {
	for _, part := range parts {
		e.part(part)
	}
}

func (e *encoder) part(part escseq.Part) {
	switch p := part.(type) {
	case escseq.PlainText:
		e.text(p)
	case escseq.ControlChar:
		e.write(p.Char)
	case escseq.Cut:
		e.cut(p)
	case escseq.RuledLine:
		e.ruledLine(p)
	case escseq.Logo:
		e.parts(p.Parts)
	case escseq.Stamp:
		e.buf.Write(cmdStamp)
	case escseq.Bitmap:
		e.bitmap(p.Number)
	case escseq.Feed:
		e.feed(p)
	case escseq.Embedded:
		e.buf.WriteString(p.Data)
	case escseq.Barcode:
		e.barcode(p)
	case escseq.FontTypeface:
		e.write(esc, 'M', byte(p.Index))
	case escseq.Alignment:
		e.align = p.Value
		e.write(esc, 'a', byte(p.Value))
	case escseq.Normalize:
		e.buf.Write(cmdNormalize)
		e.align, e.scaleW, e.scaleH = escseq.AlignLeft, 1, 1
	case escseq.SimpleAttribute:
		e.attribute(p)
	case escseq.Line:
		if p.Underline {
			e.write(esc, '-', byte(min(p.Thickness, 2)))
		}
	case escseq.Color:
		if !p.RGB {
			e.write(esc, 'r', boolByte(p.Value != escseq.ColorPrimary))
		}
	case escseq.Scale:
		e.scale(p)
	case escseq.Shade, escseq.Unknown:
	}
}

func (e *encoder) text(p escseq.PlainText) {
	if !p.MapCharacterSet {
		e.buf.WriteString(p.Text)
		return
	}
	page, ok := codePages[p.CharacterSet]
	if !ok {
		e.buf.WriteString(p.Text)
		return
	}
	if e.table != int(page.table) {
		e.write(esc, 't', page.table)
		e.table = int(page.table)
	}
	e.buf.Write(page.encode(p.Text))
}

func (e *encoder) cut(c escseq.Cut) {
	if c.Feed || c.Stamp {
		e.write(esc, 'd', feedToCutter)
	}
	if c.Stamp {
		e.buf.Write(cmdStamp)
	}
	switch {
	case c.Percent >= 100:
		e.buf.Write(cmdFullCut)
	case c.Percent > 0:
		e.buf.Write(cmdPartialCut)
	}
}

func (e *encoder) feed(f escseq.Feed) {
	n := byte(min(max(f.Count, 0), 255))
	switch {
	case f.Units && f.Reverse:
		e.write(esc, 'K', n)
	case f.Units:
		e.write(esc, 'J', n)
	case f.Reverse:
		e.write(esc, 'e', n)
	default:
		e.write(esc, 'd', n)
	}
}

func (e *encoder) bitmap(number int) {
	bm, ok := e.bitmaps[number]
	if !ok {
		return
	}
	e.write(esc, 'a', alignByte(bm.alignment))
	e.buf.Write(bm.data)
	e.write(esc, 'a', byte(e.align))
}

func alignByte(alignment int) byte {
	switch alignment {
	case escseq.BarcodeCenter:
		return byte(escseq.AlignCenter)
	case escseq.BarcodeRight:
		return byte(escseq.AlignRight)
	}
	return byte(escseq.AlignLeft)
}

// barcode prints a GS k function B barcode on its own line. The module width
// is derived from the requested width in dots.
func (e *encoder) barcode(b escseq.Barcode) {
	code, ok := symbologies[b.Symbology]
	if !ok {
		return
	}
	data := b.Data
	if b.Symbology == escseq.SymCode128 && !strings.HasPrefix(data, "{") {
		data = "{B" + data
	}

	modules := len(data) * 11
	if modules == 0 {
		modules = 1
	}
	module := min(max(b.Width/modules, 2), 6)

	var hri byte
	switch b.TextPosition {
	case escseq.BarcodeTextAbove:
		hri = 1
	case escseq.BarcodeTextBelow:
		hri = 2
	}

	e.write(esc, 'a', alignByte(b.Alignment))
	e.write(gs, 'h', byte(min(max(b.Height, 1), 255)))
	e.write(gs, 'w', byte(module))
	e.write(gs, 'H', hri)
	e.write(gs, 'k', code, byte(len(data)))
	e.buf.WriteString(data)
	e.write(lf)
	e.write(esc, 'a', byte(e.align))
}

func (e *encoder) attribute(a escseq.SimpleAttribute) {
	on := boolByte(a.Activate)
	switch a.Kind {
	case escseq.AttrBold:
		e.write(esc, 'E', on)
	case escseq.AttrItalic:
		e.write(esc, '4', on)
	case escseq.AttrReverse:
		e.write(gs, 'B', on)
	}
}

func (e *encoder) scale(s escseq.Scale) {
	switch {
	case s.Horizontal:
		e.scaleW = s.Value
	case s.Vertical:
		e.scaleH = s.Value
	default:
		e.scaleW, e.scaleH = 1, 1
		switch s.Value {
		case 2:
			e.scaleW = 2
		case 3:
			e.scaleH = 2
		case 4:
			e.scaleW, e.scaleH = 2, 2
		}
	}
	w, h := min(max(e.scaleW, 1), 8), min(max(e.scaleH, 1), 8)
	e.write(gs, '!', byte((w-1)<<4|(h-1)))
}

// ruledLine draws a horizontal line from "start,end" pairs separated by
// semicolons.
func (e *encoder) ruledLine(r escseq.RuledLine) {
	segments := parseSegments(r.Positions)
	if len(segments) == 0 {
		segments = [][2]int{{0, e.lineWidth - 1}}
	}
	e.buf.Write(ruledRaster(e.lineWidth, r.Width, r.Style, segments))
}

func parseSegments(positions string) [][2]int {
	var out [][2]int
	for _, field := range strings.Split(positions, ";") {
		pair := strings.Split(field, ",")
		if len(pair) != 2 {
			continue
		}
		a, err1 := strconv.Atoi(strings.TrimSpace(pair[0]))
		b, err2 := strconv.Atoi(strings.TrimSpace(pair[1]))
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, [2]int{a, b})
	}
	return out
}
