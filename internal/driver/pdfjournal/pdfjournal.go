// Package pdfjournal is a virtual printer that lays printed output out as a
// PDF document, one page per cut. It is used for electronic journals and for
// running the service without hardware.
package pdfjournal

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/printer"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

const (
	defaultFontSize  = 9.0
	defaultPageWidth = 80.0
	margin           = 4.0
)

type Options struct {
	Path      string
	Caps      validate.Matrix
	FontSize  float64
	PageWidth float64
}

type segment struct {
	text   string
	style  string
	scaleW int
	scaleH int
}

type line struct {
	segments []segment
	align    escseq.Align
	rule     bool
}

type page struct {
	station upos.Station
	lines   []line
}

// Driver implements printer.Driver by collecting pages in memory. The PDF is
// written on Close.
type Driver struct {
	validate.NopHook

	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	pages   []page
	bitmaps map[int]string
}

var _ printer.Driver = (*Driver)(nil)

func New(opts Options, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.FontSize <= 0 {
		opts.FontSize = defaultFontSize
	}
	if opts.PageWidth <= 0 {
		opts.PageWidth = defaultPageWidth
	}
	return &Driver{opts: opts, logger: logger, bitmaps: map[int]string{}}
}

func (d *Driver) Connect(ctx context.Context) error {
	return ctx.Err()
}

// Close writes the collected pages to Options.Path.
func (d *Driver) Close() error {
	if d.opts.Path == "" {
		return nil
	}
	pdf := d.render()
	if pdf == nil {
		return nil
	}
	if err := pdf.OutputFileAndClose(d.opts.Path); err != nil {
		return fmt.Errorf("nie można zapisać dziennika PDF: %w", err)
	}
	d.logger.Printf("Zapisano dziennik PDF: %s", d.opts.Path)
	return nil
}

// Render writes the collected pages as PDF to w.
func (d *Driver) Render(w io.Writer) error {
	pdf := d.render()
	if pdf == nil {
		return fmt.Errorf("brak wydruków")
	}
	return pdf.Output(w)
}

// Pages returns the number of pages collected so far.
func (d *Driver) Pages() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pages)
}

// Capabilities reports the configured stations without rotation and page
// mode, which the PDF layout cannot draw.
func (d *Driver) Capabilities() validate.Matrix {
	m := d.opts.Caps
	for _, caps := range []*validate.StationCaps{&m.Journal, &m.Receipt, &m.Slip} {
		caps.Left90, caps.Right90, caps.Rotate180 = false, false, false
		caps.PageMode = false
	}
	return m
}

func (d *Driver) Print(ctx context.Context, job printer.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	w := &writer{d: d, station: job.Station, scaleW: 1, scaleH: 1}
	w.parts(job.Parts)
	w.flush(false)
	return nil
}

func (d *Driver) PrintTwo(ctx context.Context, first, second printer.Job) error {
	if err := d.Print(ctx, first); err != nil {
		return err
	}
	return d.Print(ctx, second)
}

func (d *Driver) PrintBlock(ctx context.Context, block printer.Block) error {
	return block.Replay(ctx)
}

func (d *Driver) MarkFeed(ctx context.Context, _ int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.pages); n > 0 && len(d.pages[n-1].lines) > 0 {
		d.pages = append(d.pages, page{station: d.pages[n-1].station})
	}
	return ctx.Err()
}

func (d *Driver) SetBitmap(_ context.Context, bm printer.Bitmap) error {
	d.mu.Lock()
	d.bitmaps[bm.Number] = bm.FileName
	d.mu.Unlock()
	return nil
}

func (d *Driver) BeginInsertion(context.Context, time.Duration) error { return nil }
func (d *Driver) EndInsertion(context.Context) error                 { return nil }
func (d *Driver) BeginRemoval(context.Context, time.Duration) error   { return nil }
func (d *Driver) EndRemoval(context.Context) error                   { return nil }

// current returns the open page for station. The caller holds d.mu.
func (d *Driver) current(station upos.Station) *page {
	for i := len(d.pages) - 1; i >= 0; i-- {
		if d.pages[i].station == station {
			return &d.pages[i]
		}
	}
	d.pages = append(d.pages, page{station: station})
	return &d.pages[len(d.pages)-1]
}

// writer turns parts into lines, keeping the character style between parts.
type writer struct {
	d       *Driver
	station upos.Station
	pending line
	bold    bool
	italic  bool
	under   bool
	scaleW  int
	scaleH  int
	align   escseq.Align
}

func (w *writer) style() string {
	var b strings.Builder
	if w.bold {
		b.WriteByte('B')
	}
	if w.italic {
		b.WriteByte('I')
	}
	if w.under {
		b.WriteByte('U')
	}
	return b.String()
}

func (w *writer) text(s string) {
	if s == "" {
		return
	}
	if len(w.pending.segments) == 0 {
		w.pending.align = w.align
	}
	w.pending.segments = append(w.pending.segments, segment{text: s, style: w.style(), scaleW: w.scaleW, scaleH: w.scaleH})
}

// flush ends the pending line. Empty lines are kept only when force is set.
// A line keeps the alignment in effect when its first text arrived.
func (w *writer) flush(force bool) {
	if len(w.pending.segments) == 0 && !force {
		return
	}
	if len(w.pending.segments) == 0 {
		w.pending.align = w.align
	}
	p := w.d.current(w.station)
	p.lines = append(p.lines, w.pending)
	w.pending = line{}
}

func (w *writer) cut() {
	w.flush(false)
	w.d.pages = append(w.d.pages, page{station: w.station})
}

func (w *writer) parts(parts []escseq.Part) {
	for _, part := range parts {
		switch p := part.(type) {
		case escseq.PlainText:
			w.text(p.Text)
		case escseq.ControlChar:
			if p.Char == '\n' {
				w.flush(true)
			}
		case escseq.Cut:
			w.cut()
		case escseq.RuledLine:
			w.flush(false)
			cur := w.d.current(w.station)
			cur.lines = append(cur.lines, line{rule: true})
		case escseq.Logo:
			w.parts(p.Parts)
		case escseq.Bitmap:
			w.text(fmt.Sprintf("[%s]", w.d.bitmaps[p.Number]))
		case escseq.Feed:
			if !p.Reverse && !p.Units {
				w.flush(false)
				for i := 0; i < p.Count; i++ {
					w.flush(true)
				}
			}
		case escseq.Barcode:
			w.flush(false)
			w.text(fmt.Sprintf("|| %s ||", p.Data))
			w.flush(false)
		case escseq.Alignment:
			w.align = p.Value
		case escseq.Normalize:
			w.bold, w.italic, w.under = false, false, false
			w.scaleW, w.scaleH, w.align = 1, 1, escseq.AlignLeft
		case escseq.SimpleAttribute:
			switch p.Kind {
			case escseq.AttrBold:
				w.bold = p.Activate
			case escseq.AttrItalic:
				w.italic = p.Activate
			}
		case escseq.Line:
			if p.Underline {
				w.under = p.Thickness > 0
			}
		case escseq.Scale:
			switch {
			case p.Horizontal:
				w.scaleW = p.Value
			case p.Vertical:
				w.scaleH = p.Value
			default:
				w.scaleW, w.scaleH = 1, 1
				if p.Value == 2 || p.Value == 4 {
					w.scaleW = 2
				}
				if p.Value == 3 || p.Value == 4 {
					w.scaleH = 2
				}
			}
		}
	}
}

func (d *Driver) render() *gofpdf.Fpdf {
	d.mu.Lock()
	pages := make([]page, 0, len(d.pages))
	for _, p := range d.pages {
		if len(p.lines) > 0 {
			pages = append(pages, p)
		}
	}
	d.mu.Unlock()
	if len(pages) == 0 {
		return nil
	}

	lineHeight := d.opts.FontSize * 0.45
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           gofpdf.SizeType{Wd: d.opts.PageWidth, Ht: 100},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, p := range pages {
		height := 2*margin + lineHeight
		for _, l := range p.lines {
			height += lineHeight * float64(lineScale(l))
		}
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: d.opts.PageWidth, Ht: height})
		pdf.SetFont("Courier", "I", d.opts.FontSize*0.7)
		pdf.CellFormat(0, lineHeight, p.station.String(), "", 1, "R", false, 0, "")

		for _, l := range p.lines {
			h := lineHeight * float64(lineScale(l))
			if l.rule {
				y := pdf.GetY() + h/2
				pdf.Line(margin, y, d.opts.PageWidth-margin, y)
				pdf.Ln(h)
				continue
			}
			d.renderLine(pdf, tr, l, h)
		}
	}
	return pdf
}

func lineScale(l line) int {
	scale := 1
	for _, s := range l.segments {
		scale = max(scale, s.scaleH)
	}
	return scale
}

func (d *Driver) renderLine(pdf *gofpdf.Fpdf, tr func(string) string, l line, h float64) {
	var total float64
	for _, s := range l.segments {
		pdf.SetFont("Courier", s.style, d.opts.FontSize*float64(s.scaleH))
		total += pdf.GetStringWidth(tr(s.text)) * float64(s.scaleW) / float64(s.scaleH)
	}
	usable := d.opts.PageWidth - 2*margin
	switch l.align {
	case escseq.AlignCenter:
		pdf.SetX(margin + (usable-total)/2)
	case escseq.AlignRight:
		pdf.SetX(margin + usable - total)
	}
	for _, s := range l.segments {
		pdf.SetFont("Courier", s.style, d.opts.FontSize*float64(s.scaleH))
		text := tr(s.text)
		width := pdf.GetStringWidth(text) * float64(s.scaleW) / float64(s.scaleH)
		pdf.CellFormat(width, h, text, "", 0, "L", false, 0, "")
	}
	pdf.Ln(h)
}
