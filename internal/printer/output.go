package printer

import (
	"context"
	"math/bits"

	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

func (p *Printer) printJob(method string, station upos.Station, parts []escseq.Part) *request.Request {
	p.mu.Lock()
	job := Job{Station: station, Parts: parts, UpsideDown: p.upsideDown[station]}
	p.mu.Unlock()
	return request.New(method, station.Mask(), func(ctx context.Context, _ *request.Request) error {
		return p.driver.Print(ctx, job)
	})
}

// printParts validates parts built by a convenience method and dispatches them.
func (p *Printer) printParts(ctx context.Context, method string, station upos.Station, parts []escseq.Part) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	if !station.Single() {
		return upos.Invalid("niepoprawna stacja %s", station)
	}
	if err := p.pipeline().Validate(station, parts); err != nil {
		return err
	}
	return p.dispatch(ctx, q, p.printJob(method, station, parts))
}

// PrintNormal prints markup on one station.
func (p *Printer) PrintNormal(ctx context.Context, station upos.Station, data string) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	parts, err := p.prepare(station, data)
	if err != nil {
		return err
	}
	return p.dispatch(ctx, q, p.printJob("PrintNormal", station, parts))
}

// PrintImmediate prints markup ahead of queued output. It ignores open
// transactions and pages.
func (p *Printer) PrintImmediate(ctx context.Context, station upos.Station, data string) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	parts, err := p.prepare(station, data)
	if err != nil {
		return err
	}
	return p.execute(ctx, q, p.printJob("PrintImmediate", station, parts), true)
}

// twoStations splits a two-station value into the stations receiving data1
// and data2. RECEIPT_SLIP and TWO_SLIP_RECEIPT both send data1 to the receipt.
func twoStations(stations upos.Station) (first, second upos.Station, ok bool) {
	switch stations {
	case upos.StationJournalReceipt:
		return upos.StationJournal, upos.StationReceipt, true
	case upos.TwoReceiptJournal:
		return upos.StationReceipt, upos.StationJournal, true
	case upos.StationJournalSlip:
		return upos.StationJournal, upos.StationSlip, true
	case upos.TwoSlipJournal:
		return upos.StationSlip, upos.StationJournal, true
	case upos.StationReceiptSlip, upos.TwoSlipReceipt:
		return upos.StationReceipt, upos.StationSlip, true
	}
	return 0, 0, false
}

// PrintTwoNormal prints on two stations as one indivisible request. An empty
// data2 prints data1 on both.
func (p *Printer) PrintTwoNormal(ctx context.Context, stations upos.Station, data1, data2 string) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	first, second, ok := twoStations(stations)
	if !ok {
		return upos.Invalid("niepoprawna para stacji %s", stations)
	}
	mask := first.Mask() | second.Mask()

	p.mu.Lock()
	concurrent := p.caps.Concurrent(mask)
	p.mu.Unlock()
	if !concurrent {
		return upos.Unsupported("stacje %s nie mogą drukować jednocześnie", stations)
	}
	if p.stack.Any(mask) {
		return upos.Illegal("druk na dwóch stacjach wewnątrz otwartego kontekstu")
	}

	if data2 == "" {
		data2 = data1
	}
	parts1, err := p.prepare(first, data1)
	if err != nil {
		return err
	}
	parts2, err := p.prepare(second, data2)
	if err != nil {
		return err
	}

	p.mu.Lock()
	job1 := Job{Station: first, Parts: parts1, UpsideDown: p.upsideDown[first]}
	job2 := Job{Station: second, Parts: parts2, UpsideDown: p.upsideDown[second]}
	p.mu.Unlock()
	req := request.New("PrintTwoNormal", mask, func(ctx context.Context, _ *request.Request) error {
		return p.driver.PrintTwo(ctx, job1, job2)
	})
	return p.execute(ctx, q, req, false)
}

// CutPaper cuts the receipt. 100 is a full cut.
func (p *Printer) CutPaper(ctx context.Context, percentage int) error {
	return p.printParts(ctx, "CutPaper", upos.StationReceipt, []escseq.Part{escseq.Cut{Percent: percentage}})
}

// PrintBarCode prints one barcode.
func (p *Printer) PrintBarCode(ctx context.Context, station upos.Station, data string, symbology, height, width, alignment, textPosition int) error {
	bc := escseq.Barcode{
		Symbology:    symbology,
		Height:       height,
		Width:        width,
		Alignment:    alignment,
		TextPosition: textPosition,
		Data:         data,
	}
	return p.printParts(ctx, "PrintBarCode", station, []escseq.Part{bc})
}

// PrintRuledLine prints a horizontal or vertical ruled line.
func (p *Printer) PrintRuledLine(ctx context.Context, station upos.Station, positions string, direction, width, style, color int) error {
	line := escseq.RuledLine{
		Positions: positions,
		Direction: direction,
		Width:     width,
		Style:     style,
		Color:     color,
	}
	return p.printParts(ctx, "PrintRuledLine", station, []escseq.Part{line})
}

// MarkFeed feeds a mark-sensed receipt to the requested position.
func (p *Printer) MarkFeed(ctx context.Context, kind int) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	if kind <= 0 || bits.OnesCount(uint(kind)) != 1 || kind > MarkFeedToNextTOF {
		return upos.Invalid("niepoprawny wysuw do znacznika %d", kind)
	}
	p.mu.Lock()
	supported := p.caps.Receipt.MarkFeed&kind != 0
	p.mu.Unlock()
	if !supported {
		return upos.Unsupported("wysuw do znacznika %d nieobsługiwany", kind)
	}
	req := request.New("MarkFeed", upos.StationReceipt.Mask(), func(ctx context.Context, _ *request.Request) error {
		return p.driver.MarkFeed(ctx, kind)
	})
	return p.dispatch(ctx, q, req)
}

// SetBitmap registers a bitmap file for ESC|#B on station. It is sent to the
// driver at once.
func (p *Printer) SetBitmap(ctx context.Context, number int, station upos.Station, fileName string, width, alignment int) error {
	if _, err := p.checkEnabled(); err != nil {
		return err
	}
	if number < 1 || number > validate.MaxBitmaps {
		return upos.Invalid("numer bitmapy %d poza zakresem", number)
	}
	caps, err := p.stationCaps(station)
	if err != nil {
		return err
	}
	if !caps.Bitmap {
		return upos.Unsupported("bitmapy nieobsługiwane na %s", station)
	}
	if width <= 0 || (caps.LineWidth > 0 && width > caps.LineWidth) {
		return upos.Invalid("niepoprawna szerokość bitmapy %d", width)
	}

	bm := Bitmap{Number: number, Station: station, FileName: fileName, Width: width, Alignment: alignment}
	if err := p.driver.SetBitmap(ctx, bm); err != nil {
		return upos.AsError(err)
	}
	p.mu.Lock()
	p.bitmaps[bitmapKey{station: station, number: number}] = bm
	p.mu.Unlock()
	return nil
}

func (p *Printer) stationCaps(station upos.Station) (validate.StationCaps, error) {
	p.mu.Lock()
	m := p.caps
	p.mu.Unlock()
	return m.Station(station)
}
