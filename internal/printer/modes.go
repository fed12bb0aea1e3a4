package printer

import (
	"context"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/contextstack"
	"github.com/NowakAdmin/BizantiPOS/internal/queue"
	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// blockRequest builds the composite that collects a context's output and
// hands it to the driver as one block.
func (p *Printer) blockRequest(method string, block Block) *request.Request {
	return request.NewComposite(method, block.Station.Mask(), func(ctx context.Context, r *request.Request) error {
		return p.driver.PrintBlock(ctx, block.WithReplay(r.Replay))
	})
}

// finish queues or runs a composite released by the end of a context. Nothing
// happens when it was folded into an enclosing context.
func (p *Printer) finish(ctx context.Context, q *queue.Queue, req *request.Request) error {
	if req == nil {
		return nil
	}
	return p.execute(ctx, q, req, false)
}

// RotatePrint enters or leaves rotated printing on station. Left90 and Right90
// buffer output until RotateNormal; Rotate180 prints upside down at once.
func (p *Printer) RotatePrint(ctx context.Context, station upos.Station, rotation int) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	caps, err := p.stationCaps(station)
	if err != nil {
		return err
	}

	switch base := rotation &^ (RotateBarcode | RotateBitmap); base {
	case RotateNormal:
		p.mu.Lock()
		p.upsideDown[station] = false
		p.mu.Unlock()
		if !p.stack.IsOpen(contextstack.Sideways, station.Mask()) {
			return nil
		}
		req, err := p.stack.End(contextstack.Sideways, station.Mask())
		if err != nil {
			return err
		}
		return p.finish(ctx, q, req)

	case RotateLeft90, RotateRight90:
		if (base == RotateLeft90 && !caps.Left90) || (base == RotateRight90 && !caps.Right90) {
			return upos.Unsupported("obrót %#x nieobsługiwany na %s", rotation, station)
		}
		block := Block{Kind: contextstack.Sideways, Station: station, Rotation: rotation}
		return p.stack.Begin(contextstack.Sideways, station.Mask(), p.blockRequest("RotatePrint", block))

	case Rotate180:
		if !caps.Rotate180 {
			return upos.Unsupported("druk do góry nogami nieobsługiwany na %s", station)
		}
		if p.stack.IsOpen(contextstack.Sideways, station.Mask()) {
			return upos.Illegal("druk boczny otwarty na %s", station)
		}
		p.mu.Lock()
		p.upsideDown[station] = true
		p.mu.Unlock()
		return nil
	}
	return upos.Invalid("niepoprawny obrót %#x", rotation)
}

// TransactionPrint buffers output for station between TransactionBegin and
// TransactionEnd and prints it as one block.
func (p *Printer) TransactionPrint(ctx context.Context, station upos.Station, control int) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	caps, err := p.stationCaps(station)
	if err != nil {
		return err
	}
	if !caps.Transaction {
		return upos.Unsupported("druk transakcyjny nieobsługiwany na %s", station)
	}

	switch control {
	case TransactionBegin:
		block := Block{Kind: contextstack.Transaction, Station: station}
		return p.stack.Begin(contextstack.Transaction, station.Mask(), p.blockRequest("TransactionPrint", block))
	case TransactionEnd:
		req, err := p.stack.End(contextstack.Transaction, station.Mask())
		if err != nil {
			return err
		}
		return p.finish(ctx, q, req)
	}
	return upos.Invalid("niepoprawna kontrola transakcji %d", control)
}

// pageStation returns the station configured for page mode.
func (p *Printer) pageStation() (upos.Station, Area, error) {
	p.mu.Lock()
	station, area := p.props.PageModeStation, p.props.PageModePrintArea
	p.mu.Unlock()
	if station == 0 {
		return 0, Area{}, upos.Illegal("nie ustawiono stacji trybu strony")
	}
	caps, err := p.stationCaps(station)
	if err != nil {
		return 0, Area{}, err
	}
	if !caps.PageMode {
		return 0, Area{}, upos.Unsupported("tryb strony nieobsługiwany na %s", station)
	}
	return station, area, nil
}

// PageModePrint opens, prints, ends or cancels a page on PageModeStation.
func (p *Printer) PageModePrint(ctx context.Context, control int) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	station, area, err := p.pageStation()
	if err != nil {
		return err
	}
	mask := station.Mask()

	switch control {
	case PageModeBegin:
		block := Block{Kind: contextstack.PageMode, Station: station, Area: area}
		return p.stack.Begin(contextstack.PageMode, mask, p.blockRequest("PageModePrint", block))

	case PageModePrintSave:
		snap, err := p.stack.Snapshot(contextstack.PageMode, mask)
		if err != nil {
			return err
		}
		snap.Seal()
		buffered, err := p.stack.BufferOutside(contextstack.PageMode, mask, snap)
		if err != nil || buffered {
			return err
		}
		return p.execute(ctx, q, snap, false)

	case PageModeNormal:
		req, err := p.stack.End(contextstack.PageMode, mask)
		if err != nil {
			return err
		}
		return p.finish(ctx, q, req)

	case PageModeCancel:
		discarded, err := p.stack.Cancel(contextstack.PageMode, mask)
		if err != nil {
			return err
		}
		p.logger.Printf("Anulowano stronę na %s (%d zadań)", station, len(discarded))
		return nil
	}
	return upos.Invalid("niepoprawna kontrola trybu strony %d", control)
}

// ClearPrintArea drops what the open page has collected so far.
func (p *Printer) ClearPrintArea() error {
	if _, err := p.checkEnabled(); err != nil {
		return err
	}
	station, _, err := p.pageStation()
	if err != nil {
		return err
	}
	return p.stack.Discard(contextstack.PageMode, station.Mask())
}

// SetPageModeStation selects the station used by PageModePrint.
func (p *Printer) SetPageModeStation(station upos.Station) error {
	if !station.Single() {
		return upos.Invalid("niepoprawna stacja %s", station)
	}
	if p.stack.IsOpen(contextstack.PageMode, allStations) {
		return upos.Illegal("tryb strony jest otwarty")
	}
	p.mu.Lock()
	p.props.PageModeStation = station
	p.mu.Unlock()
	return nil
}

// SetPageModePrintArea sets the area used by the next page.
func (p *Printer) SetPageModePrintArea(area Area) error {
	if area.X < 0 || area.Y < 0 || area.Width <= 0 || area.Height <= 0 {
		return upos.Invalid("niepoprawny obszar wydruku %+v", area)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if st := p.props.PageModeStation; st != 0 {
		if caps, err := p.caps.Station(st); err == nil && caps.LineWidth > 0 && area.X+area.Width > caps.LineWidth {
			return upos.Invalid("obszar wydruku szerszy niż %s", st)
		}
	}
	p.props.PageModePrintArea = area
	return nil
}

func timeoutDuration(timeout int) (time.Duration, error) {
	switch {
	case timeout == upos.ForeverTimeout:
		return Forever, nil
	case timeout < 0:
		return 0, upos.Invalid("niepoprawny limit czasu %d", timeout)
	}
	return time.Duration(timeout) * time.Millisecond, nil
}

// slipCall runs a slip handling step synchronously.
func (p *Printer) slipCall(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	q, err := p.checkEnabled()
	if err != nil {
		return err
	}
	if _, err := p.stationCaps(upos.StationSlip); err != nil {
		return err
	}
	req := request.New(method, upos.StationSlip.Mask(), func(ctx context.Context, _ *request.Request) error {
		return fn(ctx)
	})
	if err := q.RunSync(ctx, req); err != nil {
		return upos.AsError(err)
	}
	return nil
}

// BeginInsertion waits up to timeout milliseconds for a slip to be inserted.
func (p *Printer) BeginInsertion(ctx context.Context, timeout int) error {
	d, err := timeoutDuration(timeout)
	if err != nil {
		return err
	}
	if err := p.slipCall(ctx, "BeginInsertion", func(ctx context.Context) error {
		return p.driver.BeginInsertion(ctx, d)
	}); err != nil {
		return err
	}
	p.mu.Lock()
	p.insertion = true
	p.mu.Unlock()
	return nil
}

// EndInsertion finishes slip insertion.
func (p *Printer) EndInsertion(ctx context.Context) error {
	p.mu.Lock()
	active := p.insertion
	p.mu.Unlock()
	if !active {
		return upos.Illegal("tryb wkładania nieaktywny")
	}
	if err := p.slipCall(ctx, "EndInsertion", p.driver.EndInsertion); err != nil {
		return err
	}
	p.mu.Lock()
	p.insertion = false
	p.mu.Unlock()
	return nil
}

// BeginRemoval waits up to timeout milliseconds for the slip to be removed.
func (p *Printer) BeginRemoval(ctx context.Context, timeout int) error {
	d, err := timeoutDuration(timeout)
	if err != nil {
		return err
	}
	if err := p.slipCall(ctx, "BeginRemoval", func(ctx context.Context) error {
		return p.driver.BeginRemoval(ctx, d)
	}); err != nil {
		return err
	}
	p.mu.Lock()
	p.removal = true
	p.mu.Unlock()
	return nil
}

// EndRemoval finishes slip removal.
func (p *Printer) EndRemoval(ctx context.Context) error {
	p.mu.Lock()
	active := p.removal
	p.mu.Unlock()
	if !active {
		return upos.Illegal("tryb wyjmowania nieaktywny")
	}
	if err := p.slipCall(ctx, "EndRemoval", p.driver.EndRemoval); err != nil {
		return err
	}
	p.mu.Lock()
	p.removal = false
	p.mu.Unlock()
	return nil
}
