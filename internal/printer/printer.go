// Package printer is the POS printer device service.
//
// Output calls are parsed and validated on the caller's goroutine. A call
// issued while a transaction, sideways section or page is open for its
// station is buffered into that context; otherwise it runs inline when
// AsyncMode is off or is queued for the device worker when it is on.
// Asynchronous results are reported through the event handler.
package printer

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/NowakAdmin/BizantiPOS/internal/contextstack"
	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/queue"
	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

const allStations = uint32(upos.StationJournal | upos.StationReceipt | upos.StationSlip)

// Properties is a snapshot of the printer state.
type Properties struct {
	Name          string
	State         upos.State
	Claimed       bool
	DeviceEnabled bool

	AsyncMode       bool
	FlagWhenIdle    bool
	CharacterSet    int
	MapCharacterSet bool
	OutputID        int
	QueueLength     int

	ErrorStation      upos.Station
	ErrorCode         int
	ErrorCodeExtended int
	ErrorString       string

	PageModeStation   upos.Station
	PageModePrintArea Area
	TopLogo           string
	BottomLogo        string

	Capabilities validate.Matrix
}

// Printer is one POS printer device.
type Printer struct {
	name    string
	logger  *log.Logger
	driver  Driver
	handler upos.EventHandler

	stack contextstack.Stack

	mu         sync.Mutex
	opened     bool
	claimed    bool
	enabled    bool
	queue      *queue.Queue
	caps       validate.Matrix
	props      Properties
	bitmaps    map[bitmapKey]Bitmap
	upsideDown map[upos.Station]bool
	insertion  bool
	removal    bool
}

type bitmapKey struct {
	station upos.Station
	number  int
}

// New creates a closed printer. handler may be nil.
func New(name string, driver Driver, logger *log.Logger, handler upos.EventHandler) *Printer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Printer{
		name:       name,
		logger:     logger,
		driver:     driver,
		handler:    handler,
		bitmaps:    map[bitmapKey]Bitmap{},
		upsideDown: map[upos.Station]bool{},
	}
}

func (p *Printer) Name() string {
	return p.name
}

// Open makes the printer available for Claim.
func (p *Printer) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened {
		return upos.Illegal("%s jest już otwarte", p.name)
	}
	p.opened = true
	return nil
}

// Claim connects the driver and reads its capabilities.
func (p *Printer) Claim(ctx context.Context) error {
	p.mu.Lock()
	if !p.opened {
		p.mu.Unlock()
		return &upos.Error{Kind: upos.KindClosed, Message: p.name + " not open"}
	}
	if p.claimed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.driver.Connect(ctx); err != nil {
		p.logger.Printf("Nie można połączyć z drukarką %s: %v", p.name, err)
		return &upos.Error{Kind: upos.KindOffline, Message: "brak połączenia z " + p.name, Err: err}
	}
	caps := p.driver.Capabilities()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.caps = caps
	p.claimed = true
	p.queue = queue.New(p.logger, p.onDone,
		queue.Concurrent(func(a, b uint32) bool { return caps.Concurrent(a | b) }),
		queue.OnIdle(p.onIdle))
	p.logger.Printf("Drukarka %s gotowa", p.name)
	return nil
}

// SetDeviceEnabled turns output on or off.
func (p *Printer) SetDeviceEnabled(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.claimed {
		return &upos.Error{Kind: upos.KindNotClaimed, Message: p.name + " not claimed"}
	}
	p.enabled = enabled
	return nil
}

// Release drops pending output and disconnects the driver.
func (p *Printer) Release() error {
	p.mu.Lock()
	if !p.claimed {
		p.mu.Unlock()
		return &upos.Error{Kind: upos.KindNotClaimed, Message: p.name + " not claimed"}
	}
	q := p.queue
	p.claimed, p.enabled, p.queue = false, false, nil
	p.insertion, p.removal = false, false
	p.mu.Unlock()

	q.Close()
	p.stack.Reset(allStations)
	return p.driver.Close()
}

// Close releases the printer if needed and closes it.
func (p *Printer) Close() error {
	p.mu.Lock()
	claimed := p.claimed
	p.mu.Unlock()

	var err error
	if claimed {
		err = p.Release()
	}
	p.mu.Lock()
	p.opened = false
	p.mu.Unlock()
	return err
}

// checkEnabled returns the queue of an enabled printer.
func (p *Printer) checkEnabled() (*queue.Queue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case !p.opened:
		return nil, &upos.Error{Kind: upos.KindClosed, Message: p.name + " not open"}
	case !p.claimed:
		return nil, &upos.Error{Kind: upos.KindNotClaimed, Message: p.name + " not claimed"}
	case !p.enabled:
		return nil, &upos.Error{Kind: upos.KindDisabled, Message: p.name + " disabled"}
	}
	return p.queue, nil
}

// Properties returns a snapshot of the printer state.
func (p *Printer) Properties() Properties {
	p.mu.Lock()
	props := p.props
	props.Name = p.name
	props.Claimed = p.claimed
	props.DeviceEnabled = p.enabled
	props.Capabilities = p.caps
	q := p.queue
	opened := p.opened
	p.mu.Unlock()

	switch {
	case !opened:
		props.State = upos.StateClosed
	case q == nil:
		props.State = upos.StateIdle
	default:
		props.QueueLength = q.Len()
		if failed, _ := q.Latched(); failed != nil {
			props.State = upos.StateError
		} else if q.Idle() {
			props.State = upos.StateIdle
		} else {
			props.State = upos.StateBusy
		}
	}
	return props
}

func (p *Printer) SetAsyncMode(async bool) {
	p.mu.Lock()
	p.props.AsyncMode = async
	p.mu.Unlock()
}

// SetFlagWhenIdle asks for a StatusIdle event once the queue is empty. It
// fires at once when the printer is already idle.
func (p *Printer) SetFlagWhenIdle(flag bool) {
	p.mu.Lock()
	p.props.FlagWhenIdle = flag
	q := p.queue
	p.mu.Unlock()

	if flag && q != nil && q.Idle() {
		p.onIdle()
	}
}

func (p *Printer) SetCharacterSet(charset int) {
	p.mu.Lock()
	p.props.CharacterSet = charset
	p.mu.Unlock()
}

func (p *Printer) SetMapCharacterSet(mapping bool) {
	p.mu.Lock()
	p.props.MapCharacterSet = mapping
	p.mu.Unlock()
}

// SetLogo stores the markup printed by ESC|tL and ESC|bL.
func (p *Printer) SetLogo(location int, data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch location {
	case LogoTop:
		p.props.TopLogo = data
	case LogoBottom:
		p.props.BottomLogo = data
	default:
		return upos.Invalid("niepoprawne położenie logo %d", location)
	}
	return nil
}

// parseOptions captures the settings that influence parsing at call time.
func (p *Printer) parseOptions() escseq.Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	return escseq.Options{
		CharacterSet:    p.props.CharacterSet,
		MapCharacterSet: p.props.MapCharacterSet,
		TopLogo:         p.props.TopLogo,
		BottomLogo:      p.props.BottomLogo,
	}
}

// OutputDataParts parses markup with the current settings.
func (p *Printer) OutputDataParts(data string) []escseq.Part {
	return escseq.Parse(data, p.parseOptions())
}

func (p *Printer) pipeline() validate.Pipeline {
	p.mu.Lock()
	caps := p.caps
	p.mu.Unlock()
	return validate.Pipeline{
		Caps: caps,
		Hook: validate.Chain(validate.HookFunc(p.validateBitmap), p.driver),
	}
}

// validateBitmap rejects ESC|#B for bitmaps never registered with SetBitmap.
func (p *Printer) validateBitmap(station upos.Station, part escseq.Part) (validate.Verdict, error) {
	bm, ok := part.(escseq.Bitmap)
	if !ok {
		return validate.Continue, nil
	}
	p.mu.Lock()
	_, registered := p.bitmaps[bitmapKey{station: station, number: bm.Number}]
	p.mu.Unlock()
	if !registered && bm.Number >= 1 && bm.Number <= validate.MaxBitmaps {
		return validate.Continue, upos.Invalid("bitmapa %d nie jest ustawiona dla %s", bm.Number, station)
	}
	return validate.Continue, nil
}

// prepare parses and validates data for station.
func (p *Printer) prepare(station upos.Station, data string) ([]escseq.Part, error) {
	if !station.Single() {
		return nil, upos.Invalid("niepoprawna stacja %s", station)
	}
	parts := p.OutputDataParts(data)
	if err := p.pipeline().Validate(station, parts); err != nil {
		return nil, err
	}
	return parts, nil
}

// ValidateData reports whether data could be printed on station.
func (p *Printer) ValidateData(station upos.Station, data string) error {
	if _, err := p.checkEnabled(); err != nil {
		return err
	}
	_, err := p.prepare(station, data)
	return err
}

// dispatch buffers req into an open context or executes it.
func (p *Printer) dispatch(ctx context.Context, q *queue.Queue, req *request.Request) error {
	buffered, err := p.stack.Buffer(req)
	if err != nil || buffered {
		return err
	}
	return p.execute(ctx, q, req, false)
}

// execute runs req inline or queues it, depending on AsyncMode.
func (p *Printer) execute(ctx context.Context, q *queue.Queue, req *request.Request, immediate bool) error {
	p.mu.Lock()
	async := p.props.AsyncMode
	if async {
		p.props.OutputID++
		req.OutputID = p.props.OutputID
	}
	p.mu.Unlock()

	if !async {
		if err := q.RunSync(ctx, req); err != nil {
			return upos.AsError(err)
		}
		return nil
	}
	if immediate {
		return q.SubmitImmediate(req)
	}
	return q.Submit(req)
}

func (p *Printer) onDone(req *request.Request, err error) {
	switch {
	case err == nil:
		p.fire(upos.OutputCompleteEvent{Device: p.name, OutputID: req.OutputID})
	case errors.Is(err, request.ErrAborted):
		p.logger.Printf("Zadanie %s przerwane", req)
	default:
		uerr := upos.AsError(err)
		station := upos.Station(req.Target())
		p.mu.Lock()
		p.props.ErrorStation = station
		p.props.ErrorCode = upos.Code(uerr)
		p.props.ErrorCodeExtended = uerr.Extended
		p.props.ErrorString = uerr.Error()
		p.mu.Unlock()

		p.fire(upos.ErrorEvent{
			Device:   p.name,
			OutputID: req.OutputID,
			Station:  station,
			Kind:     uerr.Kind,
			Code:     upos.Code(uerr),
			Extended: uerr.Extended,
			Message:  uerr.Error(),
		})
	}
}

func (p *Printer) onIdle() {
	p.mu.Lock()
	flag := p.props.FlagWhenIdle
	p.props.FlagWhenIdle = false
	p.mu.Unlock()
	if flag {
		p.fire(upos.StatusUpdateEvent{Device: p.name, Status: upos.StatusIdle})
	}
}

func (p *Printer) fire(ev upos.Event) {
	if p.handler != nil {
		p.handler(ev)
	}
}

func (p *Printer) clearError() {
	p.mu.Lock()
	p.props.ErrorStation = 0
	p.props.ErrorCode = upos.Success
	p.props.ErrorCodeExtended = 0
	p.props.ErrorString = ""
	p.mu.Unlock()
}

// ClearOutput drops queued and buffered output, aborts the running request and
// clears a latched error.
func (p *Printer) ClearOutput() error {
	q, err := p.checkClaimed()
	if err != nil {
		return err
	}
	removed := q.Clear(allStations)
	p.stack.Reset(allStations)
	p.clearError()
	p.logger.Printf("Wyczyszczono wyjście drukarki %s (%d zadań)", p.name, len(removed))
	return nil
}

// RetryOutput runs the failed request again and resumes the queue.
func (p *Printer) RetryOutput() error {
	q, err := p.checkClaimed()
	if err != nil {
		return err
	}
	if failed, _ := q.Latched(); failed == nil {
		return upos.Illegal("brak nieudanego wydruku do ponowienia")
	}
	p.clearError()
	return q.Retry()
}

func (p *Printer) checkClaimed() (*queue.Queue, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.claimed {
		return nil, &upos.Error{Kind: upos.KindNotClaimed, Message: p.name + " not claimed"}
	}
	return p.queue, nil
}
