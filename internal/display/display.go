// Package display is the remote order display device service. A display has
// up to 32 units; output methods take a unit mask and one unit at a time is
// mirrored into the flat property set.
package display

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/NowakAdmin/BizantiPOS/internal/contextstack"
	"github.com/NowakAdmin/BizantiPOS/internal/queue"
	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/unitshadow"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// TransactionDisplay functions.
const (
	TransactionBegin = 11
	TransactionEnd   = 12
)

// UnitProperties is the state kept per unit. The active unit's record is the
// live one.
type UnitProperties struct {
	Rows          int
	Columns       int
	CapColor      bool
	CursorRow     int
	CursorColumn  int
	CursorType    int
	CharacterSet  int
	ClocksRunning int
}

// Properties is a snapshot of the display state.
type Properties struct {
	Name          string
	State         upos.State
	Claimed       bool
	DeviceEnabled bool

	AsyncMode    bool
	FlagWhenIdle bool
	OutputID     int
	QueueLength  int

	DeviceUnits   uint32
	CurrentUnitID uint32
	Unit          UnitProperties

	ErrorUnits        uint32
	ErrorCode         int
	ErrorCodeExtended int
	ErrorString       string
}

// Display is one remote order display device.
type Display struct {
	name    string
	logger  *log.Logger
	driver  Driver
	handler upos.EventHandler

	stack  contextstack.Stack
	shadow *unitshadow.Shadow[UnitProperties]

	mu      sync.Mutex
	opened  bool
	claimed bool
	enabled bool
	queue   *queue.Queue
	units   []UnitCaps
	present uint32
	props   Properties
}

// New creates a closed display. handler may be nil.
func New(name string, driver Driver, logger *log.Logger, handler upos.EventHandler) *Display {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Display{
		name:    name,
		logger:  logger,
		driver:  driver,
		handler: handler,
		shadow:  unitshadow.New(UnitProperties{CursorType: CursorOff}),
	}
}

func (d *Display) Name() string {
	return d.name
}

func (d *Display) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened {
		return upos.Illegal("%s jest już otwarte", d.name)
	}
	d.opened = true
	return nil
}

// unitsIndependent lets output for disjoint unit sets overlap.
func unitsIndependent(a, b uint32) bool { return true }

// Claim connects the driver, reads the unit layout and makes the lowest
// present unit current.
func (d *Display) Claim(ctx context.Context) error {
	d.mu.Lock()
	if !d.opened {
		d.mu.Unlock()
		return &upos.Error{Kind: upos.KindClosed, Message: d.name + " not open"}
	}
	if d.claimed {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	if err := d.driver.Connect(ctx); err != nil {
		d.logger.Printf("Nie można połączyć z wyświetlaczem %s: %v", d.name, err)
		return &upos.Error{Kind: upos.KindOffline, Message: "brak połączenia z " + d.name, Err: err}
	}
	units := d.driver.Units()
	if len(units) > unitshadow.MaxUnits {
		units = units[:unitshadow.MaxUnits]
	}
	var present uint32
	for i, caps := range units {
		if caps.Rows > 0 && caps.Columns > 0 {
			present |= unitshadow.Bit(i)
		}
	}
	if present == 0 {
		_ = d.driver.Close()
		return upos.Hardware(0, "%s nie zgłasza żadnych jednostek", d.name)
	}

	d.shadow.UpdateUnits(present, func(i int, p *UnitProperties) {
		p.Rows, p.Columns, p.CapColor = units[i].Rows, units[i].Columns, units[i].Color
		if len(units[i].CharacterSets) > 0 {
			p.CharacterSet = units[i].CharacterSets[0]
		}
	})
	first, _ := unitshadow.Single(present & -present)
	if _, err := d.shadow.Switch(first); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.units = units
	d.present = present
	d.claimed = true
	d.props.CurrentUnitID = unitshadow.Bit(first)
	d.queue = queue.New(d.logger, d.onDone, queue.Concurrent(unitsIndependent), queue.OnIdle(d.onIdle))
	d.logger.Printf("Wyświetlacz %s gotowy (jednostki %#x)", d.name, present)
	return nil
}

func (d *Display) SetDeviceEnabled(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.claimed {
		return &upos.Error{Kind: upos.KindNotClaimed, Message: d.name + " not claimed"}
	}
	d.enabled = enabled
	return nil
}

// Release drops pending output and disconnects the driver.
func (d *Display) Release() error {
	d.mu.Lock()
	if !d.claimed {
		d.mu.Unlock()
		return &upos.Error{Kind: upos.KindNotClaimed, Message: d.name + " not claimed"}
	}
	q, present := d.queue, d.present
	d.claimed, d.enabled, d.queue = false, false, nil
	d.mu.Unlock()

	q.Close()
	d.stack.Reset(present)
	return d.driver.Close()
}

func (d *Display) Close() error {
	d.mu.Lock()
	claimed := d.claimed
	d.mu.Unlock()

	var err error
	if claimed {
		err = d.Release()
	}
	d.mu.Lock()
	d.opened = false
	d.mu.Unlock()
	return err
}

func (d *Display) checkEnabled() (*queue.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case !d.opened:
		return nil, &upos.Error{Kind: upos.KindClosed, Message: d.name + " not open"}
	case !d.claimed:
		return nil, &upos.Error{Kind: upos.KindNotClaimed, Message: d.name + " not claimed"}
	case !d.enabled:
		return nil, &upos.Error{Kind: upos.KindDisabled, Message: d.name + " disabled"}
	}
	return d.queue, nil
}

func (d *Display) checkClaimed() (*queue.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.claimed {
		return nil, &upos.Error{Kind: upos.KindNotClaimed, Message: d.name + " not claimed"}
	}
	return d.queue, nil
}

// Properties returns a snapshot of the display state with the current unit's
// record.
func (d *Display) Properties() Properties {
	d.mu.Lock()
	props := d.props
	props.Name = d.name
	props.Claimed = d.claimed
	props.DeviceEnabled = d.enabled
	props.DeviceUnits = d.present
	q, opened := d.queue, d.opened
	d.mu.Unlock()

	props.Unit = d.shadow.Live()
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

// UnitProperties returns the record of one unit given as a single-bit mask.
func (d *Display) UnitProperties(unit uint32) (UnitProperties, error) {
	i, ok := unitshadow.Single(unit)
	if !ok {
		return UnitProperties{}, upos.Invalid("niepoprawna jednostka %#x", unit)
	}
	return d.shadow.Unit(i)
}

// SetCurrentUnitID mirrors unit into the flat property set and fires a
// PropertyChangeEvent for every field that changes.
func (d *Display) SetCurrentUnitID(unit uint32) error {
	if _, err := d.checkClaimed(); err != nil {
		return err
	}
	i, ok := unitshadow.Single(unit)
	d.mu.Lock()
	present := d.present
	d.mu.Unlock()
	if !ok || present&unit == 0 {
		return upos.Invalid("brak jednostki %#x", unit)
	}

	changes, err := d.shadow.Switch(i)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.props.CurrentUnitID = unit
	d.mu.Unlock()
	for _, c := range changes {
		d.fire(upos.PropertyChangeEvent{Device: d.name, Unit: unit, Name: c.Name, Old: c.Old, New: c.New})
	}
	return nil
}

func (d *Display) SetAsyncMode(async bool) {
	d.mu.Lock()
	d.props.AsyncMode = async
	d.mu.Unlock()
}

// SetFlagWhenIdle asks for a StatusIdle event once the queue is empty.
func (d *Display) SetFlagWhenIdle(flag bool) {
	d.mu.Lock()
	d.props.FlagWhenIdle = flag
	q := d.queue
	d.mu.Unlock()

	if flag && q != nil && q.Idle() {
		d.onIdle()
	}
}

// checkUnits validates cmd on every unit in units. On failure ErrorUnits holds
// the failing units.
func (d *Display) checkUnits(units uint32, cmd Command) error {
	d.mu.Lock()
	present, caps := d.present, d.units
	d.mu.Unlock()

	if units == 0 {
		return upos.Invalid("%s: brak jednostek", cmd.Method())
	}
	if missing := units &^ present; missing != 0 {
		d.setErrorUnits(missing)
		return upos.Invalid("%s: brak jednostek %#x", cmd.Method(), missing)
	}

	var first error
	failing := unitshadow.Fold(units, func(i int) bool {
		err := cmd.check(caps[i])
		if err != nil && first == nil {
			first = err
		}
		return err != nil
	})
	if failing != 0 {
		d.setErrorUnits(failing)
		return first
	}
	return nil
}

func (d *Display) setErrorUnits(units uint32) {
	d.mu.Lock()
	d.props.ErrorUnits = units
	d.mu.Unlock()
}

// Execute validates cmd for units and runs, queues or buffers it.
func (d *Display) Execute(ctx context.Context, units uint32, cmd Command) error {
	q, err := d.checkEnabled()
	if err != nil {
		return err
	}
	if err := d.checkUnits(units, cmd); err != nil {
		return err
	}
	req := request.New(cmd.Method(), units, func(ctx context.Context, _ *request.Request) error {
		if err := d.driver.Execute(ctx, units, cmd); err != nil {
			return err
		}
		d.shadow.UpdateUnits(units, func(_ int, p *UnitProperties) { cmd.apply(p) })
		return nil
	})

	buffered, err := d.stack.Buffer(req)
	if err != nil || buffered {
		return err
	}
	return d.execute(ctx, q, req)
}

func (d *Display) DisplayData(ctx context.Context, units uint32, row, column, attribute int, data string) error {
	return d.Execute(ctx, units, DisplayData{Row: row, Column: column, Attribute: attribute, Data: data})
}

func (d *Display) ClearVideo(ctx context.Context, units uint32, attribute int) error {
	return d.Execute(ctx, units, ClearVideo{Attribute: attribute})
}

func (d *Display) ClearVideoRegion(ctx context.Context, units uint32, row, column, height, width, attribute int) error {
	return d.Execute(ctx, units, ClearVideoRegion{Row: row, Column: column, Height: height, Width: width, Attribute: attribute})
}

func (d *Display) DrawBox(ctx context.Context, units uint32, row, column, height, width, attribute, border int) error {
	return d.Execute(ctx, units, DrawBox{Row: row, Column: column, Height: height, Width: width, Attribute: attribute, Border: border})
}

func (d *Display) SetCursor(ctx context.Context, units uint32, row, column int) error {
	return d.Execute(ctx, units, SetCursor{Row: row, Column: column})
}

func (d *Display) ControlCursor(ctx context.Context, units uint32, function int) error {
	return d.Execute(ctx, units, ControlCursor{Function: function})
}

func (d *Display) VideoSound(ctx context.Context, units uint32, frequency, duration, cycles, interSoundWait int) error {
	return d.Execute(ctx, units, VideoSound{Frequency: frequency, Duration: duration, Cycles: cycles, InterSoundWait: interSoundWait})
}

func (d *Display) ResetVideo(ctx context.Context, units uint32) error {
	return d.Execute(ctx, units, ResetVideo{})
}

func (d *Display) SelectCharacterSet(ctx context.Context, units uint32, characterSet int) error {
	return d.Execute(ctx, units, SelectCharacterSet{CharacterSet: characterSet})
}

func (d *Display) ControlClock(ctx context.Context, units uint32, clock ControlClock) error {
	return d.Execute(ctx, units, clock)
}

func (d *Display) UpdateVideoRegionAttribute(ctx context.Context, units uint32, function, row, column, height, width, attribute int) error {
	return d.Execute(ctx, units, UpdateVideoRegionAttribute{
		Function:  function,
		Row:       row,
		Column:    column,
		Height:    height,
		Width:     width,
		Attribute: attribute,
	})
}

// TransactionDisplay buffers output for units between TransactionBegin and
// TransactionEnd, then shows it at once.
func (d *Display) TransactionDisplay(ctx context.Context, units uint32, function int) error {
	q, err := d.checkEnabled()
	if err != nil {
		return err
	}
	d.mu.Lock()
	present, caps := d.present, d.units
	d.mu.Unlock()
	if units == 0 || units&^present != 0 {
		return upos.Invalid("niepoprawne jednostki %#x", units)
	}
	if failing := unitshadow.Fold(units, func(i int) bool { return !caps[i].Transaction }); failing != 0 {
		d.setErrorUnits(failing)
		return upos.Unsupported("transakcje nieobsługiwane na jednostkach %#x", failing)
	}

	switch function {
	case TransactionBegin:
		req := request.NewComposite("TransactionDisplay", units, func(ctx context.Context, r *request.Request) error {
			return d.driver.Transaction(ctx, units, r.Replay)
		})
		return d.stack.Begin(contextstack.Transaction, units, req)
	case TransactionEnd:
		req, err := d.stack.End(contextstack.Transaction, units)
		if err != nil || req == nil {
			return err
		}
		return d.execute(ctx, q, req)
	}
	return upos.Invalid("niepoprawna funkcja transakcji %d", function)
}

func (d *Display) execute(ctx context.Context, q *queue.Queue, req *request.Request) error {
	d.mu.Lock()
	async := d.props.AsyncMode
	if async {
		d.props.OutputID++
		req.OutputID = d.props.OutputID
	}
	d.mu.Unlock()

	if !async {
		if err := q.RunSync(ctx, req); err != nil {
			var uerr *UnitError
			if errors.As(err, &uerr) {
				d.setErrorUnits(uerr.Units)
			}
			return upos.AsError(err)
		}
		return nil
	}
	return q.Submit(req)
}

func (d *Display) onDone(req *request.Request, err error) {
	switch {
	case err == nil:
		d.fire(upos.OutputCompleteEvent{Device: d.name, OutputID: req.OutputID})
	case errors.Is(err, request.ErrAborted):
		d.logger.Printf("Zadanie %s przerwane", req)
	default:
		units := req.Target()
		var uerr *UnitError
		if errors.As(err, &uerr) && uerr.Units != 0 {
			units = uerr.Units
		}
		e := upos.AsError(err)
		d.mu.Lock()
		d.props.ErrorUnits = units
		d.props.ErrorCode = upos.Code(e)
		d.props.ErrorCodeExtended = e.Extended
		d.props.ErrorString = e.Error()
		d.mu.Unlock()

		d.fire(upos.ErrorEvent{
			Device:   d.name,
			OutputID: req.OutputID,
			Units:    units,
			Kind:     e.Kind,
			Code:     upos.Code(e),
			Extended: e.Extended,
			Message:  e.Error(),
		})
	}
}

func (d *Display) onIdle() {
	d.mu.Lock()
	flag := d.props.FlagWhenIdle
	d.props.FlagWhenIdle = false
	d.mu.Unlock()
	if flag {
		d.fire(upos.StatusUpdateEvent{Device: d.name, Status: upos.StatusIdle})
	}
}

func (d *Display) fire(ev upos.Event) {
	if d.handler != nil {
		d.handler(ev)
	}
}

func (d *Display) clearError() {
	d.mu.Lock()
	d.props.ErrorUnits = 0
	d.props.ErrorCode = upos.Success
	d.props.ErrorCodeExtended = 0
	d.props.ErrorString = ""
	d.mu.Unlock()
}

// ClearOutput drops queued and buffered output for every unit.
func (d *Display) ClearOutput() error {
	q, err := d.checkClaimed()
	if err != nil {
		return err
	}
	d.mu.Lock()
	present := d.present
	d.mu.Unlock()

	removed := q.Clear(present)
	d.stack.Reset(present)
	d.clearError()
	d.logger.Printf("Wyczyszczono wyjście wyświetlacza %s (%d zadań)", d.name, len(removed))
	return nil
}

// RetryOutput runs the failed request again and resumes the queue.
func (d *Display) RetryOutput() error {
	q, err := d.checkClaimed()
	if err != nil {
		return err
	}
	if failed, _ := q.Latched(); failed == nil {
		return upos.Illegal("brak nieudanego wydruku do ponowienia")
	}
	d.clearError()
	return q.Retry()
}
