package upos

// Event is delivered to the application through an EventHandler.
type Event interface {
	event()
}

// EventHandler receives device events. Asynchronous events arrive on the device
// worker goroutine; a handler must not call Close on the emitting device.
type EventHandler func(Event)

// OutputCompleteEvent reports a finished asynchronous output request.
type OutputCompleteEvent struct {
	Device   string
	OutputID int
}

// ErrorEvent reports a failed asynchronous request. Station is set by printers,
// Units by displays.
type ErrorEvent struct {
	Device   string
	OutputID int
	Station  Station
	Units    uint32
	Kind     ErrorKind
	Code     int
	Extended int
	Message  string
}

// StatusUpdateEvent carries a UPOS status value.
type StatusUpdateEvent struct {
	Device string
	Status int
	Units  uint32
}

// PropertyChangeEvent is fired when switching the active display unit changes a
// mirrored property.
type PropertyChangeEvent struct {
	Device string
	Unit   uint32
	Name   string
	Old    any
	New    any
}

func (OutputCompleteEvent) event() {}
func (ErrorEvent) event()          {}
func (StatusUpdateEvent) event()   {}
func (PropertyChangeEvent) event() {}

// Status values shared by device categories.
const (
	StatusIdle         = 1001
	StatusPowerOnline  = 2001
	StatusPowerOffline = 2003
)
