package display

import (
	"context"
	"fmt"
)

// UnitCaps describes one display unit.
type UnitCaps struct {
	Rows          int   `json:"rows"`
	Columns       int   `json:"columns"`
	Color         bool  `json:"color"`
	Blink         bool  `json:"blink"`
	Reverse       bool  `json:"reverse"`
	Cursor        bool  `json:"cursor"`
	Sound         bool  `json:"sound"`
	Clocks        int   `json:"clocks"`
	Transaction   bool  `json:"transaction"`
	CharacterSets []int `json:"character_sets"`
}

// UnitError is returned by a driver that failed on some of the units it was
// asked to drive.
type UnitError struct {
	Units uint32
	Err   error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("jednostki %#x: %v", e.Units, e.Err)
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// Driver performs the I/O of a remote order display. Units returns the
// capabilities indexed by unit number; units missing from the device have a
// zero Rows value.
type Driver interface {
	Connect(ctx context.Context) error
	Close() error
	Units() []UnitCaps

	Execute(ctx context.Context, units uint32, cmd Command) error
	// Transaction shows the buffered commands for units at once. replay
	// executes them in call order.
	Transaction(ctx context.Context, units uint32, replay func(ctx context.Context) error) error
}
