package vtdisplay

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/transport"
)

type recorder struct {
	mu     sync.Mutex
	writes []string
}

func (r *recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	r.writes = append(r.writes, string(p))
	r.mu.Unlock()
	return len(p), nil
}

func (r *recorder) Read([]byte) (int, error) { return 0, io.EOF }
func (r *recorder) Close() error             { return nil }

func (r *recorder) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func newTestDriver(t *testing.T) (*Driver, *recorder) {
	t.Helper()
	rec := &recorder{}
	d := New(Options{Units: []display.UnitCaps{
		{Rows: 2, Columns: 10, Color: true, Clocks: 1, Transaction: true},
		{Rows: 2, Columns: 10},
	}}, nil)
	d.dial = func(transport.Config) (io.ReadWriteCloser, error) { return rec, nil }
	d.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return d, rec
}

func TestExecute_DisplayData(t *testing.T) {
	d, rec := newTestDriver(t)
	ctx := context.Background()

	if err := d.Execute(ctx, 0b01, display.DisplayData{Row: 0, Column: 8, Attribute: 0x0B, Data: "Stolik"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	lines := d.Lines(0)
	if lines[0] != "        St" || lines[1] != "olik      " {
		t.Fatalf("lines = %q", lines)
	}
	out := rec.Writes()[0]
	if !strings.Contains(out, "\x1b[1;1H") || !strings.Contains(out, "\x1b[0;1;33;40m") {
		t.Fatalf("unexpected output %q", out)
	}
	if got := d.Lines(1); got[0] != strings.Repeat(" ", 10) {
		t.Fatalf("unit 2 touched: %q", got)
	}
}

func TestExecute_DrawBoxAndAttributes(t *testing.T) {
	d, rec := newTestDriver(t)
	ctx := context.Background()

	box := display.DrawBox{Row: 0, Column: 0, Height: 2, Width: 10, Border: display.BorderSingle}
	if err := d.Execute(ctx, 0b10, box); err != nil {
		t.Fatalf("draw box: %v", err)
	}
	lines := d.Lines(1)
	if lines[0] != "┌────────┐" || lines[1] != "└────────┘" {
		t.Fatalf("box = %q", lines)
	}
	if !strings.Contains(rec.Writes()[0], "\x1b[4;1H") {
		t.Fatalf("unit 2 drawn at the wrong row: %q", rec.Writes()[0])
	}

	rev := display.UpdateVideoRegionAttribute{Function: display.UAMReverseOn, Row: 0, Column: 0, Height: 1, Width: 2}
	if err := d.Execute(ctx, 0b10, rev); err != nil {
		t.Fatalf("update attributes: %v", err)
	}
	if d.Attr(1, 0, 1)&reverseBit == 0 || d.Attr(1, 0, 2)&reverseBit != 0 {
		t.Fatalf("reverse not applied to the region only")
	}
}

func TestTransaction_RendersOnce(t *testing.T) {
	d, rec := newTestDriver(t)
	ctx := context.Background()

	err := d.Transaction(ctx, 0b01, func(ctx context.Context) error {
		if err := d.Execute(ctx, 0b01, display.ClearVideo{}); err != nil {
			return err
		}
		return d.Execute(ctx, 0b01, display.DisplayData{Data: "Gotowe"})
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	writes := rec.Writes()
	if len(writes) != 1 || !strings.Contains(writes[0], "Gotowe") {
		t.Fatalf("writes = %q", writes)
	}
}

func TestClock(t *testing.T) {
	d, rec := newTestDriver(t)
	ctx := context.Background()

	start := display.ControlClock{Function: display.ClockStart, ClockID: 1, Hour: 12, Min: 30, Row: 1, Column: 0, Mode: display.Clock24Short}
	if err := d.Execute(ctx, 0b01, start); err != nil {
		t.Fatalf("start clock: %v", err)
	}
	if !strings.Contains(rec.Writes()[0], "12:30") {
		t.Fatalf("clock not rendered: %q", rec.Writes()[0])
	}
	if err := d.Execute(ctx, 0b01, display.ControlClock{Function: display.ClockStop, ClockID: 1}); err != nil {
		t.Fatalf("stop clock: %v", err)
	}
	if strings.Contains(rec.Writes()[1], "12:30") {
		t.Fatalf("stopped clock still rendered")
	}
}

func TestWithDisplayService(t *testing.T) {
	d, _ := newTestDriver(t)
	rod := display.New("rod", d, nil, nil)
	ctx := context.Background()
	if err := rod.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := rod.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}
	defer rod.Close()
	_ = rod.SetDeviceEnabled(true)

	if err := rod.DisplayData(ctx, 0b11, 1, 0, 0x07, "Nr 42"); err != nil {
		t.Fatalf("display data: %v", err)
	}
	for i := 0; i < 2; i++ {
		if got := d.Lines(i)[1]; !bytes.HasPrefix([]byte(got), []byte("Nr 42")) {
			t.Fatalf("unit %d line = %q", i+1, got)
		}
	}
}
