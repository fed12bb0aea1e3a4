// Package vtdisplay renders remote order display units on an ANSI terminal.
// Units are stacked vertically, each under a one-line header.
package vtdisplay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/display"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/transport"
	"github.com/NowakAdmin/BizantiPOS/internal/unitshadow"
)

// reverseBit marks reversed cells; it sits above the UPOS attribute byte.
const reverseBit = 0x100

type Options struct {
	Transport transport.Config
	Units     []display.UnitCaps
}

type cell struct {
	ch   rune
	attr int
}

type clock struct {
	row, column int
	attr        int
	mode        int
	base        time.Duration
	started     time.Time
	running     bool
}

type unit struct {
	caps   display.UnitCaps
	grid   [][]cell
	cursor [2]int
	shown  bool
	clocks map[int]*clock
}

func newUnit(caps display.UnitCaps) *unit {
	u := &unit{caps: caps, clocks: map[int]*clock{}}
	u.grid = make([][]cell, caps.Rows)
	for r := range u.grid {
		u.grid[r] = make([]cell, caps.Columns)
	}
	u.fill(0, 0, caps.Rows, caps.Columns, 0)
	return u
}

func (u *unit) fill(row, column, height, width, attr int) {
	for r := row; r < row+height && r < len(u.grid); r++ {
		for c := column; c < column+width && c < len(u.grid[r]); c++ {
			u.grid[r][c] = cell{ch: ' ', attr: attr}
		}
	}
}

// Driver implements display.Driver on a terminal.
type Driver struct {
	opts   Options
	logger *log.Logger
	dial   func(transport.Config) (io.ReadWriteCloser, error)
	now    func() time.Time

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	units   []*unit
	holding uint32
}

var _ display.Driver = (*Driver)(nil)

func New(opts Options, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Driver{opts: opts, logger: logger, dial: transport.Open, now: time.Now}
}

func (d *Driver) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := d.dial(d.opts.Transport)
	if err != nil {
		return err
	}
	units := make([]*unit, len(d.opts.Units))
	for i, caps := range d.opts.Units {
		units[i] = newUnit(caps)
	}

	d.mu.Lock()
	d.conn = conn
	d.units = units
	d.mu.Unlock()
	d.logger.Printf("Wyświetlacz terminalowy gotowy (%s, %d jednostek)", d.opts.Transport.Describe(), len(units))
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	conn := d.conn
	d.conn = nil
	d.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (d *Driver) Units() []display.UnitCaps {
	return d.opts.Units
}

func (d *Driver) Execute(ctx context.Context, units uint32, cmd display.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return &display.UnitError{Units: units, Err: fmt.Errorf("wyświetlacz niepołączony")}
	}

	var out bytes.Buffer
	unitshadow.Each(units, func(i int) {
		if i >= len(d.units) {
			return
		}
		u := d.units[i]
		if _, ok := cmd.(display.VideoSound); ok {
			out.WriteByte('\a')
		}
		d.apply(u, cmd)
		if d.holding&unitshadow.Bit(i) == 0 {
			d.render(&out, i)
		}
	})
	return d.flush(units, out.Bytes())
}

// Transaction holds rendering for units until all buffered commands ran.
func (d *Driver) Transaction(ctx context.Context, units uint32, replay func(context.Context) error) error {
	d.mu.Lock()
	d.holding |= units
	d.mu.Unlock()

	err := replay(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.holding &^= units
	if err != nil {
		return err
	}
	var out bytes.Buffer
	unitshadow.Each(units, func(i int) {
		if i < len(d.units) {
			d.render(&out, i)
		}
	})
	return d.flush(units, out.Bytes())
}

func (d *Driver) flush(units uint32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if d.conn == nil {
		return &display.UnitError{Units: units, Err: fmt.Errorf("wyświetlacz niepołączony")}
	}
	if _, err := d.conn.Write(data); err != nil {
		return &display.UnitError{Units: units, Err: err}
	}
	return nil
}

// Lines returns the text of unit i, one string per row.
func (d *Driver) Lines(i int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.units) {
		return nil
	}
	var lines []string
	for _, row := range d.units[i].grid {
		var b strings.Builder
		for _, c := range row {
			b.WriteRune(c.ch)
		}
		lines = append(lines, b.String())
	}
	return lines
}

// Attr returns the attribute of one cell of unit i.
func (d *Driver) Attr(i, row, column int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.units[i].grid[row][column].attr
}

func (d *Driver) apply(u *unit, cmd display.Command) {
	switch c := cmd.(type) {
	case display.DisplayData:
		u.write(c.Row, c.Column, c.Attribute, c.Data)
	case display.ClearVideo:
		u.fill(0, 0, u.caps.Rows, u.caps.Columns, c.Attribute)
		u.cursor = [2]int{}
	case display.ClearVideoRegion:
		u.fill(c.Row, c.Column, c.Height, c.Width, c.Attribute)
	case display.DrawBox:
		u.box(c)
	case display.SetCursor:
		u.cursor = [2]int{c.Row, c.Column}
	case display.ControlCursor:
		u.shown = c.Function != display.CursorOff
	case display.ResetVideo:
		u.fill(0, 0, u.caps.Rows, u.caps.Columns, 0)
		u.cursor, u.shown = [2]int{}, false
		u.clocks = map[int]*clock{}
	case display.ControlClock:
		d.controlClock(u, c)
	case display.UpdateVideoRegionAttribute:
		u.updateAttributes(c)
	case display.VideoSound, display.SelectCharacterSet:
	}
}

func (u *unit) write(row, column, attr int, data string) {
	pos := row*u.caps.Columns + column
	for _, ch := range data {
		if pos >= u.caps.Rows*u.caps.Columns {
			break
		}
		u.grid[pos/u.caps.Columns][pos%u.caps.Columns] = cell{ch: ch, attr: attr}
		pos++
	}
	u.cursor = [2]int{pos / u.caps.Columns, pos % u.caps.Columns}
}

var borders = map[int][6]rune{
	display.BorderSingle: {'─', '│', '┌', '┐', '└', '┘'},
	display.BorderDouble: {'═', '║', '╔', '╗', '╚', '╝'},
	display.BorderSolid:  {'█', '█', '█', '█', '█', '█'},
}

func (u *unit) box(c display.DrawBox) {
	b, ok := borders[c.Border]
	if !ok {
		return
	}
	top, bottom := c.Row, c.Row+c.Height-1
	left, right := c.Column, c.Column+c.Width-1
	set := func(r, col int, ch rune) {
		if r < len(u.grid) && col < len(u.grid[r]) {
			u.grid[r][col] = cell{ch: ch, attr: c.Attribute}
		}
	}
	for col := left; col <= right; col++ {
		set(top, col, b[0])
		set(bottom, col, b[0])
	}
	for r := top; r <= bottom; r++ {
		set(r, left, b[1])
		set(r, right, b[1])
	}
	set(top, left, b[2])
	set(top, right, b[3])
	set(bottom, left, b[4])
	set(bottom, right, b[5])
}

func (u *unit) updateAttributes(c display.UpdateVideoRegionAttribute) {
	for r := c.Row; r < c.Row+c.Height && r < len(u.grid); r++ {
		for col := c.Column; col < c.Column+c.Width && col < len(u.grid[r]); col++ {
			a := &u.grid[r][col].attr
			switch c.Function {
			case display.UAMSet:
				*a = c.Attribute
			case display.UAMIntensityOn:
				*a |= display.AttrIntensity
			case display.UAMIntensityOff:
				*a &^= display.AttrIntensity
			case display.UAMReverseOn:
				*a |= reverseBit
			case display.UAMReverseOff:
				*a &^= reverseBit
			case display.UAMBlinkOn:
				*a |= display.AttrBlink
			case display.UAMBlinkOff:
				*a &^= display.AttrBlink
			}
		}
	}
}

func (d *Driver) controlClock(u *unit, c display.ControlClock) {
	now := d.now()
	switch c.Function {
	case display.ClockStart:
		base := time.Duration(c.Hour)*time.Hour + time.Duration(c.Min)*time.Minute + time.Duration(c.Sec)*time.Second
		u.clocks[c.ClockID] = &clock{row: c.Row, column: c.Column, attr: c.Attribute, mode: c.Mode, base: base, started: now, running: true}
	case display.ClockPause:
		if k, ok := u.clocks[c.ClockID]; ok && k.running {
			k.base, k.running = k.value(now), false
		}
	case display.ClockResume:
		if k, ok := u.clocks[c.ClockID]; ok && !k.running {
			k.started, k.running = now, true
		}
	case display.ClockMove:
		if k, ok := u.clocks[c.ClockID]; ok {
			u.fill(k.row, k.column, 1, len(k.text(now)), 0)
			k.row, k.column = c.Row, c.Column
		}
	case display.ClockStop:
		if k, ok := u.clocks[c.ClockID]; ok {
			u.fill(k.row, k.column, 1, len(k.text(now)), 0)
			delete(u.clocks, c.ClockID)
		}
	}
}

func (k *clock) value(now time.Time) time.Duration {
	if !k.running {
		return k.base
	}
	elapsed := now.Sub(k.started)
	if k.mode == display.ClockCountdown {
		return max(k.base-elapsed, 0)
	}
	return k.base + elapsed
}

func (k *clock) text(now time.Time) string {
	v := k.value(now)
	h, m, s := int(v.Hours())%24, int(v.Minutes())%60, int(v.Seconds())%60
	switch k.mode {
	case display.ClockShort, display.Clock24Short:
		return fmt.Sprintf("%02d:%02d", h, m)
	case display.ClockNormal:
		suffix := "AM"
		if h >= 12 {
			suffix = "PM"
		}
		if h%12 == 0 {
			return fmt.Sprintf("12:%02d:%02d%s", m, s, suffix)
		}
		return fmt.Sprintf("%02d:%02d:%02d%s", h%12, m, s, suffix)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// offset returns the terminal row where unit i starts.
func (d *Driver) offset(i int) int {
	row := 1
	for j := 0; j < i; j++ {
		row += d.units[j].caps.Rows + 1
	}
	return row
}

func sgr(attr int) string {
	codes := []string{"0"}
	if attr&display.AttrIntensity != 0 {
		codes = append(codes, "1")
	}
	if attr&display.AttrBlink != 0 {
		codes = append(codes, "5")
	}
	if attr&reverseBit != 0 {
		codes = append(codes, "7")
	}
	fg, bg := attr&display.AttrForeground, (attr&display.AttrBackground)>>4
	if fg == 0 && bg == 0 {
		fg = 7
	}
	codes = append(codes, fmt.Sprint(30+fg), fmt.Sprint(40+bg))
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

// render draws unit i at its place on the terminal.
func (d *Driver) render(out *bytes.Buffer, i int) {
	u := d.units[i]
	top := d.offset(i)
	fmt.Fprintf(out, "\x1b[%d;1H\x1b[0m\x1b[2K-- %d --", top, i+1)

	grid := make([][]cell, len(u.grid))
	for r := range u.grid {
		grid[r] = append([]cell(nil), u.grid[r]...)
	}
	now := d.now()
	for _, k := range u.clocks {
		for j, ch := range k.text(now) {
			if k.row < len(grid) && k.column+j < len(grid[k.row]) {
				grid[k.row][k.column+j] = cell{ch: ch, attr: k.attr}
			}
		}
	}

	for r, row := range grid {
		fmt.Fprintf(out, "\x1b[%d;1H", top+1+r)
		last := -1
		for _, c := range row {
			if c.attr != last {
				out.WriteString(sgr(c.attr))
				last = c.attr
			}
			out.WriteRune(c.ch)
		}
	}
	out.WriteString("\x1b[0m")
	if u.shown {
		fmt.Fprintf(out, "\x1b[%d;%dH\x1b[?25h", top+1+u.cursor[0], 1+u.cursor[1])
	} else {
		out.WriteString("\x1b[?25l")
	}
}
