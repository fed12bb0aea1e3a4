// Package escpos drives ESC/POS receipt printers over a transport.
package escpos

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/contextstack"
	"github.com/NowakAdmin/BizantiPOS/internal/driver/transport"
	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/printer"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

// Options configures a Driver.
type Options struct {
	Transport transport.Config
	Caps      validate.Matrix
	// CheckStatus asks the printer for cover and paper state before each job.
	CheckStatus bool
}

// Driver implements printer.Driver for ESC/POS printers.
type Driver struct {
	opts   Options
	logger *log.Logger
	dial   func(transport.Config) (io.ReadWriteCloser, error)

	mu      sync.Mutex
	conn    io.ReadWriteCloser
	bitmaps map[upos.Station]map[int]raster
	poll    time.Duration
}

// captureKey carries the buffer of the block being replayed. Only the block's
// own children see it, so output of other stations still goes to the wire.
type captureKey struct{}

func withCapture(ctx context.Context, buf *bytes.Buffer) context.Context {
	return context.WithValue(ctx, captureKey{}, buf)
}

var _ printer.Driver = (*Driver)(nil)

func New(opts Options, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Driver{
		opts:    opts,
		logger:  logger,
		dial:    transport.Open,
		bitmaps: map[upos.Station]map[int]raster{},
		poll:    200 * time.Millisecond,
	}
}

func (d *Driver) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := d.dial(d.opts.Transport)
	if err != nil {
		return err
	}
	if _, err := conn.Write(cmdInit); err != nil {
		conn.Close()
		return err
	}

	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()
	d.logger.Printf("Połączono z drukarką ESC/POS (%s)", d.opts.Transport.Describe())
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

func (d *Driver) Capabilities() validate.Matrix {
	return d.opts.Caps
}

// ValidatePart rejects what the command set cannot express even when the
// capability flags allow it.
func (d *Driver) ValidatePart(_ upos.Station, part escseq.Part) (validate.Verdict, error) {
	switch p := part.(type) {
	case escseq.Barcode:
		if _, ok := symbologies[p.Symbology]; !ok {
			return validate.Continue, upos.Unsupported("symbologia %d nieobsługiwana", p.Symbology)
		}
		if len(p.Data) > 255 {
			return validate.Continue, upos.Invalid("zbyt długie dane kodu kreskowego")
		}
	case escseq.RuledLine:
		if p.Direction == escseq.RuledVertical {
			return validate.Continue, upos.Unsupported("pionowe linie nieobsługiwane")
		}
	case escseq.Line:
		if !p.Underline && p.Thickness > 0 {
			return validate.Continue, upos.Unsupported("przekreślenie nieobsługiwane")
		}
	case escseq.Color:
		if p.RGB {
			return validate.Continue, upos.Unsupported("kolor RGB nieobsługiwany")
		}
	case escseq.SimpleAttribute:
		if p.Activate && (p.Kind == escseq.AttrSubscript || p.Kind == escseq.AttrSuperscript) {
			return validate.Continue, upos.Unsupported("indeks dolny i górny nieobsługiwane")
		}
	case escseq.Embedded:
		return validate.SkipRemaining, nil
	}
	return validate.Continue, nil
}

func (d *Driver) lineWidth(station upos.Station) int {
	caps, err := d.opts.Caps.Station(station)
	if err != nil || caps.LineWidth <= 0 {
		return 512
	}
	return caps.LineWidth
}

func (d *Driver) encodeJob(job printer.Job) []byte {
	d.mu.Lock()
	bitmaps := d.bitmaps[job.Station]
	d.mu.Unlock()

	enc := newEncoder(d.lineWidth(job.Station), bitmaps)
	enc.job(job.Station, job.Parts, job.UpsideDown)
	return enc.buf.Bytes()
}

// send writes data to the printer, or to the block buffer carried by ctx.
func (d *Driver) send(ctx context.Context, data []byte) error {
	if buf, ok := ctx.Value(captureKey{}).(*bytes.Buffer); ok {
		buf.Write(data)
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return &upos.Error{Kind: upos.KindOffline, Message: "drukarka nie jest połączona"}
	}
	if _, err := d.conn.Write(data); err != nil {
		return &upos.Error{Kind: upos.KindOffline, Message: "błąd zapisu do drukarki", Err: err}
	}
	return nil
}

func (d *Driver) Print(ctx context.Context, job printer.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.checkStatus(job.Station); err != nil {
		return err
	}
	return d.send(ctx, d.encodeJob(job))
}

func (d *Driver) PrintTwo(ctx context.Context, first, second printer.Job) error {
	if err := d.checkStatus(first.Station); err != nil {
		return err
	}
	if err := d.checkStatus(second.Station); err != nil {
		return err
	}
	data := append(d.encodeJob(first), d.encodeJob(second)...)
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.send(ctx, data)
}

// PrintBlock renders the block into one buffer and sends it in a single write
// so a failure cannot leave half a transaction on paper.
func (d *Driver) PrintBlock(ctx context.Context, block printer.Block) error {
	if err := d.checkStatus(block.Station); err != nil {
		return err
	}

	buf := &bytes.Buffer{}
	buf.Write(blockPrologue(block))
	if err := block.Replay(withCapture(ctx, buf)); err != nil {
		return err
	}
	buf.Write(blockEpilogue(block))
	return d.send(ctx, buf.Bytes())
}

func blockPrologue(block printer.Block) []byte {
	switch block.Kind {
	case contextstack.PageMode:
		a := block.Area
		return append(append([]byte{}, cmdPageMode...),
			esc, 'W',
			byte(a.X), byte(a.X>>8), byte(a.Y), byte(a.Y>>8),
			byte(a.Width), byte(a.Width>>8), byte(a.Height), byte(a.Height>>8))
	case contextstack.Sideways:
		direction := byte(3)
		if block.Rotation&^(printer.RotateBarcode|printer.RotateBitmap) == printer.RotateLeft90 {
			direction = 1
		}
		return append(append([]byte{}, cmdPageMode...), esc, 'T', direction)
	}
	return nil
}

func blockEpilogue(block printer.Block) []byte {
	switch block.Kind {
	case contextstack.PageMode, contextstack.Sideways:
		return cmdPagePrint
	}
	return nil
}

func (d *Driver) MarkFeed(ctx context.Context, kind int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if kind == printer.MarkFeedToCutter {
		return d.send(ctx, []byte{esc, 'd', feedToCutter})
	}
	return d.send(ctx, cmdMarkFeed)
}

// SetBitmap loads and rasterizes the image at bm.Width dots.
func (d *Driver) SetBitmap(ctx context.Context, bm printer.Bitmap) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	img, err := loadImage(bm.FileName)
	if err != nil {
		return upos.Invalid("%v", err)
	}
	data := rasterImage(resizeToWidth(img, bm.Width))

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bitmaps[bm.Station] == nil {
		d.bitmaps[bm.Station] = map[int]raster{}
	}
	d.bitmaps[bm.Station][bm.Number] = raster{data: data, alignment: bm.Alignment}
	return nil
}

// query sends a real-time status request. ok is false when the transport
// cannot answer.
func (d *Driver) query(request []byte) (status byte, ok bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return 0, false, &upos.Error{Kind: upos.KindOffline, Message: "drukarka nie jest połączona"}
	}
	resp, err := transport.Query(d.conn, request, 1)
	if err != nil {
		if errors.Is(err, transport.ErrNoResponse) {
			return 0, false, nil
		}
		var nerr interface{ Timeout() bool }
		if errors.As(err, &nerr) && nerr.Timeout() {
			return 0, false, nil
		}
		return 0, false, &upos.Error{Kind: upos.KindOffline, Message: "błąd odczytu statusu drukarki", Err: err}
	}
	return resp[0], true, nil
}

// checkStatus maps cover and paper sensors to hardware errors.
func (d *Driver) checkStatus(station upos.Station) error {
	if !d.opts.CheckStatus {
		return nil
	}
	offline, ok, err := d.query(statusOffline)
	if err != nil || !ok {
		return err
	}
	if offline&offlineCoverOpen != 0 {
		return upos.Hardware(upos.ExtCoverOpen, "otwarta pokrywa")
	}
	paper, ok, err := d.query(statusPaper)
	if err != nil || !ok {
		return err
	}
	if paper&paperEnd == paperEnd {
		switch station {
		case upos.StationJournal:
			return upos.Hardware(upos.ExtJrnEmpty, "brak papieru w dzienniku")
		case upos.StationSlip:
			return upos.Hardware(upos.ExtSlpEmpty, "brak papieru w podajniku dokumentów")
		}
		return upos.Hardware(upos.ExtRecEmpty, "brak papieru paragonowego")
	}
	return nil
}

// waitSlip polls the slip sensor until a slip is present (or gone) or the
// timeout passes. Transports without a status channel succeed at once.
func (d *Driver) waitSlip(ctx context.Context, timeout time.Duration, present bool) error {
	if timeout != printer.Forever {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()

	for {
		status, ok, err := d.query(statusSlip)
		if err != nil {
			return err
		}
		if !ok || (status&slipWaiting == 0) == present {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return &upos.Error{Kind: upos.KindTimeout, Message: "przekroczono czas oczekiwania na dokument"}
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Driver) BeginInsertion(ctx context.Context, timeout time.Duration) error {
	if err := d.send(ctx, []byte{esc, 'c', '0', stationSelect(upos.StationSlip)}); err != nil {
		return err
	}
	return d.waitSlip(ctx, timeout, true)
}

func (d *Driver) EndInsertion(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	status, ok, err := d.query(statusSlip)
	if err != nil {
		return err
	}
	if ok && status&slipWaiting != 0 {
		return upos.Hardware(upos.ExtSlpEmpty, "nie włożono dokumentu")
	}
	return nil
}

func (d *Driver) BeginRemoval(ctx context.Context, timeout time.Duration) error {
	if err := d.send(ctx, cmdSlipEject); err != nil {
		return err
	}
	return d.waitSlip(ctx, timeout, false)
}

func (d *Driver) EndRemoval(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.send(ctx, []byte{esc, 'c', '0', stationSelect(upos.StationReceipt)})
}
