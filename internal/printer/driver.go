package printer

import (
	"context"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/contextstack"
	"github.com/NowakAdmin/BizantiPOS/internal/escseq"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

// Forever is passed to BeginInsertion and BeginRemoval for an unlimited wait.
const Forever time.Duration = -1

// Rotation values for RotatePrint. Barcode and Bitmap may be or-ed into a
// sideways rotation to rotate only those elements.
const (
	RotateNormal  = 0x0001
	RotateRight90 = 0x0101
	RotateLeft90  = 0x0102
	Rotate180     = 0x0103
	RotateBarcode = 0x1000
	RotateBitmap  = 0x2000
)

// TransactionPrint controls.
const (
	TransactionBegin = 11
	TransactionEnd   = 12
)

// PageModePrint controls.
const (
	PageModeBegin     = 1
	PageModePrintSave = 2
	PageModeNormal    = 3
	PageModeCancel    = 4
)

// MarkFeed kinds.
const (
	MarkFeedToTakeup     = 1
	MarkFeedToCutter     = 2
	MarkFeedToCurrentTOF = 4
	MarkFeedToNextTOF    = 8
)

// Logo locations for SetLogo.
const (
	LogoTop    = 1
	LogoBottom = 2
)

// Job is one piece of validated print data for a station.
type Job struct {
	Station    upos.Station
	Parts      []escseq.Part
	UpsideDown bool
}

// Area is a page mode print area in dots.
type Area struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Block is buffered output released by the end of a transaction, a sideways
// section or a page. The driver sets up the mode, calls Replay to print the
// buffered jobs in order and then finishes the mode.
type Block struct {
	Kind     contextstack.Kind
	Station  upos.Station
	Rotation int
	Area     Area

	replay func(ctx context.Context) error
}

// Replay prints the buffered jobs. It stops early when the block is aborted.
func (b Block) Replay(ctx context.Context) error {
	if b.replay == nil {
		return nil
	}
	return b.replay(ctx)
}

// WithReplay returns a copy of b that prints through fn.
func (b Block) WithReplay(fn func(ctx context.Context) error) Block {
	b.replay = fn
	return b
}

// Bitmap is a registered bitmap that ESC|#B prints.
type Bitmap struct {
	Number    int
	Station   upos.Station
	FileName  string
	Width     int
	Alignment int
}

// Driver performs the hardware I/O of a printer. Methods other than
// Capabilities and ValidatePart are called from one goroutine at a time for
// a given station.
type Driver interface {
	validate.Hook

	Connect(ctx context.Context) error
	Close() error
	Capabilities() validate.Matrix

	Print(ctx context.Context, job Job) error
	PrintTwo(ctx context.Context, first, second Job) error
	PrintBlock(ctx context.Context, block Block) error
	MarkFeed(ctx context.Context, kind int) error
	SetBitmap(ctx context.Context, bm Bitmap) error

	BeginInsertion(ctx context.Context, timeout time.Duration) error
	EndInsertion(ctx context.Context) error
	BeginRemoval(ctx context.Context, timeout time.Duration) error
	EndRemoval(ctx context.Context) error
}
