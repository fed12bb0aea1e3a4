// Package request describes one device operation as it travels through
// contexts and the output queue.
package request

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// ErrAborted is returned by a request stopped through Abort or a clear.
var ErrAborted = errors.New("żądanie przerwane")

// State is the lifecycle position of a request.
type State int32

const (
	StateCreated State = iota
	StateBuffered
	StateQueued
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBuffered:
		return "buffered"
	case StateQueued:
		return "queued"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ExecFunc performs the device I/O of a request. Long running functions should
// watch ctx, which is cancelled when the request is aborted.
type ExecFunc func(ctx context.Context, r *Request) error

// Request is one device operation. Its identity and payload are fixed at
// construction; only state and abort bookkeeping change afterwards.
type Request struct {
	ID        uuid.UUID
	Method    string
	OutputID  int
	Immediate bool

	target    uint32
	exec      ExecFunc
	composite bool

	mu       sync.Mutex
	children []*Request
	closed   bool
	cancel   context.CancelFunc

	state   atomic.Int32
	aborted atomic.Bool
}

// New builds a primitive request for the stations or units in target.
func New(method string, target uint32, exec ExecFunc) *Request {
	return &Request{
		ID:     uuid.New(),
		Method: method,
		target: target,
		exec:   exec,
	}
}

// NewComposite builds a request that owns children. A nil exec replays the
// children in order.
func NewComposite(method string, target uint32, exec ExecFunc) *Request {
	r := New(method, target, exec)
	r.composite = true
	if r.exec == nil {
		r.exec = func(ctx context.Context, r *Request) error {
			return r.Replay(ctx)
		}
	}
	return r
}

// Target returns the station or unit mask of the request.
func (r *Request) Target() uint32 {
	return r.target
}

// Composite reports whether r owns children.
func (r *Request) Composite() bool {
	return r.composite
}

func (r *Request) State() State {
	return State(r.state.Load())
}

// SetState records a lifecycle transition made by a context or the queue.
func (r *Request) SetState(s State) {
	r.state.Store(int32(s))
}

// Append buffers child. It fails once the composite has been sealed.
func (r *Request) Append(child *Request) error {
	if !r.composite {
		return upos.Illegal("%s nie buforuje żądań", r.Method)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return upos.Illegal("%s jest już zamknięte", r.Method)
	}
	child.SetState(StateBuffered)
	r.children = append(r.children, child)
	return nil
}

// Seal stops further appends.
func (r *Request) Seal() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Children returns a copy of the buffered children in call order.
func (r *Request) Children() []*Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Request, len(r.children))
	copy(out, r.children)
	return out
}

// Drain removes and returns the buffered children. The composite stays open.
func (r *Request) Drain() []*Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.children
	r.children = nil
	return out
}

// Snapshot returns an open copy of the composite holding the children buffered
// so far, with a new identity.
func (r *Request) Snapshot() *Request {
	c := NewComposite(r.Method, r.target, nil)
	if r.exec != nil {
		c.exec = r.exec
	}
	c.children = r.Children()
	return c
}

// Run executes the request. Panics in exec are turned into errors.
func (r *Request) Run(ctx context.Context) (err error) {
	if r.Aborted() {
		r.SetState(StateCancelled)
		return ErrAborted
	}
	ctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer func() {
		cancel()
		if p := recover(); p != nil {
			err = fmt.Errorf("%s: panika: %v", r.Method, p)
		}
		if err != nil && r.Aborted() {
			err = ErrAborted
		}
		switch {
		case err == nil:
			r.SetState(StateCompleted)
		case errors.Is(err, ErrAborted):
			r.SetState(StateCancelled)
		default:
			r.SetState(StateFailed)
		}
	}()

	r.SetState(StateRunning)
	if r.exec == nil {
		return nil
	}
	return r.exec(ctx, r)
}

// Replay runs the children in call order. It checks the abort flag and ctx
// before each child and stops at the first failure.
func (r *Request) Replay(ctx context.Context) error {
	for _, child := range r.Children() {
		if r.Aborted() || ctx.Err() != nil {
			return ErrAborted
		}
		if err := child.Run(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Abort asks a running request to stop at its next check point. Primitive
// requests that already started finish on their own.
func (r *Request) Abort() {
	r.aborted.Store(true)
	r.mu.Lock()
	cancel := r.cancel
	children := r.children
	r.mu.Unlock()
	for _, child := range children {
		child.aborted.Store(true)
	}
	if cancel != nil {
		cancel()
	}
}

func (r *Request) Aborted() bool {
	return r.aborted.Load()
}

// Retry clears the abort flag so a failed request can be run again.
func (r *Request) Retry() {
	r.aborted.Store(false)
	for _, child := range r.Children() {
		child.aborted.Store(false)
	}
	r.SetState(StateQueued)
}

func (r *Request) String() string {
	return fmt.Sprintf("%s[%s target=%#x]", r.Method, r.ID.String()[:8], r.target)
}
