// Package queue runs the output requests of one device in order.
//
// Asynchronous requests wait in a FIFO drained by a single worker goroutine
// that is started when work arrives and exits when the list is empty. A
// failed request latches the queue: the remaining requests stay pending until
// the application calls Retry or Clear. Synchronous requests run on the
// caller's goroutine and are refused with a Busy error while overlapping work
// is pending.
package queue

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// DoneFunc is called on the worker goroutine after every asynchronous request.
// err is nil on success and request.ErrAborted for a cleared request.
type DoneFunc func(req *request.Request, err error)

// Option configures a Queue.
type Option func(*Queue)

// Concurrent lets requests for disjoint targets a and b run side by side
// when allowed reports true for the pair. Without it any pending work makes
// the device busy.
func Concurrent(allowed func(a, b uint32) bool) Option {
	return func(q *Queue) {
		q.concurrent = allowed
	}
}

// OnIdle registers fn to run when the worker empties the queue.
func OnIdle(fn func()) Option {
	return func(q *Queue) {
		q.idle = fn
	}
}

// Queue is the output queue of one device.
type Queue struct {
	logger     *log.Logger
	done       DoneFunc
	idle       func()
	concurrent func(a, b uint32) bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []*request.Request
	current   *request.Request
	running   bool
	syncMask  uint32
	syncCount int
	failed    *request.Request
	failErr   error
	closed    bool
}

func New(logger *log.Logger, done DoneFunc, opts ...Option) *Queue {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		logger: logger,
		done:   done,
		ctx:    ctx,
		cancel: cancel,
	}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit appends req to the queue.
func (q *Queue) Submit(req *request.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return &upos.Error{Kind: upos.KindClosed, Message: "kolejka wydruku zamknięta"}
	}
	req.SetState(request.StateQueued)
	q.pending = append(q.pending, req)
	q.startLocked()
	return nil
}

// SubmitImmediate inserts req after the immediate requests already pending and
// before everything else.
func (q *Queue) SubmitImmediate(req *request.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return &upos.Error{Kind: upos.KindClosed, Message: "kolejka wydruku zamknięta"}
	}
	req.Immediate = true
	req.SetState(request.StateQueued)

	index := 0
	for index < len(q.pending) && q.pending[index].Immediate {
		index++
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[index+1:], q.pending[index:])
	q.pending[index] = req
	q.startLocked()
	return nil
}

// startLocked wakes or starts the worker. The caller holds q.mu.
func (q *Queue) startLocked() {
	q.cond.Broadcast()
	if q.running || q.failed != nil || len(q.pending) == 0 {
		return
	}
	q.running = true
	q.wg.Add(1)
	go q.work()
}

// blockedLocked reports whether req must wait for a synchronous call.
func (q *Queue) blockedLocked(req *request.Request) bool {
	if q.syncCount == 0 {
		return false
	}
	return q.conflictLocked(req.Target(), q.syncMask)
}

// conflictLocked reports whether work on a and b must not overlap.
func (q *Queue) conflictLocked(a, b uint32) bool {
	if a&b != 0 {
		return true
	}
	return q.concurrent == nil || !q.concurrent(a, b)
}

func (q *Queue) work() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		for !q.closed && q.failed == nil && len(q.pending) > 0 && q.blockedLocked(q.pending[0]) {
			q.cond.Wait()
		}
		if q.closed || q.failed != nil || len(q.pending) == 0 {
			q.running = false
			idle := !q.closed && q.failed == nil
			q.mu.Unlock()
			if idle && q.idle != nil {
				q.idle()
			}
			return
		}
		req := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.current = req
		q.mu.Unlock()

		err := req.Run(q.ctx)

		q.mu.Lock()
		q.current = nil
		if err != nil && !errors.Is(err, request.ErrAborted) {
			q.failed = req
			q.failErr = err
			q.logger.Printf("Zadanie %s nie powiodło się, kolejka wstrzymana: %v", req, err)
		}
		q.cond.Broadcast()
		q.mu.Unlock()

		if q.done != nil {
			q.done(req, err)
		}
	}
}

// busyLocked reports whether work overlapping mask is pending, running or
// latched. The caller holds q.mu.
func (q *Queue) busyLocked(mask uint32) bool {
	if q.syncCount > 0 && q.conflictLocked(q.syncMask, mask) {
		return true
	}
	if q.current != nil && q.conflictLocked(q.current.Target(), mask) {
		return true
	}
	if q.failed != nil && q.conflictLocked(q.failed.Target(), mask) {
		return true
	}
	for _, p := range q.pending {
		if q.conflictLocked(p.Target(), mask) {
			return true
		}
	}
	return false
}

// RunSync executes req on the calling goroutine. While it runs the worker does
// not start requests for the same targets.
func (q *Queue) RunSync(ctx context.Context, req *request.Request) error {
	mask := req.Target()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return &upos.Error{Kind: upos.KindClosed, Message: "kolejka wydruku zamknięta"}
	}
	if q.busyLocked(mask) {
		q.mu.Unlock()
		return upos.Busy("%s: trwa inna operacja wyjścia", req.Method)
	}
	q.syncMask |= mask
	q.syncCount++
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.syncMask &^= mask
		q.syncCount--
		q.cond.Broadcast()
		q.mu.Unlock()
	}()
	return req.Run(ctx)
}

// Clear removes the pending requests targeting mask, keeping the order of the
// others, and aborts the running request if it targets mask. A latched
// failure for mask is dropped as well. It returns the removed requests.
func (q *Queue) Clear(mask uint32) []*request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed []*request.Request
	kept := q.pending[:0]
	for _, p := range q.pending {
		if p.Target()&mask != 0 {
			p.SetState(request.StateCancelled)
			removed = append(removed, p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept

	if q.current != nil && q.current.Target()&mask != 0 {
		q.current.Abort()
	}
	if q.failed != nil && q.failed.Target()&mask != 0 {
		q.failed.SetState(request.StateCancelled)
		q.logger.Printf("Wyczyszczono błąd zadania %s", q.failed)
		q.failed, q.failErr = nil, nil
	}
	q.startLocked()
	return removed
}

// Retry puts the latched request back at the head of the queue.
func (q *Queue) Retry() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.failed == nil {
		return upos.Illegal("brak nieudanego wydruku do ponowienia")
	}
	req := q.failed
	q.failed, q.failErr = nil, nil
	req.Retry()
	q.pending = append([]*request.Request{req}, q.pending...)
	q.logger.Printf("Ponawianie zadania %s", req)
	q.startLocked()
	return nil
}

// Latched returns the failed request holding the queue, if any.
func (q *Queue) Latched() (*request.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.failed, q.failErr
}

// Pending returns a copy of the waiting requests in execution order.
func (q *Queue) Pending() []*request.Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*request.Request, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len counts pending requests plus the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if q.current != nil {
		n++
	}
	return n
}

// Idle reports whether nothing is pending, running or latched.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) == 0 && q.current == nil && q.failed == nil && q.syncCount == 0
}

// Close aborts the running request, drops pending ones and waits for the
// worker to exit.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for _, p := range q.pending {
		p.SetState(request.StateCancelled)
	}
	q.pending = nil
	if q.current != nil {
		q.current.Abort()
	}
	q.cancel()
	q.cond.Broadcast()
	q.mu.Unlock()

	q.wg.Wait()
}
