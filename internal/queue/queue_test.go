package queue

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
	"github.com/NowakAdmin/BizantiPOS/internal/validate"
)

const (
	journal = uint32(upos.StationJournal)
	receipt = uint32(upos.StationReceipt)
	slip    = uint32(upos.StationSlip)
)

// journalReceiptOnly allows only journal and receipt to overlap.
func journalReceiptOnly() Option {
	caps := validate.Matrix{ConcurrentJrnRec: true}
	return Concurrent(func(a, b uint32) bool { return caps.Concurrent(a | b) })
}

type result struct {
	method string
	err    error
}

type harness struct {
	q       *Queue
	results chan result

	mu    sync.Mutex
	order []string
}

func newHarness(opts ...Option) *harness {
	h := &harness{results: make(chan result, 32)}
	h.q = New(nil, func(req *request.Request, err error) {
		h.results <- result{method: req.Method, err: err}
	}, opts...)
	return h
}

func (h *harness) record(name string) request.ExecFunc {
	return func(context.Context, *request.Request) error {
		h.mu.Lock()
		h.order = append(h.order, name)
		h.mu.Unlock()
		return nil
	}
}

func (h *harness) recorded() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

// gate submits a request that blocks until release is closed or it is aborted.
func (h *harness) gate(t *testing.T, mask uint32) (release func()) {
	t.Helper()
	started := make(chan struct{})
	done := make(chan struct{})
	req := request.New("gate", mask, func(ctx context.Context, _ *request.Request) error {
		close(started)
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	if err := h.q.Submit(req); err != nil {
		t.Fatalf("submit gate: %v", err)
	}
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("gate did not start")
	}
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (h *harness) wait(t *testing.T, n int) []result {
	t.Helper()
	var out []result
	for len(out) < n {
		select {
		case r := <-h.results:
			out = append(out, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d results: %v", len(out), n, out)
		}
	}
	return out
}

func TestSubmitImmediate_JumpsQueueInOrder(t *testing.T) {
	h := newHarness()
	defer h.q.Close()

	release := h.gate(t, receipt)
	_ = h.q.Submit(request.New("a", receipt, h.record("a")))
	_ = h.q.Submit(request.New("b", receipt, h.record("b")))
	_ = h.q.SubmitImmediate(request.New("i1", receipt, h.record("i1")))
	_ = h.q.SubmitImmediate(request.New("i2", receipt, h.record("i2")))
	release()

	h.wait(t, 5)
	want := []string{"i1", "i2", "a", "b"}
	if got := h.recorded(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v, want %v", got, want)
	}
}

func TestClear_RemovesMaskAndAbortsCurrent(t *testing.T) {
	h := newHarness()
	defer h.q.Close()

	release := h.gate(t, receipt)
	defer release()
	_ = h.q.Submit(request.New("a", receipt, h.record("a")))
	_ = h.q.Submit(request.New("b", slip, h.record("b")))
	_ = h.q.Submit(request.New("c", receipt, h.record("c")))
	_ = h.q.Submit(request.New("d", slip, h.record("d")))

	removed := h.q.Clear(receipt)
	var names []string
	for _, r := range removed {
		names = append(names, r.Method)
		if r.State() != request.StateCancelled {
			t.Fatalf("%s not cancelled: %s", r.Method, r.State())
		}
	}
	if !reflect.DeepEqual(names, []string{"a", "c"}) {
		t.Fatalf("unexpected removed %v", names)
	}

	results := h.wait(t, 3)
	if results[0].method != "gate" || !errors.Is(results[0].err, request.ErrAborted) {
		t.Fatalf("gate should be aborted, got %+v", results[0])
	}
	if got := h.recorded(); !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Fatalf("unexpected order %v", got)
	}
	if req, _ := h.q.Latched(); req != nil {
		t.Fatalf("abort must not latch the queue")
	}
}

func TestFailure_LatchesUntilRetry(t *testing.T) {
	h := newHarness()
	defer h.q.Close()

	failures := 1
	flaky := request.New("flaky", receipt, func(context.Context, *request.Request) error {
		if failures > 0 {
			failures--
			return upos.Hardware(upos.ExtRecEmpty, "receipt paper empty")
		}
		h.mu.Lock()
		h.order = append(h.order, "flaky")
		h.mu.Unlock()
		return nil
	})
	release := h.gate(t, receipt)
	_ = h.q.Submit(flaky)
	_ = h.q.Submit(request.New("next", receipt, h.record("next")))
	release()

	results := h.wait(t, 2)
	if !errors.Is(results[1].err, upos.ErrHardware) {
		t.Fatalf("expected hardware error, got %+v", results[1])
	}
	latched, err := h.q.Latched()
	if latched != flaky || err == nil {
		t.Fatalf("queue not latched on flaky: %v %v", latched, err)
	}
	if pending := h.q.Pending(); len(pending) != 1 || pending[0].Method != "next" {
		t.Fatalf("remaining requests must be retained, got %v", pending)
	}
	if err := h.q.RunSync(context.Background(), request.New("sync", slip, nil)); !errors.Is(err, upos.ErrBusy) {
		t.Fatalf("expected busy while latched, got %v", err)
	}

	if err := h.q.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	h.wait(t, 2)
	if got := h.recorded(); !reflect.DeepEqual(got, []string{"flaky", "next"}) {
		t.Fatalf("unexpected order after retry %v", got)
	}
	if err := h.q.Retry(); !errors.Is(err, upos.ErrIllegal) {
		t.Fatalf("retry without latch should be illegal, got %v", err)
	}
}

func TestClear_DropsLatch(t *testing.T) {
	h := newHarness()
	defer h.q.Close()

	_ = h.q.Submit(request.New("bad", receipt, func(context.Context, *request.Request) error {
		return errors.New("cover open")
	}))
	h.wait(t, 1)
	_ = h.q.Submit(request.New("later", receipt, h.record("later")))

	h.q.Clear(receipt)
	if req, _ := h.q.Latched(); req != nil {
		t.Fatalf("latch survived clear")
	}
	if !h.q.Idle() {
		t.Fatalf("queue should be idle after clear")
	}
}

func TestRunSync_Busy(t *testing.T) {
	t.Run("single station device", func(t *testing.T) {
		h := newHarness()
		defer h.q.Close()
		release := h.gate(t, receipt)
		defer release()

		err := h.q.RunSync(context.Background(), request.New("sync", slip, nil))
		if !errors.Is(err, upos.ErrBusy) {
			t.Fatalf("expected busy, got %v", err)
		}
	})

	t.Run("concurrent device", func(t *testing.T) {
		h := newHarness(Concurrent(func(a, b uint32) bool { return true }))
		defer h.q.Close()
		release := h.gate(t, receipt)
		defer release()

		if err := h.q.RunSync(context.Background(), request.New("slip", slip, nil)); err != nil {
			t.Fatalf("disjoint station should run, got %v", err)
		}
		err := h.q.RunSync(context.Background(), request.New("receipt", receipt, nil))
		if !errors.Is(err, upos.ErrBusy) {
			t.Fatalf("expected busy, got %v", err)
		}
	})

	t.Run("only advertised pairs overlap", func(t *testing.T) {
		h := newHarness(journalReceiptOnly())
		defer h.q.Close()
		release := h.gate(t, receipt)
		defer release()

		if err := h.q.RunSync(context.Background(), request.New("journal", journal, nil)); err != nil {
			t.Fatalf("journal beside receipt should run, got %v", err)
		}
		err := h.q.RunSync(context.Background(), request.New("slip", slip, nil))
		if !errors.Is(err, upos.ErrBusy) {
			t.Fatalf("slip beside receipt: expected busy, got %v", err)
		}
	})
}

func TestWorker_WaitsForNonConcurrentSync(t *testing.T) {
	h := newHarness(journalReceiptOnly())
	defer h.q.Close()

	syncReq := request.New("sync", slip, func(context.Context, *request.Request) error {
		h.mu.Lock()
		h.order = append(h.order, "slip-start")
		h.mu.Unlock()
		_ = h.q.Submit(request.New("receipt", receipt, h.record("receipt")))
		time.Sleep(50 * time.Millisecond)
		h.mu.Lock()
		h.order = append(h.order, "slip-end")
		h.mu.Unlock()
		return nil
	})
	if err := h.q.RunSync(context.Background(), syncReq); err != nil {
		t.Fatalf("run sync: %v", err)
	}
	h.wait(t, 1)
	want := []string{"slip-start", "slip-end", "receipt"}
	if got := h.recorded(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestRunSync_HoldsBackWorker(t *testing.T) {
	h := newHarness()
	defer h.q.Close()

	syncReq := request.New("sync", receipt, func(context.Context, *request.Request) error {
		h.mu.Lock()
		h.order = append(h.order, "sync-start")
		h.mu.Unlock()
		_ = h.q.Submit(request.New("async", receipt, h.record("async")))
		time.Sleep(50 * time.Millisecond)
		h.mu.Lock()
		h.order = append(h.order, "sync-end")
		h.mu.Unlock()
		return nil
	})
	if err := h.q.RunSync(context.Background(), syncReq); err != nil {
		t.Fatalf("run sync: %v", err)
	}
	h.wait(t, 1)
	want := []string{"sync-start", "sync-end", "async"}
	if got := h.recorded(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestOnIdle(t *testing.T) {
	idle := make(chan struct{}, 1)
	q := New(nil, nil, OnIdle(func() { idle <- struct{}{} }))
	defer q.Close()

	_ = q.Submit(request.New("a", receipt, nil))
	select {
	case <-idle:
	case <-time.After(2 * time.Second):
		t.Fatalf("idle hook not called")
	}
}

func TestClose_RejectsWork(t *testing.T) {
	q := New(nil, nil)
	q.Close()
	if err := q.Submit(request.New("a", receipt, nil)); !errors.Is(err, upos.ErrClosed) {
		t.Fatalf("expected closed, got %v", err)
	}
}
