package request

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func recorder(calls *[]string, name string, err error) ExecFunc {
	return func(context.Context, *Request) error {
		*calls = append(*calls, name)
		return err
	}
}

func TestReplay_RunsChildrenInCallOrder(t *testing.T) {
	var calls []string
	parent := NewComposite("TransactionPrint", 2, nil)
	for _, name := range []string{"a", "b", "c"} {
		if err := parent.Append(New(name, 2, recorder(&calls, name, nil))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := parent.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(calls, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected order %v", calls)
	}
	if parent.State() != StateCompleted {
		t.Fatalf("expected completed, got %s", parent.State())
	}
}

func TestReplay_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("paper jam")
	parent := NewComposite("TransactionPrint", 2, nil)
	_ = parent.Append(New("a", 2, recorder(&calls, "a", nil)))
	_ = parent.Append(New("b", 2, recorder(&calls, "b", boom)))
	_ = parent.Append(New("c", 2, recorder(&calls, "c", nil)))

	if err := parent.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected child error, got %v", err)
	}
	if !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Fatalf("unexpected calls %v", calls)
	}
	if parent.State() != StateFailed {
		t.Fatalf("expected failed, got %s", parent.State())
	}
}

func TestReplay_AbortBetweenChildren(t *testing.T) {
	var calls []string
	parent := NewComposite("TransactionPrint", 2, nil)
	_ = parent.Append(New("a", 2, func(context.Context, *Request) error {
		calls = append(calls, "a")
		parent.Abort()
		return nil
	}))
	_ = parent.Append(New("b", 2, recorder(&calls, "b", nil)))

	if err := parent.Run(context.Background()); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected aborted, got %v", err)
	}
	if !reflect.DeepEqual(calls, []string{"a"}) {
		t.Fatalf("unexpected calls %v", calls)
	}
	if parent.State() != StateCancelled {
		t.Fatalf("expected cancelled, got %s", parent.State())
	}
}

func TestRun_RecoversPanic(t *testing.T) {
	r := New("PrintNormal", 2, func(context.Context, *Request) error {
		panic("driver bug")
	})
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error from panic")
	}
	if r.State() != StateFailed {
		t.Fatalf("expected failed, got %s", r.State())
	}
}

func TestAppend_RejectsPrimitiveAndSealed(t *testing.T) {
	if err := New("PrintNormal", 2, nil).Append(New("x", 2, nil)); err == nil {
		t.Fatalf("primitive request accepted a child")
	}
	parent := NewComposite("PageModePrint", 2, nil)
	parent.Seal()
	if err := parent.Append(New("x", 2, nil)); err == nil {
		t.Fatalf("sealed composite accepted a child")
	}
}

func TestSnapshot_CopiesChildren(t *testing.T) {
	parent := NewComposite("PageModePrint", 2, nil)
	_ = parent.Append(New("a", 2, nil))
	snap := parent.Snapshot()
	_ = parent.Append(New("b", 2, nil))

	if len(snap.Children()) != 1 {
		t.Fatalf("snapshot should keep 1 child, got %d", len(snap.Children()))
	}
	if snap.ID == parent.ID {
		t.Fatalf("snapshot must get its own identity")
	}
}

func TestRetry_ClearsAbort(t *testing.T) {
	var calls []string
	r := NewComposite("TransactionPrint", 2, nil)
	_ = r.Append(New("a", 2, recorder(&calls, "a", nil)))
	r.Abort()
	if err := r.Run(context.Background()); !errors.Is(err, ErrAborted) {
		t.Fatalf("expected aborted, got %v", err)
	}
	r.Retry()
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if len(calls) != 1 {
		t.Fatalf("expected one call after retry, got %v", calls)
	}
}
