// Package contextstack tracks the buffering modes (transaction, sideways, page
// mode) open on each printer station or display unit.
//
// A frame is opened for a target mask and buffers every request issued for
// those targets until it is ended or cancelled. Frames nest only inside frames
// of a higher kind whose mask covers theirs, so the stack for any target is
// always ordered Transaction > Sideways > PageMode from the outside in.
package contextstack

import (
	"fmt"
	"sync"

	"github.com/NowakAdmin/BizantiPOS/internal/request"
	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// Kind is a buffering mode. Higher kinds enclose lower ones.
type Kind int

const (
	PageMode Kind = iota + 1
	Sideways
	Transaction
)

func (k Kind) String() string {
	switch k {
	case PageMode:
		return "page mode"
	case Sideways:
		return "sideways"
	case Transaction:
		return "transaction"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

type frame struct {
	kind Kind
	mask uint32
	req  *request.Request
}

// Stack holds the open frames of one device. The zero value is ready to use.
type Stack struct {
	mu     sync.Mutex
	frames []frame
}

// Begin opens a frame of kind for the targets in mask. req must be a composite
// request; it collects the buffered children.
func (s *Stack) Begin(kind Kind, mask uint32, req *request.Request) error {
	if mask == 0 {
		return upos.Invalid("%s wymaga wskazania celu", kind)
	}
	if !req.Composite() {
		return upos.Illegal("%s wymaga żądania złożonego", kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.frames {
		if f.mask&mask == 0 {
			continue
		}
		if f.kind == kind {
			return upos.Illegal("%s jest już otwarte", kind)
		}
		if f.kind < kind {
			return upos.Illegal("%s nie może być otwarte wewnątrz %s", kind, f.kind)
		}
		if mask&^f.mask != 0 {
			return upos.Illegal("%s obejmuje %#x poza otaczającym %s", kind, mask, f.kind)
		}
	}
	req.SetState(request.StateBuffered)
	s.frames = append(s.frames, frame{kind: kind, mask: mask, req: req})
	return nil
}

// innermost returns the index of the last opened frame overlapping mask.
// The caller holds s.mu.
func (s *Stack) innermost(mask uint32) int {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].mask&mask != 0 {
			return i
		}
	}
	return -1
}

// lookup finds the frame of kind for mask and checks that no frame was opened
// inside it. The caller holds s.mu.
func (s *Stack) lookup(kind Kind, mask uint32) (int, error) {
	i := s.innermost(mask)
	if i < 0 {
		return -1, upos.Illegal("%s nie jest otwarte", kind)
	}
	f := s.frames[i]
	if f.kind != kind {
		for _, other := range s.frames[:i] {
			if other.kind == kind && other.mask&mask != 0 {
				return -1, upos.Illegal("%s nadal otwarte wewnątrz %s", f.kind, kind)
			}
		}
		return -1, upos.Illegal("%s nie jest otwarte", kind)
	}
	if f.mask != mask {
		return -1, upos.Illegal("%s otwarto dla %#x, nie dla %#x", kind, f.mask, mask)
	}
	return i, nil
}

// End closes the frame of kind for mask. An inner frame folds its composite
// into the enclosing frame and End returns nil; the outermost frame returns its
// composite for execution.
func (s *Stack) End(kind Kind, mask uint32) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.lookup(kind, mask)
	if err != nil {
		return nil, err
	}
	f := s.frames[i]
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	f.req.Seal()

	if outer := s.innermost(mask); outer >= 0 {
		if err := s.frames[outer].req.Append(f.req); err != nil {
			return nil, err
		}
		return nil, nil
	}
	f.req.SetState(request.StateCreated)
	return f.req, nil
}

// Cancel closes the frame of kind for mask and discards what it buffered.
func (s *Stack) Cancel(kind Kind, mask uint32) ([]*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.lookup(kind, mask)
	if err != nil {
		return nil, err
	}
	f := s.frames[i]
	s.frames = append(s.frames[:i], s.frames[i+1:]...)
	f.req.Seal()
	discarded := f.req.Children()
	for _, child := range discarded {
		child.SetState(request.StateCancelled)
	}
	f.req.SetState(request.StateCancelled)
	return discarded, nil
}

// Buffer appends child to the innermost frame covering its targets. It
// reports false when no frame is open for them.
func (s *Stack) Buffer(child *request.Request) (bool, error) {
	mask := child.Target()
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.innermost(mask)
	if i < 0 {
		return false, nil
	}
	f := s.frames[i]
	if mask&^f.mask != 0 {
		return false, upos.Illegal("%s otwarto tylko dla %#x", f.kind, f.mask)
	}
	if err := f.req.Append(child); err != nil {
		return false, err
	}
	return true, nil
}

// BufferOutside appends req to the frame enclosing the frame of kind for
// mask. It reports false when that frame is the outermost one.
func (s *Stack) BufferOutside(kind Kind, mask uint32, req *request.Request) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.lookup(kind, mask)
	if err != nil {
		return false, err
	}
	for j := i - 1; j >= 0; j-- {
		if s.frames[j].mask&mask != 0 {
			return true, s.frames[j].req.Append(req)
		}
	}
	return false, nil
}

// Snapshot returns a runnable copy of what the frame of kind for mask has
// buffered so far. The frame stays open.
func (s *Stack) Snapshot(kind Kind, mask uint32) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.lookup(kind, mask)
	if err != nil {
		return nil, err
	}
	return s.frames[i].req.Snapshot(), nil
}

// Discard drops what the frame of kind for mask has buffered and keeps the
// frame open.
func (s *Stack) Discard(kind Kind, mask uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.lookup(kind, mask)
	if err != nil {
		return err
	}
	for _, child := range s.frames[i].req.Drain() {
		child.SetState(request.StateCancelled)
	}
	return nil
}

// Reset drops every frame overlapping mask, as after a device reset.
func (s *Stack) Reset(mask uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.frames[:0]
	for _, f := range s.frames {
		if f.mask&mask != 0 {
			f.req.SetState(request.StateCancelled)
			continue
		}
		kept = append(kept, f)
	}
	s.frames = kept
}

// Innermost reports the kind of the innermost frame overlapping mask.
func (s *Stack) Innermost(mask uint32) (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.innermost(mask); i >= 0 {
		return s.frames[i].kind, true
	}
	return 0, false
}

// IsOpen reports whether a frame of kind overlaps mask.
func (s *Stack) IsOpen(kind Kind, mask uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.frames {
		if f.kind == kind && f.mask&mask != 0 {
			return true
		}
	}
	return false
}

// Any reports whether any frame overlaps mask.
func (s *Stack) Any(mask uint32) bool {
	_, ok := s.Innermost(mask)
	return ok
}
