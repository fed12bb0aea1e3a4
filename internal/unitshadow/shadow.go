// Package unitshadow keeps per-unit copies of a property record for devices
// that address up to 32 units, with one unit mirrored into the live record.
package unitshadow

import (
	"fmt"
	"math/bits"
	"reflect"
	"sync"

	"github.com/NowakAdmin/BizantiPOS/internal/upos"
)

// MaxUnits is the number of units a 32 bit mask can address.
const MaxUnits = 32

// Change describes one field that differs after a unit switch.
type Change struct {
	Name string
	Old  any
	New  any
}

// Shadow holds the live record and one slot per unit. P must be a struct.
type Shadow[P any] struct {
	mu     sync.Mutex
	live   P
	slots  [MaxUnits]P
	active int
}

// New starts with every slot and the live record set to initial. Unit 0 is
// active.
func New[P any](initial P) *Shadow[P] {
	s := &Shadow[P]{live: initial}
	for i := range s.slots {
		s.slots[i] = initial
	}
	return s
}

// Live returns a copy of the live record.
func (s *Shadow[P]) Live() P {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live
}

// Active returns the index of the mirrored unit.
func (s *Shadow[P]) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Update changes the live record of the active unit.
func (s *Shadow[P]) Update(fn func(*P)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.live)
}

// Unit returns the record of unit i, reading the live record for the active
// unit.
func (s *Shadow[P]) Unit(i int) (P, error) {
	var zero P
	if i < 0 || i >= MaxUnits {
		return zero, upos.Invalid("jednostka %d poza zakresem", i)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i == s.active {
		return s.live, nil
	}
	return s.slots[i], nil
}

// UpdateUnits applies fn to every unit in mask. The active unit is updated in
// the live record.
func (s *Shadow[P]) UpdateUnits(mask uint32, fn func(unit int, p *P)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Each(mask, func(i int) {
		if i == s.active {
			fn(i, &s.live)
			return
		}
		fn(i, &s.slots[i])
	})
}

// Switch makes unit the active one: the live record is saved into the old
// unit's slot and the new unit's slot is loaded, under one lock. The returned
// changes list only fields whose values differ.
func (s *Shadow[P]) Switch(unit int) ([]Change, error) {
	if unit < 0 || unit >= MaxUnits {
		return nil, upos.Invalid("jednostka %d poza zakresem", unit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if unit == s.active {
		return nil, nil
	}
	old := s.live
	s.slots[s.active] = s.live
	s.live = s.slots[unit]
	s.active = unit
	return diff(old, s.live), nil
}

func diff[P any](before, after P) []Change {
	bv, av := reflect.ValueOf(before), reflect.ValueOf(after)
	if bv.Kind() != reflect.Struct {
		if reflect.DeepEqual(before, after) {
			return nil
		}
		return []Change{{Name: fmt.Sprintf("%T", before), Old: before, New: after}}
	}
	var changes []Change
	t := bv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		o, n := bv.Field(i).Interface(), av.Field(i).Interface()
		if !reflect.DeepEqual(o, n) {
			changes = append(changes, Change{Name: field.Name, Old: o, New: n})
		}
	}
	return changes
}

// Bit returns the mask bit of unit i.
func Bit(i int) uint32 {
	return 1 << uint(i)
}

// Single returns the unit index of a mask with exactly one bit set.
func Single(mask uint32) (int, bool) {
	if bits.OnesCount32(mask) != 1 {
		return 0, false
	}
	return bits.TrailingZeros32(mask), true
}

// Each calls fn for every unit in mask in ascending order.
func Each(mask uint32, fn func(i int)) {
	for mask != 0 {
		i := bits.TrailingZeros32(mask)
		fn(i)
		mask &^= Bit(i)
	}
}

// Fold returns the subset of mask whose units fail the predicate.
func Fold(mask uint32, fails func(i int) bool) uint32 {
	var out uint32
	Each(mask, func(i int) {
		if fails(i) {
			out |= Bit(i)
		}
	})
	return out
}
