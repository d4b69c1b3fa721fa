package subscription

import (
	"fmt"
	"math/bits"
	"strings"
)

const (
	// MaxWidth is the largest number of capability groups a Subscription holds.
	MaxWidth = 256

	// DefaultWidth is the width used when none is configured.
	DefaultWidth = 255

	words = MaxWidth / 64
)

// Subscription is a fixed-width capability bitmask. A worker's Subscription
// lists the groups it serves; a command's Subscription lists the groups it
// requires.
//
// Subscription is a value type: assigning or passing it copies the mask, so
// a cloned command never shares mask storage with its original.
type Subscription struct {
	width uint16
	mask  [words]uint64
}

// New returns an empty Subscription over width groups.
// It panics unless 1 <= width <= MaxWidth.
func New(width int) Subscription {
	if width < 1 || width > MaxWidth {
		panic(fmt.Sprintf("subscription: width %d outside [1, %d]", width, MaxWidth))
	}
	return Subscription{width: uint16(width)}
}

// FromUint64 returns a Subscription of the given width whose low 64 groups
// are taken from v. Bits at or above width panic.
func FromUint64(width int, v uint64) Subscription {
	s := New(width)
	if width < 64 && v>>uint(width) != 0 {
		panic(fmt.Sprintf("subscription: mask %#x exceeds width %d", v, width))
	}
	s.mask[0] = v
	return s
}

// Groups returns a Subscription of the given width holding the listed groups.
func Groups(width int, groups ...int) Subscription {
	s := New(width)
	for _, g := range groups {
		s.SubscribeToGroup(g)
	}
	return s
}

// Width returns the number of groups. The zero Subscription reports DefaultWidth.
func (s Subscription) Width() int {
	if s.width == 0 {
		return DefaultWidth
	}
	return int(s.width)
}

func (s Subscription) checkGroup(g int) {
	if g < 0 || g >= s.Width() {
		panic(fmt.Sprintf("subscription: group %d outside width %d", g, s.Width()))
	}
}

// limit returns the mask of groups below width.
func limit(width int) [words]uint64 {
	var m [words]uint64
	for i := range m {
		switch lo := i * 64; {
		case width >= lo+64:
			m[i] = ^uint64(0)
		case width > lo:
			m[i] = 1<<uint(width-lo) - 1
		}
	}
	return m
}

// FitsWidth reports whether every set group is below width.
func (s Subscription) FitsWidth(width int) bool {
	m := limit(width)
	for i := range s.mask {
		if s.mask[i]&^m[i] != 0 {
			return false
		}
	}
	return true
}

// Subscribe adds every group set in other. Groups of other at or above the
// receiver's width are ignored.
func (s *Subscription) Subscribe(other Subscription) {
	m := limit(s.Width())
	for i := range s.mask {
		s.mask[i] |= other.mask[i] & m[i]
	}
}

// SubscribeToGroup adds group g. It panics if g is outside the width.
func (s *Subscription) SubscribeToGroup(g int) {
	s.checkGroup(g)
	s.mask[g/64] |= 1 << uint(g%64)
}

// UnSubscribe removes every group set in other. Groups outside the
// receiver's width are never set, so a wider other removes nothing extra.
func (s *Subscription) UnSubscribe(other Subscription) {
	for i := range s.mask {
		s.mask[i] &^= other.mask[i]
	}
}

// UnSubscribeFromGroup removes group g. It panics if g is outside the width.
func (s *Subscription) UnSubscribeFromGroup(g int) {
	s.checkGroup(g)
	s.mask[g/64] &^= 1 << uint(g%64)
}

// Has reports whether group g is set.
func (s Subscription) Has(g int) bool {
	s.checkGroup(g)
	return s.mask[g/64]&(1<<uint(g%64)) != 0
}

// IsZero reports whether no group is set.
func (s Subscription) IsZero() bool {
	return s.mask == [words]uint64{}
}

// Count returns the number of groups set.
func (s Subscription) Count() int {
	n := 0
	for _, w := range s.mask {
		n += bits.OnesCount64(w)
	}
	return n
}

// Accepts reports whether a worker holding s can run a command requiring
// required. An unrestricted (all-zero) requirement is accepted only by an
// unrestricted worker; otherwise s must hold every required group, so a
// requirement beyond the width of s is never accepted.
func (s Subscription) Accepts(required Subscription) bool {
	if required.IsZero() {
		return s.IsZero()
	}
	for i := range s.mask {
		if required.mask[i]&s.mask[i] != required.mask[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both masks hold the same groups.
func (s Subscription) Equal(other Subscription) bool {
	return s.mask == other.mask
}

// String renders the mask in binary, highest group first.
func (s Subscription) String() string {
	var b strings.Builder
	b.Grow(s.Width())
	for g := s.Width() - 1; g >= 0; g-- {
		if s.mask[g/64]&(1<<uint(g%64)) != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
