package system

import (
	"fmt"
)

type posKind uint8

const (
	posBack posKind = iota
	posFront
	posIndex
	posBefore
	posAfter
)

// Position says where Add inserts a system. Since declaration order is the
// only ordering signal the scheduler has, position decides who wins a
// write conflict.
type Position struct {
	kind  posKind
	index int
	rel   string
}

func Back() Position  { return Position{kind: posBack} }
func Front() Position { return Position{kind: posFront} }

// At inserts at index i. Negative values count from the end: -1 appends,
// -2 inserts before the last system, and so on.
func At(i int) Position { return Position{kind: posIndex, index: i} }

// Before inserts immediately before the named system.
func Before(name string) Position { return Position{kind: posBefore, rel: name} }

// After inserts immediately after the named system.
func After(name string) Position { return Position{kind: posAfter, rel: name} }

func (p Position) String() string {
	switch p.kind {
	case posFront:
		return "front"
	case posIndex:
		return fmt.Sprintf("at %d", p.index)
	case posBefore:
		return "before " + p.rel
	case posAfter:
		return "after " + p.rel
	default:
		return "back"
	}
}

// List is a named, ordered sequence of systems. Every mutation bumps the
// version so cached plans can tell they are stale.
type List struct {
	name    string
	systems []System
	version uint64
}

func newList(name string) *List {
	return &List{name: name, systems: make([]System, 0, 16)}
}

func (l *List) Name() string    { return l.name }
func (l *List) Len() int        { return len(l.systems) }
func (l *List) Version() uint64 { return l.version }

// Systems returns a copy of the list in declaration order.
func (l *List) Systems() []System {
	return append([]System(nil), l.systems...)
}

func (l *List) Names() []string {
	out := make([]string, len(l.systems))
	for i, s := range l.systems {
		out[i] = s.Name()
	}
	return out
}

// IndexOf returns the position of the named system or -1.
func (l *List) IndexOf(name string) int {
	for i, s := range l.systems {
		if s.Name() == name {
			return i
		}
	}
	return -1
}

func (l *List) Has(name string) bool { return l.IndexOf(name) >= 0 }

// Add inserts s at pos. Names must be unique within a list.
func (l *List) Add(s System, pos Position) error {
	if s == nil || s.Name() == "" {
		return fmt.Errorf("list %s: system must have a name", l.name)
	}
	if l.Has(s.Name()) {
		return fmt.Errorf("list %s: system %q already added", l.name, s.Name())
	}

	n := len(l.systems)
	var at int
	switch pos.kind {
	case posBack:
		at = n
	case posFront:
		at = 0
	case posIndex:
		at = pos.index
		if at < 0 {
			at = n + at + 1
		}
		if at < 0 || at > n {
			return fmt.Errorf("list %s: position %d out of range for %d systems", l.name, pos.index, n)
		}
	case posBefore, posAfter:
		at = l.IndexOf(pos.rel)
		if at < 0 {
			return fmt.Errorf("list %s: cannot add %q %s: no such system", l.name, s.Name(), pos)
		}
		if pos.kind == posAfter {
			at++
		}
	}

	l.systems = append(l.systems, nil)
	copy(l.systems[at+1:], l.systems[at:])
	l.systems[at] = s
	l.version++
	return nil
}

// Remove deletes the named system.
func (l *List) Remove(name string) error {
	i := l.IndexOf(name)
	if i < 0 {
		return fmt.Errorf("list %s: no system %q", l.name, name)
	}
	l.systems = append(l.systems[:i], l.systems[i+1:]...)
	l.version++
	return nil
}

func (l *List) Clear() {
	l.systems = l.systems[:0]
	l.version++
}

func (l *List) replace(systems []System) {
	l.systems = append(l.systems[:0], systems...)
	l.version++
}
