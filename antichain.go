package timely

// Antichain is a set of mutually-incomparable elements of a partial order:
// the canonical representation of a frontier (spec.md §9, "Partially-ordered
// timestamps"). All progress propagation logic in this module is written in
// terms of Antichain, never a scalar maximum.
type Antichain[T any] struct {
	le   Order[T]
	elem []T
}

// NewAntichain builds an empty antichain using the given order.
func NewAntichain[T any](le Order[T]) *Antichain[T] {
	return &Antichain[T]{le: le}
}

// Elements returns the antichain's minimal elements. The returned slice must
// not be mutated by the caller.
func (a *Antichain[T]) Elements() []T {
	return a.elem
}

// Empty reports whether the antichain has no elements, i.e. the frontier is
// the empty frontier (everything is complete, downstream of all possible
// times).
func (a *Antichain[T]) Empty() bool {
	return len(a.elem) == 0
}

// Insert adds t to the antichain, discarding it if some existing element
// already precedes or equals it, and removing any existing elements that t
// precedes or equals. Reports whether the antichain changed.
func (a *Antichain[T]) Insert(t T) bool {
	for _, e := range a.elem {
		if a.le(e, t) {
			return false
		}
	}

	out := a.elem[:0:0]
	for _, e := range a.elem {
		if !a.le(t, e) {
			out = append(out, e)
		}
	}
	out = append(out, t)
	a.elem = out
	return true
}

// LessEqual reports whether t is greater than or equal to some element of
// the antichain, i.e. whether t lies at or beyond the frontier.
func (a *Antichain[T]) LessEqual(t T) bool {
	for _, e := range a.elem {
		if a.le(e, t) {
			return true
		}
	}
	return false
}

// Dominates reports whether other is greater than or equal to some element
// of a — the same test as LessEqual, named for the reachability builder's
// use of it to decide whether a newly discovered summary is already implied
// by the accumulated antichain (spec.md §4.5).
func (a *Antichain[T]) Dominates(other T) bool {
	return a.LessEqual(other)
}

// Clone returns an independent copy of the antichain.
func (a *Antichain[T]) Clone() *Antichain[T] {
	out := &Antichain[T]{le: a.le, elem: make([]T, len(a.elem))}
	copy(out.elem, a.elem)
	return out
}

// Equal reports whether two antichains contain the same elements,
// irrespective of order.
func (a *Antichain[T]) Equal(b *Antichain[T]) bool {
	if len(a.elem) != len(b.elem) {
		return false
	}
	for _, x := range a.elem {
		found := false
		for _, y := range b.elem {
			if a.le(x, y) && a.le(y, x) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
