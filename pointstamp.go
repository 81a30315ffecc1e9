package timely

// PortKind tags a Location's port as belonging to an operator output
// (Source) or an operator input (Target), matching spec.md §3's
// Location definition: "a (node, port) pair where port is tagged Source
// (operator output / scope input) or Target (operator input / scope
// output)".
type PortKind uint8

const (
	// Source is an operator output or a scope input.
	Source PortKind = iota
	// Target is an operator input or a scope output.
	Target
)

func (k PortKind) String() string {
	if k == Source {
		return "source"
	}
	return "target"
}

// Location is a (node, port) pair, the unit of address the progress
// tracker reasons about.
type Location struct {
	Node int
	Port int
	Kind PortKind
}

// ChangeBatch accumulates signed integer deltas keyed by timestamp,
// coalescing repeated updates at the same key into one net delta
// (spec.md §4.6, input_changes/output_changes).
type ChangeBatch[T comparable] struct {
	deltas map[T]int64
	order  []T
}

// NewChangeBatch returns an empty batch.
func NewChangeBatch[T comparable]() *ChangeBatch[T] {
	return &ChangeBatch[T]{deltas: map[T]int64{}}
}

// Update records a signed delta at t, coalescing with any prior delta at
// the same key.
func (c *ChangeBatch[T]) Update(t T, delta int64) {
	if delta == 0 {
		return
	}
	if _, ok := c.deltas[t]; !ok {
		c.order = append(c.order, t)
	}
	c.deltas[t] += delta
}

// Drain removes and returns every non-zero (t, delta) pair currently
// buffered, in the order first observed.
func (c *ChangeBatch[T]) Drain() []struct {
	T     T
	Delta int64
} {
	out := make([]struct {
		T     T
		Delta int64
	}, 0, len(c.order))

	for _, t := range c.order {
		if d := c.deltas[t]; d != 0 {
			out = append(out, struct {
				T     T
				Delta int64
			}{t, d})
		}
	}

	c.deltas = map[T]int64{}
	c.order = nil
	return out
}

// IsEmpty reports whether every buffered delta is zero.
func (c *ChangeBatch[T]) IsEmpty() bool {
	for _, d := range c.deltas {
		if d != 0 {
			return false
		}
	}
	return true
}

// MutableAntichain maintains per-timestamp reference counts and exposes the
// frontier of timestamps with a strictly positive count — the scalar
// counting structure that backs both pointstamps[loc] and
// implications[loc] in spec.md §4.6.
type MutableAntichain[T comparable] struct {
	le     Order[T]
	counts map[T]int64
	order  []T
}

// NewMutableAntichain builds an empty counted antichain using the given
// order.
func NewMutableAntichain[T comparable](le Order[T]) *MutableAntichain[T] {
	return &MutableAntichain[T]{le: le, counts: map[T]int64{}}
}

// CountFor returns the raw reference count currently held for t (may be
// zero or, transiently during a multi-step update, negative).
func (m *MutableAntichain[T]) CountFor(t T) int64 {
	return m.counts[t]
}

// Frontier returns the antichain of minimal elements with a strictly
// positive count.
func (m *MutableAntichain[T]) Frontier() *Antichain[T] {
	out := NewAntichain[T](m.le)
	for _, t := range m.order {
		if m.counts[t] > 0 {
			out.Insert(t)
		}
	}
	return out
}

// FrontierDelta is one observed change to the minimal-element set caused
// by an Update: the timestamp transitioning across zero, signed so a
// caller can apply it directly as an implication/output delta.
type FrontierDelta[T any] struct {
	T     T
	Delta int64
}

// Update applies delta to the count held for t and returns the frontier
// deltas this produced: spec.md §4.6 distinguishes "the frontier deltas
// actually produced (a change in the multiset count from zero-to-nonzero
// or vice versa at the lowest element)" from the raw update itself. A
// MutableAntichain only ever reports changes at elements whose own
// zero/non-zero transition altered which elements are frontier-minimal,
// which is what makes propagation stable under cancellation (spec.md §4.6).
func (m *MutableAntichain[T]) Update(t T, delta int64) []FrontierDelta[T] {
	before := m.Frontier()

	if _, ok := m.counts[t]; !ok {
		m.order = append(m.order, t)
	}
	m.counts[t] += delta
	if m.counts[t] == 0 {
		delete(m.counts, t)
	}

	after := m.Frontier()

	return diffFrontiers(m.le, before, after)
}

func diffFrontiers[T any](le Order[T], before, after *Antichain[T]) []FrontierDelta[T] {
	var out []FrontierDelta[T]

	for _, b := range before.Elements() {
		if !containsEqual(le, after, b) {
			out = append(out, FrontierDelta[T]{T: b, Delta: -1})
		}
	}
	for _, a := range after.Elements() {
		if !containsEqual(le, before, a) {
			out = append(out, FrontierDelta[T]{T: a, Delta: +1})
		}
	}

	return out
}

func containsEqual[T any](le Order[T], a *Antichain[T], t T) bool {
	for _, e := range a.Elements() {
		if le(e, t) && le(t, e) {
			return true
		}
	}
	return false
}

// Pointstamp is a (Location, Timestamp) pair: one unit of capability or one
// outstanding message, per spec.md §3.
type Pointstamp[T any] struct {
	Loc Location
	T   T
}
