package timely

// Operator is the schedulable unit inside a Subgraph: it reports its own
// dataflow address and port counts, its internal connectivity (the
// summary a timestamp at each input can reach each output with), accepts
// the external summary computed once the whole graph is wired, is polled
// to do work, and carries progress through Progress (spec.md §4.7, §6
// operator contract).
type Operator[T comparable, S any] interface {
	// Path is this operator's address: the sequence of child indices
	// from the root scope down to it.
	Path() []int

	Inputs() int
	Outputs() int

	// GetInternalSummary reports, for each input, the antichain of
	// summaries by which a timestamp arriving there can reach each
	// output, plus the capability this operator holds at each output
	// before any scheduling has happened (spec.md §4.5, §6's
	// get_internal_summary returning Vec<ChangeBatch<T>> alongside the
	// connectivity summary).
	GetInternalSummary() (summaries [][]*Antichain[S], initialCapabilities []*ChangeBatch[T])

	// SetExternalSummary supplies the operator the summaries reaching
	// it from every other operator in the enclosing scope, computed
	// once after every child has reported GetInternalSummary.
	SetExternalSummary(summaries [][]*Antichain[S])

	// Schedule does one unit of available work and reports whether it
	// did any; the subgraph keeps scheduling operators that return true
	// and stops offering time to ones that consistently return false
	// until reactivated.
	Schedule() bool

	// Progress returns the handle this operator reports consumed,
	// produced, and internal (capability) deltas through, and on which
	// it receives its current input frontiers back. The enclosing
	// Subgraph drains and refreshes it around every Schedule call
	// (spec.md §4.7, §6; modeled on original_source's
	// operate::SharedProgress).
	Progress() *OperatorProgress[T]

	// NotifyMe reports whether this operator wants to be woken
	// specifically when its input frontiers change, as opposed to being
	// scheduled opportunistically (spec.md §6).
	NotifyMe() bool
}

// OperatorProgress is the shared progress handle an Operator reports
// through: Consumed[i] accumulates deltas for messages retired from
// input i, Produced[o]/Internal[o] accumulate deltas for messages sent
// from, and capabilities held at, output o, and Frontiers[i] is
// overwritten by the enclosing Subgraph with the live frontier at input i
// after each propagation pass (spec.md §4.7, §6; original_source's
// operate::SharedProgress carries the same three ChangeBatch slices plus
// the frontier view operators schedule against).
type OperatorProgress[T comparable] struct {
	Frontiers []*Antichain[T]
	Consumed  []*ChangeBatch[T]
	Produced  []*ChangeBatch[T]
	Internal  []*ChangeBatch[T]
}

// NewOperatorProgress allocates an empty handle sized for inputs and
// outputs ports.
func NewOperatorProgress[T comparable](inputs, outputs int) *OperatorProgress[T] {
	p := &OperatorProgress[T]{
		Frontiers: make([]*Antichain[T], inputs),
		Consumed:  make([]*ChangeBatch[T], inputs),
		Produced:  make([]*ChangeBatch[T], outputs),
		Internal:  make([]*ChangeBatch[T], outputs),
	}
	for i := range p.Consumed {
		p.Consumed[i] = NewChangeBatch[T]()
	}
	for i := range p.Produced {
		p.Produced[i] = NewChangeBatch[T]()
		p.Internal[i] = NewChangeBatch[T]()
	}
	return p
}

// Builder accumulates an operator's inputs and outputs before Build
// finalizes it into a schedulable Operator, mirroring spec.md §6's
// Builder contract (new_input, new_output, connect, build).
type Builder[T comparable, S any] interface {
	NewInput(address []int) int
	NewOutput(address []int) int
	Connect(input, output int, summary S)
	Build() Operator[T, S]
}
