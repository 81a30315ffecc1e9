package timely

// PointstampSummaries gives the progress tracker, for each location, the
// set of (target location, summary) pairs a change at that location can
// propagate to — the flattened output of Reachability.Compute for one
// pointstamp type (spec.md §4.5, §4.6).
type PointstampSummaries[T comparable, S any] map[Location]map[Location]*Antichain[S]

// Tracker runs the propagate_all algorithm: it accumulates ChangeBatch
// deltas per location on an input queue, then repeatedly drains the
// nonempty batch whose location was enqueued earliest (first in, first
// out; the worklist is not ordered by timestamp or by location), applies
// it to that location's
// MutableAntichain, and pushes the resulting frontier deltas — composed
// through the reachability summaries — onto downstream locations' input
// queues, until every queue is empty (spec.md §4.6).
type Tracker[T comparable, S any] struct {
	order Order[T]

	summaries PointstampSummaries[T, S]
	resultsIn func(sum S, t T) (T, bool)

	pushed  map[Location]*ChangeBatch[T]
	counts  map[Location]*MutableAntichain[T]
	worklist []Location

	// OutputChanges accumulates every frontier delta this pass produced
	// at a location with no further downstream summaries (an operator's
	// own inputs, surfaced to the worker loop), keyed by location.
	OutputChanges map[Location][]FrontierDelta[T]
}

// NewTracker builds a tracker over the given reachability summaries.
func NewTracker[T comparable, S any](order Order[T], summaries PointstampSummaries[T, S], resultsIn func(sum S, t T) (T, bool)) *Tracker[T, S] {
	return &Tracker[T, S]{
		order:         order,
		summaries:     summaries,
		resultsIn:     resultsIn,
		pushed:        map[Location]*ChangeBatch[T]{},
		counts:        map[Location]*MutableAntichain[T]{},
		OutputChanges: map[Location][]FrontierDelta[T]{},
	}
}

func (tr *Tracker[T, S]) batchAt(loc Location) *ChangeBatch[T] {
	cb, ok := tr.pushed[loc]
	if !ok {
		cb = NewChangeBatch[T]()
		tr.pushed[loc] = cb
	}
	return cb
}

func (tr *Tracker[T, S]) countsAt(loc Location) *MutableAntichain[T] {
	m, ok := tr.counts[loc]
	if !ok {
		m = NewMutableAntichain[T](tr.order)
		tr.counts[loc] = m
	}
	return m
}

// UpdateSource enqueues a change of delta at timestamp t on a source
// location — typically an operator reporting newly produced output
// capabilities (spec.md §4.6, update_source).
func (tr *Tracker[T, S]) UpdateSource(loc Location, t T, delta int64) {
	tr.enqueue(loc, t, delta)
}

// UpdateTarget enqueues a change of delta at timestamp t on a target
// location — typically a message arriving on an operator's input, or an
// operator releasing a held capability (spec.md §4.6, update_target).
func (tr *Tracker[T, S]) UpdateTarget(loc Location, t T, delta int64) {
	tr.enqueue(loc, t, delta)
}

func (tr *Tracker[T, S]) enqueue(loc Location, t T, delta int64) {
	wasEmpty := tr.batchAt(loc).IsEmpty()
	tr.batchAt(loc).Update(t, delta)
	if wasEmpty {
		tr.worklist = append(tr.worklist, loc)
	}
}

// PropagateAll drains the worklist to a fixed point, applying every
// pending change and fanning its frontier delta out along reachability
// summaries (spec.md §4.6).
func (tr *Tracker[T, S]) PropagateAll() {
	for len(tr.worklist) > 0 {
		loc := tr.worklist[0]
		tr.worklist = tr.worklist[1:]

		batch := tr.batchAt(loc)
		if batch.IsEmpty() {
			continue
		}

		counts := tr.countsAt(loc)
		var deltas []FrontierDelta[T]
		for _, d := range batch.Drain() {
			deltas = append(deltas, counts.Update(d.T, d.Delta)...)
		}
		if len(deltas) == 0 {
			continue
		}

		targets, ok := tr.summaries[loc]
		if !ok || len(targets) == 0 {
			tr.OutputChanges[loc] = append(tr.OutputChanges[loc], deltas...)
			continue
		}

		for target, antichain := range targets {
			for _, fd := range deltas {
				for _, sum := range antichain.Elements() {
					if result, ok := tr.resultsIn(sum, fd.T); ok {
						tr.enqueue(target, result, fd.Delta)
					}
				}
			}
		}
	}
}

// Frontier returns the current frontier at loc, as maintained by the
// MutableAntichain of counts seen so far.
func (tr *Tracker[T, S]) Frontier(loc Location) *Antichain[T] {
	return tr.countsAt(loc).Frontier()
}
