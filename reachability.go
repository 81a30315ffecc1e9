package timely

import "fmt"

// reachabilityEdge is one summary on a path from a source location to a
// target location inside a scope, keyed by the pair of locations it
// connects (spec.md §4.5).
type reachabilityEdge[T any, S any] struct {
	from    Location
	to      Location
	summary S
}

// Reachability computes, for every (source, target) pair of locations
// inside a scope, the set of minimal path summaries by which a timestamp
// at the source could reach the target, by propagating summaries along
// the scope's internal connectivity graph to a fixed point (spec.md §4.5).
type Reachability[T any, S any] struct {
	sourceTarget []reachabilityEdge[T, S]
	targetTarget []reachabilityEdge[T, S]

	pathSummary func(a, b S) (S, bool)
	identity    S
	lessEqual   func(a, b S) bool

	outputSummaries map[Location]*Antichain[S]
}

// NewReachability builds a reachability tracker for one scope. identity is
// the summary that composes as a no-op with FollowedBy; pathSummary
// composes two summaries in sequence (FollowedBy); lessEqual orders
// summaries for antichain maintenance.
func NewReachability[T any, S any](identity S, pathSummary func(a, b S) (S, bool), lessEqual func(a, b S) bool) *Reachability[T, S] {
	return &Reachability[T, S]{
		pathSummary:     pathSummary,
		identity:        identity,
		lessEqual:       lessEqual,
		outputSummaries: map[Location]*Antichain[S]{},
	}
}

// AddSourceTarget records an edge from a child operator's output (a
// source location) directly to a target location, carrying summary.
func (r *Reachability[T, S]) AddSourceTarget(from, to Location, summary S) {
	r.sourceTarget = append(r.sourceTarget, reachabilityEdge[T, S]{from, to, summary})
}

// AddTargetTarget records an internal connectivity edge between two
// target locations (an operator's declared internal summary from an
// input port to an output port), carrying summary.
func (r *Reachability[T, S]) AddTargetTarget(from, to Location, summary S) {
	r.targetTarget = append(r.targetTarget, reachabilityEdge[T, S]{from, to, summary})
}

// Compute propagates summaries from every source location to every
// reachable location to a fixed point, returning the minimal antichain of
// summaries from each location where a source-target edge starts to each
// location it reaches (spec.md §4.5). No entry is keyed by a location that
// only starts target-target edges. It panics if a location reaches itself
// with a summary equal to the identity, which would otherwise loop forever —
// that configuration is a malformed dataflow (an operator declaring it can
// produce output strictly not-later than some input it also consumes on
// the very same round, with no other separating summary).
func (r *Reachability[T, S]) Compute() map[Location]map[Location]*Antichain[S] {
	type workItem struct {
		from Location
		to   Location
		sum  S
	}
	var stack []workItem

	for _, e := range r.sourceTarget {
		stack = append(stack, workItem{e.from, e.to, e.summary})
	}

	results := map[Location]map[Location]*Antichain[S]{}
	ensure := func(from Location) map[Location]*Antichain[S] {
		m, ok := results[from]
		if !ok {
			m = map[Location]*Antichain[S]{}
			results[from] = m
		}
		return m
	}

	insert := func(from, to Location, sum S) bool {
		byTo := ensure(from)
		anti, ok := byTo[to]
		if !ok {
			anti = NewAntichain[S](func(a, b S) bool { return r.lessEqual(a, b) })
			byTo[to] = anti
		}
		return anti.Insert(sum)
	}

	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !insert(item.from, item.to, item.sum) {
			continue
		}

		if item.from == item.to && r.lessEqual(item.sum, r.identity) && r.lessEqual(r.identity, item.sum) {
			panic(fmt.Sprintf("timely: reachability self-loop at %v carries no separating summary", item.from))
		}

		for _, e := range r.targetTarget {
			if e.from != item.to {
				continue
			}
			composed, ok := r.pathSummary(item.sum, e.summary)
			if !ok {
				continue
			}
			stack = append(stack, workItem{item.from, e.to, composed})
		}
		for _, e := range r.sourceTarget {
			if e.from != item.to {
				continue
			}
			composed, ok := r.pathSummary(item.sum, e.summary)
			if !ok {
				continue
			}
			stack = append(stack, workItem{item.from, e.to, composed})
		}
	}

	return results
}
