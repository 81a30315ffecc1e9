// Copyright © 2020 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package timely

// Timestamp is a totally- or partially-ordered logical time carried by
// every message flowing through a dataflow. Implementations must supply a
// minimum element and a partial order; the zero value of a Timestamp type
// is not assumed to be the minimum unless the type says so via Min.
type Timestamp[T any] interface {
	// LessEqual reports whether the receiver precedes or equals other in
	// the partial order.
	LessEqual(other T) bool
	// Min returns the minimum element of the order.
	Min() T
}

// PathSummary is a transformation on a Timestamp describing what a path
// between two locations does to a message's time. ResultsIn must be
// monotone: t.LessEqual(s.ResultsIn(t)) whenever ResultsIn returns ok=true.
// FollowedBy must compose associatively. The zero value of a PathSummary
// type must be the identity summary.
type PathSummary[T any, S any] interface {
	// ResultsIn advances t along the path this summary represents. It
	// returns ok=false when no timestamp results (e.g. a saturating
	// counter has reached its limit).
	ResultsIn(t T) (result T, ok bool)
	// FollowedBy composes the receiver with another summary, in the
	// receiver-then-other order. It returns ok=false when the two
	// summaries cannot be composed (not expected for well-formed
	// summaries, but kept explicit per the interface contract).
	FollowedBy(other S) (composed S, ok bool)
}

// Order is the comparator pair a generic Antichain needs: LessEqual
// between two timestamps of the same concrete type. It is implemented by
// wrapping Timestamp.LessEqual so Antichain can stay independent of any
// single timestamp type via a small function-value adapter, the same
// adapter idiom the teacher uses to convert bare funcs into vertex/handler
// types (processus.go, routing.go).
type Order[T any] func(a, b T) bool

// LessEqualOf builds an Order from a Timestamp-conforming type.
func LessEqualOf[T Timestamp[T]]() Order[T] {
	return func(a, b T) bool { return a.LessEqual(b) }
}
