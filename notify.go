package timely

import "container/heap"

// FrontierNotificator tracks requested notification timestamps and
// delivers them once the supplied frontiers no longer hold anything
// less-or-equal to them, matching spec.md §9's "operators may request
// notification at a timestamp" without duplicating pointstamp counting —
// the accounting lives entirely in the caller's MutableAntichain frontiers
// (supplemented from original_source/ notificator.rs, which this is a
// direct adaptation of, minus its Combiner/data generality: Go's lack of
// move semantics makes the plain count-per-timestamp case the useful one).
type FrontierNotificator[T comparable] struct {
	le        Order[T]
	pending   []pendingNotice[T]
	available notifyHeap[T]
}

type pendingNotice[T comparable] struct {
	t     T
	count int64
}

// NewFrontierNotificator builds an empty notificator ordered by le.
func NewFrontierNotificator[T comparable](le Order[T]) *FrontierNotificator[T] {
	return &FrontierNotificator[T]{le: le}
}

// NotifyAt requests a future notification at t.
func (n *FrontierNotificator[T]) NotifyAt(t T) {
	n.pending = append(n.pending, pendingNotice[T]{t: t, count: 1})
}

// MakeAvailable moves every pending request whose timestamp has no
// frontier element less-or-equal to it into the available heap.
func (n *FrontierNotificator[T]) MakeAvailable(frontiers []*MutableAntichain[T]) {
	if len(n.pending) == 0 {
		return
	}
	kept := n.pending[:0]
	for _, p := range n.pending {
		if notifyReady(n.le, p.t, frontiers) {
			heap.Push(&n.available, notifyItem[T]{t: p.t, count: p.count, le: n.le})
		} else {
			kept = append(kept, p)
		}
	}
	n.pending = kept
}

func notifyReady[T comparable](le Order[T], t T, frontiers []*MutableAntichain[T]) bool {
	for _, f := range frontiers {
		if f.Frontier().LessEqual(t) {
			return false
		}
	}
	return true
}

// Next returns the next available notification, if any, draining the
// pending set against frontiers first.
func (n *FrontierNotificator[T]) Next(frontiers []*MutableAntichain[T]) (t T, count int64, ok bool) {
	if n.available.Len() == 0 {
		n.MakeAvailable(frontiers)
	}
	if n.available.Len() == 0 {
		var zero T
		return zero, 0, false
	}
	item := heap.Pop(&n.available).(notifyItem[T])
	return item.t, item.count, true
}

// ForEach repeatedly calls logic for every notification made available by
// frontiers, in non-decreasing order with respect to frontiers observed so
// far.
func (n *FrontierNotificator[T]) ForEach(frontiers []*MutableAntichain[T], logic func(t T, count int64)) {
	n.MakeAvailable(frontiers)
	for {
		t, count, ok := n.Next(frontiers)
		if !ok {
			return
		}
		logic(t, count)
	}
}

type notifyItem[T comparable] struct {
	t     T
	count int64
	le    Order[T]
}

type notifyHeap[T comparable] []notifyItem[T]

func (h notifyHeap[T]) Len() int { return len(h) }
func (h notifyHeap[T]) Less(i, j int) bool {
	if h[i].le(h[i].t, h[j].t) {
		return true
	}
	return false
}
func (h notifyHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *notifyHeap[T]) Push(x any)   { *h = append(*h, x.(notifyItem[T])) }
func (h *notifyHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
