package timely

import (
	"strconv"
	"strings"
	"time"
)

// addressKey renders a dataflow address as a stable map key.
func addressKey(address []int) string {
	var b strings.Builder
	for i, v := range address {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(v))
	}
	return b.String()
}

// dataflowEntry is one registered top-level dataflow, tracked alongside
// its insertion order (w.order). The worker itself never drops a
// dataflow; removal happens only through RemoveDataflow.
type dataflowEntry[T comparable, S any] struct {
	key string
	sub *Subgraph[T, S]
}

// Worker runs the single-threaded cooperative scheduling loop over every
// dataflow it hosts: on each Step, it drains whatever arrived on its
// allocator's channels into fresh activations, schedules exactly the
// addresses named in the activation set, and reports whether it still
// hosts any dataflow at all (spec.md §4.8). It does not drop idle or
// completed dataflows; a dataflow stays hosted until RemoveDataflow.
type Worker[T comparable, S any] struct {
	Index int
	Peers int

	activations *Activations
	dataflows   map[string]*dataflowEntry[T, S]
	order       []string

	allocator *Allocator
	events    <-chan ChannelEvent
}

// NewWorker builds a worker at index among peers workers total.
func NewWorker[T comparable, S any](index, peers int) *Worker[T, S] {
	return &Worker[T, S]{
		Index:       index,
		Peers:       peers,
		activations: NewActivations(),
		dataflows:   map[string]*dataflowEntry[T, S]{},
	}
}

// SetAllocator wires the worker to the channel allocator backing its
// dataflow edges and to the events feed a BinaryReceiver populates as
// frames arrive, so Step can turn wire activity into activations by the
// channel's remembered dataflow address (spec.md §4.8, steps 1-2).
func (w *Worker[T, S]) SetAllocator(alloc *Allocator, events <-chan ChannelEvent) {
	w.allocator = alloc
	w.events = events
}

// Activations exposes the worker's wake set so operators and network I/O
// threads can activate a dataflow address from any goroutine.
func (w *Worker[T, S]) Activations() *Activations {
	return w.activations
}

// AddDataflow registers a finalized subgraph at its own path, activating
// it immediately so the first Step call gives it a chance to run.
func (w *Worker[T, S]) AddDataflow(sub *Subgraph[T, S]) {
	key := addressKey(sub.Path())
	w.dataflows[key] = &dataflowEntry[T, S]{key: key, sub: sub}
	w.order = append(w.order, key)
	w.activations.Activate(key)
}

// drainEvents folds every ChannelEvent buffered on the events feed into
// an activation at that channel's remembered dataflow address, without
// blocking if none are ready (spec.md §4.8, allocator.receive() +
// "drain events, enqueue activations by remembered channel address").
func (w *Worker[T, S]) drainEvents() {
	if w.events == nil || w.allocator == nil {
		return
	}
	for {
		select {
		case ev := <-w.events:
			if addr, ok := w.allocator.Address(ev.Channel); ok {
				w.activations.Activate(addressKey(addr))
			}
		default:
			return
		}
	}
}

// scheduleActivated schedules every dataflow named in the current
// activation batch once and reports whether any of them did work.
func (w *Worker[T, S]) scheduleActivated() bool {
	addrs := w.activations.Extract()
	active := false

	for _, key := range addrs {
		entry, ok := w.dataflows[key]
		if !ok {
			continue
		}
		if entry.sub.Schedule() {
			active = true
		}
	}

	return active
}

// Step drains arrived wire events into activations, schedules every
// activated dataflow once, and reports whether this worker still hosts any
// dataflow (spec.md §4.8, step(): "!dataflows.is_empty()"). It does not
// drop dataflows that have no further input or held capabilities; only
// RemoveDataflow removes one.
func (w *Worker[T, S]) Step() bool {
	w.drainEvents()
	w.scheduleActivated()
	w.reapCompleted()
	return len(w.dataflows) > 0
}

// StepOrPark drains events and schedules activated dataflows exactly as
// Step does, but reports whether any of them did work this round; if
// none did, it parks the worker on its activation set for up to timeout
// before returning (spec.md §4.8, step_or_park).
func (w *Worker[T, S]) StepOrPark(timeout time.Duration) bool {
	w.drainEvents()
	active := w.scheduleActivated()
	w.reapCompleted()
	if active {
		return true
	}
	w.activations.Wait(timeout)
	return false
}

// reapCompleted is a placeholder for drop-order sequencing: a dataflow
// only leaves w.order through an explicit RemoveDataflow call, since
// deciding "no operator will ever hold a capability again" needs the
// operator contract to expose a completion signal this package does not
// yet model. Kept as its own step so that signal has one place to land.
func (w *Worker[T, S]) reapCompleted() {}

// RemoveDataflow drops a dataflow by path, in whatever order the caller
// calls it — the worker does not reorder pending removals, so calling it
// in the order dataflows were added preserves drop-order sequencing with
// respect to the resources (channels, capabilities) they acquired.
func (w *Worker[T, S]) RemoveDataflow(path []int) {
	key := addressKey(path)
	delete(w.dataflows, key)
	kept := w.order[:0]
	for _, k := range w.order {
		if k != key {
			kept = append(kept, k)
		}
	}
	w.order = kept
}

// DataflowCount reports how many dataflows the worker is currently
// hosting, for diagnostics and tests.
func (w *Worker[T, S]) DataflowCount() int {
	return len(w.order)
}
