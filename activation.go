package timely

import (
	"sync"
	"time"
)

// Activations is the worker's wake set: dataflow addresses that have
// become active (new input arrived, a frontier moved) since they were
// last scheduled, delivered to the next Step call in FIFO order of first
// activation within the current round (spec.md §4.8).
type Activations struct {
	mu     sync.Mutex
	buzz   *buzzer
	queued map[string]bool
	order  []string
}

// NewActivations builds an empty activation set.
func NewActivations() *Activations {
	return &Activations{queued: map[string]bool{}, buzz: newBuzzer()}
}

// Activate marks address as needing a Schedule call, waking any worker
// parked in Wait. Activating an already-queued address is a no-op.
func (a *Activations) Activate(address string) {
	a.mu.Lock()
	if !a.queued[address] {
		a.queued[address] = true
		a.order = append(a.order, address)
	}
	a.mu.Unlock()
	a.buzz.wake()
}

// Extract drains every currently queued address in activation order and
// clears the queue.
func (a *Activations) Extract() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := a.order
	a.order = nil
	for _, addr := range out {
		delete(a.queued, addr)
	}
	return out
}

// Wait blocks until an address is activated or timeout elapses.
func (a *Activations) Wait(timeout time.Duration) {
	a.mu.Lock()
	empty := len(a.order) == 0
	a.mu.Unlock()
	if empty {
		a.buzz.wait(timeout)
	}
}
