package timely

import "sync"

// Codec describes how to turn a typed channel's values into wire bytes and
// back, the piece of per-channel knowledge an Allocator needs to build a
// remote pusher or puller (spec.md §4.4). Size must return the exact
// number of bytes Encode will write.
type Codec[T any] interface {
	Size(v T) int
	Encode(v T, dst []byte)
	Decode(src []byte) (T, error)
}

// ProcessGroup is the shared state across every local (same-process)
// worker's allocator: the per-channel, per-target-worker typed queues that
// let same-process pushes skip serialization entirely (spec.md §4.4).
// Workers reach it only through Allocator, never directly.
type ProcessGroup struct {
	mu    sync.Mutex
	intra map[uint64]map[int]any
}

// NewProcessGroup builds an empty group, shared by every Allocator for
// workers hosted in one process.
func NewProcessGroup() *ProcessGroup {
	return &ProcessGroup{intra: map[uint64]map[int]any{}}
}

func intraQueue[T any](g *ProcessGroup, channel uint64, targetWorker int) *MergeQueue[T] {
	g.mu.Lock()
	defer g.mu.Unlock()
	byWorker, ok := g.intra[channel]
	if !ok {
		byWorker = map[int]any{}
		g.intra[channel] = byWorker
	}
	if existing, ok := byWorker[targetWorker]; ok {
		return existing.(*MergeQueue[T])
	}
	q := NewMergeQueue[T](0)
	byWorker[targetWorker] = q
	return q
}

// Allocator is one worker's channel-allocation façade: it mints the
// pushers and puller for a logical dataflow edge, routing same-process
// traffic through shared memory and cross-process traffic through a
// per-remote-process SendEndpoint and the process's ChannelRouter (spec.md
// §4.4).
type Allocator struct {
	WorkerIndex int
	WorkerCount int

	// ProcessOf maps a global worker index to the process index hosting
	// it; workers sharing a process index share a ProcessGroup.
	ProcessOf func(worker int) int

	Group  *ProcessGroup
	Router *ChannelRouter

	mu            sync.Mutex
	sendEndpoints map[int]*SendEndpoint
	newEndpoint   func(remoteProcess int) *SendEndpoint

	addresses map[uint64][]int
}

// NewAllocator builds an allocator for one worker. newEndpoint is called
// at most once per distinct remote process index, the first time this
// worker allocates a channel reaching that process; it must return a
// SendEndpoint whose queue is already wired to that process's
// BinarySender.
func NewAllocator(workerIndex, workerCount int, processOf func(worker int) int, group *ProcessGroup, router *ChannelRouter, newEndpoint func(remoteProcess int) *SendEndpoint) *Allocator {
	return &Allocator{
		WorkerIndex:   workerIndex,
		WorkerCount:   workerCount,
		ProcessOf:     processOf,
		Group:         group,
		Router:        router,
		sendEndpoints: map[int]*SendEndpoint{},
		newEndpoint:   newEndpoint,
		addresses:     map[uint64][]int{},
	}
}

func (a *Allocator) sendEndpointFor(remoteProcess int) *SendEndpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	if se, ok := a.sendEndpoints[remoteProcess]; ok {
		return se
	}
	se := a.newEndpoint(remoteProcess)
	a.sendEndpoints[remoteProcess] = se
	return se
}

// Address returns the dataflow address (path from the root scope to the
// target operator input) that Allocate or Pipeline recorded for channel,
// used by the worker loop when scheduling activations (spec.md §4.4, §4.8).
func (a *Allocator) Address(channel uint64) ([]int, bool) {
	addr, ok := a.addresses[channel]
	return addr, ok
}

// Allocate mints one pusher per worker in the computation (including a
// no-op pusher at this worker's own index — exchange channels never loop
// back to their own source through the allocator; use Pipeline for that)
// plus a single puller receiving everything addressed to this worker on
// this channel (spec.md §4.4).
func Allocate[T any](a *Allocator, channel uint64, address []int, codec Codec[T]) ([]Pusher[T], *Puller[T]) {
	a.addresses[channel] = address
	selfProcess := a.ProcessOf(a.WorkerIndex)

	pushers := make([]Pusher[T], a.WorkerCount)
	for w := 0; w < a.WorkerCount; w++ {
		if w == a.WorkerIndex {
			pushers[w] = noopPusher[T]{}
			continue
		}
		if a.ProcessOf(w) == selfProcess {
			q := intraQueue[T](a.Group, channel, w)
			q.RetainSender()
			pushers[w] = &localPusher[T]{q: q}
			continue
		}
		se := a.sendEndpointFor(a.ProcessOf(w))
		se.RetainSender()
		pushers[w] = &remotePusher[T]{
			endpoint: se,
			codec:    codec,
			header:   Header{Channel: channel, Source: uint64(a.WorkerIndex), Target: uint64(w)},
		}
	}

	localQ := intraQueue[T](a.Group, channel, a.WorkerIndex)
	remoteQ := NewMergeQueue[Bytes](0)
	remoteQ.RetainSender()
	a.Router.Register(uint64(a.WorkerIndex), channel, remoteQ)

	puller := &Puller[T]{
		codec:  codec,
		local:  &queueReader[T]{q: localQ},
		remote: &queueReader[Bytes]{q: remoteQ},
	}
	return pushers, puller
}

// Pipeline mints a single pusher/puller pair for a channel that never
// leaves this worker, used for self-loop edges that would otherwise route
// through Allocate's no-op self entry (spec.md §4.4, pipeline()).
func Pipeline[T any](a *Allocator, channel uint64, address []int) (Pusher[T], *Puller[T]) {
	a.addresses[channel] = address
	q := NewMergeQueue[T](0)
	q.RetainSender()
	puller := &Puller[T]{
		local:  &queueReader[T]{q: q},
		remote: &queueReader[Bytes]{q: NewMergeQueue[Bytes](0)},
	}
	return &loopbackPusher[T]{q: q}, puller
}

// noopPusher absorbs the self-targeted slot Allocate must still produce so
// callers can index pushers by worker number uniformly; pushing into it,
// including end-of-stream, is a deliberate no-op.
type noopPusher[T any] struct{}

func (noopPusher[T]) Push(*T) {}
