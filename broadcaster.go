package timely

import (
	"encoding/json"
	"fmt"
)

// ProgressTriple is one pointstamp change exchanged between peer workers
// running the same dataflow: which child and port it occurred at, on
// which side (Source = produced/internal, Target = consumed), the
// timestamp, and the signed delta (spec.md §3, §9 "Progress update
// exchange"; grounded on original_source/src/progress/subgraph.rs's use
// of progress::broadcast::{ProgressBroadcaster, Progress}, whose
// MessagesUpdate/FrontierUpdate variants carry exactly this (node, port,
// timestamp, delta) shape over self.broadcaster.send_and_recv).
type ProgressTriple[T any] struct {
	Node  int
	Port  int
	Kind  PortKind
	T     T
	Delta int64
}

// Broadcaster exchanges one subgraph's own pointstamp changes with every
// peer worker over the module's own exchange-channel substrate and
// returns everyone's changes merged together, the transport behind
// Subgraph.Schedule's step 3 (spec.md §4.7; grounded on
// original_source/src/progress/subgraph.rs:632's
// self.broadcaster.send_and_recv(&mut self.pointstamp_updates)).
type Broadcaster[T any] struct {
	pushers []Pusher[ProgressTriple[T]]
	puller  *Puller[ProgressTriple[T]]
}

// NewBroadcaster allocates an all-to-all exchange channel over alloc,
// identified by channel, for one subgraph's progress updates.
func NewBroadcaster[T any](alloc *Allocator, channel uint64, address []int, codec Codec[ProgressTriple[T]]) *Broadcaster[T] {
	pushers, puller := Allocate[ProgressTriple[T]](alloc, channel, address, codec)
	return &Broadcaster[T]{pushers: pushers, puller: puller}
}

// SendAndRecv pushes every triple in outgoing to each peer and returns
// outgoing merged with whatever arrived from peers since the last call. A
// nil Broadcaster has no peers to exchange with, so Subgraph.Schedule
// skips straight to treating outgoing as already merged.
func (b *Broadcaster[T]) SendAndRecv(outgoing []ProgressTriple[T]) []ProgressTriple[T] {
	for i := range outgoing {
		t := outgoing[i]
		for _, p := range b.pushers {
			p.Push(&t)
		}
	}

	merged := append([]ProgressTriple[T]{}, outgoing...)
	for {
		tr, ok := b.puller.Pull()
		if !ok {
			break
		}
		merged = append(merged, tr)
	}
	return merged
}

// ProgressTripleJSONCodec implements Codec[ProgressTriple[T]] by
// marshaling through encoding/json, the same approach
// operators.JSONCodec takes for Record, for dataflows whose timestamp
// type is itself JSON-marshalable.
type ProgressTripleJSONCodec[T any] struct{}

func (ProgressTripleJSONCodec[T]) Size(v ProgressTriple[T]) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

func (ProgressTripleJSONCodec[T]) Encode(v ProgressTriple[T], dst []byte) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	copy(dst, b)
}

func (ProgressTripleJSONCodec[T]) Decode(src []byte) (ProgressTriple[T], error) {
	var v ProgressTriple[T]
	if err := json.Unmarshal(src, &v); err != nil {
		return v, fmt.Errorf("timely: decode progress triple: %w", err)
	}
	return v, nil
}
