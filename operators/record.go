// Package operators adapts the teacher's Initium/Terminus external-system
// connectors (components/*) to push and pull Records through the core
// channel substrate instead of handing batches to an in-process channel
// of their own.
package operators

import (
	"encoding/json"
	"fmt"

	timely "github.com/flowmesh/timely"
)

// Record is the payload type every operator in this package exchanges:
// a decoded JSON object, matching the teacher's components' use of
// map[string]interface{} as the unit of external-system data.
type Record map[string]interface{}

// JSONCodec implements timely.Codec[Record] by marshaling through
// encoding/json, the same serialization the teacher's components already
// depend on.
type JSONCodec struct{}

// Size marshals v to measure its encoded length. Operators exchanging
// high volumes of records should prefer a codec that can size without a
// full marshal; JSON has no such shortcut, so this does the work twice
// (size, then encode) for the sake of staying on the teacher's wire
// format.
func (JSONCodec) Size(v Record) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

// Encode writes v's JSON encoding into dst, which must be exactly
// Size(v) bytes.
func (JSONCodec) Encode(v Record, dst []byte) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	copy(dst, b)
}

// Decode parses src as a JSON object.
func (JSONCodec) Decode(src []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(src, &r); err != nil {
		return nil, fmt.Errorf("operators: decode record: %w", err)
	}
	return r, nil
}

// Source is something that produces Records from an external system and
// pushes them onto every worker's input, the role the teacher's Initium
// played for a Stream.
type Source interface {
	// Run pushes Records to pusher until ctx is cancelled, then pushes a
	// nil to signal end-of-stream.
	Run(pusher timely.Pusher[Record])
}

// Sink is something that drains Records pulled from a worker's output
// and writes them to an external system, the role the teacher's
// Terminus played for a Stream.
type Sink interface {
	// Drain pulls from puller until it reports Done, writing each
	// Record to the external system.
	Drain(puller *timely.Puller[Record])
}
