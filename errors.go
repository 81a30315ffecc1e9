package timely

import (
	"fmt"
	"time"
)

// ErrorKind classifies an Error so callers and log sinks can branch on
// category without string matching (spec.md §7).
type ErrorKind string

const (
	// ErrKindWireFormat covers truncated or malformed frame headers
	// encountered while parsing the incoming byte stream.
	ErrKindWireFormat ErrorKind = "wire_format"
	// ErrKindDeserialization covers a Codec failing to decode a payload
	// whose header parsed correctly.
	ErrKindDeserialization ErrorKind = "deserialization"
	// ErrKindBootstrap covers failures dialing or accepting peer
	// connections during process handshake.
	ErrKindBootstrap ErrorKind = "bootstrap"
	// ErrKindTransport covers socket read/write failures after a
	// connection is established.
	ErrKindTransport ErrorKind = "transport"
	// ErrKindOperator covers a panic recovered from a scheduled
	// operator's Schedule call.
	ErrKindOperator ErrorKind = "operator"
)

// Error is the error type carried out of worker- and network-facing
// operations, tagging the failure with the location and time it occurred
// so a log sink can correlate it without parsing the message (spec.md
// §7).
type Error struct {
	Err        error
	Kind       ErrorKind
	Worker     int
	OperatorID string
	Time       time.Time
}

// NewError wraps err with classification and worker/operator context.
func NewError(kind ErrorKind, worker int, operatorID string, err error) *Error {
	return &Error{Err: err, Kind: kind, Worker: worker, OperatorID: operatorID, Time: timeNow()}
}

func (e *Error) Error() string {
	return fmt.Sprintf("timely: %s worker=%d operator=%q: %v", e.Kind, e.Worker, e.OperatorID, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// timeNow is indirected so tests constructing Error values deterministically
// can still compile against time.Time; production code just calls
// time.Now.
var timeNow = time.Now
