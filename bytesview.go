package timely

import (
	"fmt"
	"sync/atomic"
)

// DefaultBufferSize is the default size of a backing allocation handed out
// by a Stash (spec.md §4.1): 1 MiB.
const DefaultBufferSize = 1 << 20

// bufOwner is the refcounted backing allocation a family of BytesMut/Bytes
// views shares. It plays the role of the Rust original's Arc<dyn Any>
// (original_source/bytes/src/lib.rs): the allocation's address is stable
// for as long as any view exists, and the count of live views is tracked
// explicitly because Go has no destructors to hook.
type bufOwner struct {
	buf  []byte
	refs atomic.Int64
}

func newOwner(buf []byte) *bufOwner {
	o := &bufOwner{buf: buf}
	o.refs.Store(1)
	return o
}

func (o *bufOwner) retain() {
	o.refs.Add(1)
}

// release drops one reference and reports whether this was the last one.
func (o *bufOwner) release() bool {
	return o.refs.Add(-1) == 0
}

func (o *bufOwner) soleOwner() bool {
	return o.refs.Load() == 1
}

// BytesMut is a writable view into a shared backing allocation. Exactly one
// BytesMut (or none) may be live over any given byte range at a time;
// Freeze is the only way to turn it into a shareable Bytes, and doing so
// consumes the BytesMut, so no mutable and shared view can coexist over the
// same range (spec.md §4.1).
type BytesMut struct {
	owner *bufOwner
	start int
	end   int
}

// NewBytesMut takes ownership of buf as a fresh backing allocation.
func NewBytesMut(buf []byte) *BytesMut {
	return &BytesMut{owner: newOwner(buf), start: 0, end: len(buf)}
}

// Len reports the number of bytes in the view.
func (b *BytesMut) Len() int { return b.end - b.start }

// Bytes exposes the view as a mutable slice. The slice is only valid until
// the next call that changes b's bounds (ExtractTo, Freeze).
func (b *BytesMut) Bytes() []byte { return b.owner.buf[b.start:b.end] }

// ExtractTo splits off [0, i) as a new frozen Bytes view sharing this
// view's owner, advancing the receiver past it. It panics if i exceeds the
// current length: this is a programming invariant violation per spec.md
// §7, not a recoverable error.
func (b *BytesMut) ExtractTo(i int) Bytes {
	if i > b.Len() {
		panic(fmt.Sprintf("timely: ExtractTo(%d) exceeds length %d", i, b.Len()))
	}

	result := BytesMut{owner: b.owner, start: b.start, end: b.start + i}
	b.owner.retain()
	b.start += i

	return result.Freeze()
}

// Freeze converts the mutable view into a shared Bytes view. The receiver
// must not be used afterward.
func (b *BytesMut) Freeze() Bytes {
	return Bytes{owner: b.owner, start: b.start, end: b.end}
}

// TryRecover reclaims the full original backing allocation if this is the
// only live view into it, resetting the receiver's bounds to span it and
// returning true; otherwise it leaves the receiver unchanged and returns
// false. This is the mechanism a send endpoint uses to return a buffer to
// its stash once every reader has released its Bytes (spec.md §4.1, §4.2).
func (b *BytesMut) TryRecover() bool {
	if !b.owner.soleOwner() {
		return false
	}
	b.start = 0
	b.end = len(b.owner.buf)
	return true
}

// Release drops the receiver's reference without freezing it, used when a
// send endpoint abandons a partially filled buffer (e.g. on shutdown).
func (b *BytesMut) Release() {
	b.owner.release()
}

// Bytes is a read-only view into a shared backing allocation. Multiple
// Bytes views may alias the same allocation concurrently; none of them may
// write to it.
type Bytes struct {
	owner *bufOwner
	start int
	end   int
}

// Len reports the number of bytes in the view.
func (b Bytes) Len() int { return b.end - b.start }

// Bytes exposes the view as a read-only slice.
func (b Bytes) Bytes() []byte { return b.owner.buf[b.start:b.end] }

// ExtractTo splits off [0, i) as a new Bytes view sharing this view's
// owner, advancing the receiver past it. Panics if i exceeds the current
// length (spec.md §7, programming invariant).
func (b *Bytes) ExtractTo(i int) Bytes {
	if i > b.Len() {
		panic(fmt.Sprintf("timely: ExtractTo(%d) exceeds length %d", i, b.Len()))
	}

	result := Bytes{owner: b.owner, start: b.start, end: b.start + i}
	b.owner.retain()
	b.start += i

	return result
}

// TryMerge attempts to merge other into the receiver. It succeeds iff both
// views share an owner and the receiver ends exactly where other begins,
// in which case the receiver is extended and one reference is released (two
// outstanding views became one). On failure other is returned unchanged and
// the receiver is untouched (spec.md §4.1, Testable Property 2).
func (b *Bytes) TryMerge(other Bytes) (remainder Bytes, merged bool) {
	if b.owner == other.owner && b.end == other.start {
		b.end = other.end
		b.owner.release()
		return Bytes{}, true
	}
	return other, false
}

// Release drops the receiver's reference. Every Bytes obtained from
// ExtractTo, BytesMut.Freeze, or a MergeQueue receive must eventually be
// released exactly once.
func (b Bytes) Release() {
	b.owner.release()
}

// Valid reports whether b refers to a live allocation; the zero Bytes
// returned alongside a successful TryMerge is not Valid.
func (b Bytes) Valid() bool {
	return b.owner != nil
}

// Stash is a per-endpoint free-list of backing allocations of a fixed
// default size, never shared across threads (spec.md §4.1, §5 "Byte-buffer
// stashes are per-endpoint and never shared across threads").
type Stash struct {
	bufSize int
	free    [][]byte
}

// NewStash builds a stash handing out buffers of bufSize bytes.
func NewStash(bufSize int) *Stash {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Stash{bufSize: bufSize}
}

// Acquire returns a buffer of the stash's default size, reusing a recycled
// one if available.
func (s *Stash) Acquire() []byte {
	if n := len(s.free); n > 0 {
		buf := s.free[n-1]
		s.free = s.free[:n-1]
		return buf
	}
	return make([]byte, s.bufSize)
}

// AcquireAtLeast returns a buffer of at least n bytes. If n fits the
// stash's default size, behaves like Acquire; otherwise it allocates a
// fresh, larger buffer outside the recycled pool (spec.md §4.3: the
// receiver "allocates one at doubled size if no progress was made").
func (s *Stash) AcquireAtLeast(n int) []byte {
	if n <= s.bufSize {
		return s.Acquire()
	}
	size := s.bufSize
	for size < n {
		size *= 2
	}
	return make([]byte, size)
}

// Release returns buf to the free list if it matches the stash's default
// size; oversized buffers (from AcquireAtLeast growth) are dropped instead
// of pooled, matching the original's "doubled size" buffers being one-offs.
func (s *Stash) Release(buf []byte) {
	if cap(buf) == s.bufSize {
		s.free = append(s.free, buf[:s.bufSize])
	}
}
