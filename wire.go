package timely

import "encoding/binary"

// HeaderSize is the size in bytes of a wire frame header (spec.md §6).
const HeaderSize = 40

// Header is the fixed, little-endian, length-prefix-only frame header
// every network message carries (spec.md §3 "Channel message", §6 "Wire
// format"). No checksum is carried; truncated or malformed headers are a
// deserialization failure, not a programming invariant violation (spec.md
// §7).
type Header struct {
	Channel uint64
	Source  uint64
	Target  uint64
	Length  uint64
	Seqno   uint64
}

// Encode writes h into dst, which must be at least HeaderSize bytes.
func (h Header) Encode(dst []byte) {
	binary.LittleEndian.PutUint64(dst[0:8], h.Channel)
	binary.LittleEndian.PutUint64(dst[8:16], h.Source)
	binary.LittleEndian.PutUint64(dst[16:24], h.Target)
	binary.LittleEndian.PutUint64(dst[24:32], h.Length)
	binary.LittleEndian.PutUint64(dst[32:40], h.Seqno)
}

// DecodeHeader reads a Header from the front of src. ok is false if src is
// shorter than HeaderSize, signaling the caller should wait for more bytes
// rather than treating this as a malformed frame.
func DecodeHeader(src []byte) (h Header, ok bool) {
	if len(src) < HeaderSize {
		return Header{}, false
	}
	h.Channel = binary.LittleEndian.Uint64(src[0:8])
	h.Source = binary.LittleEndian.Uint64(src[8:16])
	h.Target = binary.LittleEndian.Uint64(src[16:24])
	h.Length = binary.LittleEndian.Uint64(src[24:32])
	h.Seqno = binary.LittleEndian.Uint64(src[32:40])
	return h, true
}
