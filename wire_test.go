package timely

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Channel: 7, Source: 3, Target: 5, Length: 12, Seqno: 42}

	buf := make([]byte, HeaderSize)
	h.Encode(buf)

	got, ok := DecodeHeader(buf)
	if !ok {
		t.Fatalf("DecodeHeader reported !ok for a full header")
	}
	if got != h {
		t.Fatalf("DecodeHeader = %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	if _, ok := DecodeHeader(make([]byte, HeaderSize-1)); ok {
		t.Fatalf("DecodeHeader should report !ok on a short buffer")
	}
}

func TestHeaderParseScenario(t *testing.T) {
	// Given the 40-byte header channel=7, source=3, target=5, length=12,
	// seqno=42 followed by 12 arbitrary payload bytes, a receiver must
	// route a Bytes of exactly those 12 bytes to worker 5's channel 7,
	// with sequence 42 (spec.md §8).
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	frame := make([]byte, HeaderSize+len(payload))
	Header{Channel: 7, Source: 3, Target: 5, Length: uint64(len(payload)), Seqno: 42}.Encode(frame)
	copy(frame[HeaderSize:], payload)

	h, ok := DecodeHeader(frame)
	if !ok {
		t.Fatalf("expected header to decode")
	}
	if h.Channel != 7 || h.Target != 5 || h.Seqno != 42 || h.Length != 12 {
		t.Fatalf("unexpected header %+v", h)
	}

	got := frame[HeaderSize : HeaderSize+int(h.Length)]
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: got %v want %v", got, payload)
	}
}
