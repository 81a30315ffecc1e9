package timely

import (
	"bytes"
	"io"
	"testing"
	"time"
)

type byteReader struct {
	r io.Reader
}

func (b *byteReader) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

func TestBinaryReceiverRoutesFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	frame := make([]byte, HeaderSize+len(payload))
	Header{Channel: 7, Source: 3, Target: 5, Length: uint64(len(payload)), Seqno: 42}.Encode(frame)
	copy(frame[HeaderSize:], payload)

	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write(frame)
		pw.Close()
	}()

	router := NewChannelRouter()
	q := NewMergeQueue[Bytes](0)
	router.Register(5, 7, q)

	events := make(chan ChannelEvent, 4)
	recv := NewBinaryReceiver(&byteReader{pr}, NewStash(64), router, events, nil)

	done := make(chan struct{})
	go func() {
		recv.Run()
		close(done)
	}()

	select {
	case ev := <-events:
		if ev.Channel != 7 {
			t.Fatalf("event channel = %d, want 7", ev.Channel)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for channel event")
	}

	var drained []Bytes
	deadline := time.Now().Add(time.Second)
	for len(drained) == 0 && time.Now().Before(deadline) {
		q.DrainInto(&drained)
	}
	if len(drained) != 1 {
		t.Fatalf("expected exactly one routed payload, got %d", len(drained))
	}
	if !bytes.Equal(drained[0].Bytes(), payload) {
		t.Fatalf("payload mismatch: got %v want %v", drained[0].Bytes(), payload)
	}
	drained[0].Release()

	<-done
}

func TestSendEndpointReserveAndRecoverBuffer(t *testing.T) {
	stash := NewStash(64)
	q := NewMergeQueue[Bytes](0)
	send := NewSendEndpoint(q, stash)

	w := send.Reserve(16)
	for i := range w {
		w[i] = byte(i)
	}
	send.Publish()

	var drained []Bytes
	q.DrainInto(&drained)
	if len(drained) != 1 || drained[0].Len() != 16 {
		t.Fatalf("expected one 16-byte chunk, got %+v", drained)
	}

	// Reserving more than the 48 bytes left retires the first buffer to the
	// in-progress list. Until the reader releases its view, that buffer
	// cannot be recovered back into the stash.
	send.Reserve(60)
	send.harvestAll()
	if n := len(stash.free); n != 0 {
		t.Fatalf("stash holds %d buffers while a view is outstanding, want 0", n)
	}

	drained[0].Release()
	send.Publish()
	if n := len(stash.free); n != 1 {
		t.Fatalf("stash holds %d buffers after the reader released its view, want 1", n)
	}
}
