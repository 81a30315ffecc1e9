package timely

import "testing"

func TestBytesMutExtractAndMerge(t *testing.T) {
	raw := make([]byte, 1024)
	shared1 := NewBytesMut(raw)

	shared2 := shared1.ExtractTo(100)
	shared3 := shared1.ExtractTo(100)
	shared4 := shared2.ExtractTo(60)

	if got := shared1.Len(); got != 824 {
		t.Fatalf("shared1.Len() = %d, want 824", got)
	}
	if got := shared2.Len(); got != 40 {
		t.Fatalf("shared2.Len() = %d, want 40", got)
	}
	if got := shared3.Len(); got != 100 {
		t.Fatalf("shared3.Len() = %d, want 100", got)
	}
	if got := shared4.Len(); got != 60 {
		t.Fatalf("shared4.Len() = %d, want 60", got)
	}

	for i := range shared1.Bytes() {
		shared1.Bytes()[i] = 1
	}

	final := shared1.Freeze()

	// memory in slabs [4, 2, 3, 1]: merge back in arbitrary order.
	if _, ok := shared2.TryMerge(shared3); !ok {
		t.Fatalf("expected shared2 to merge with shared3")
	}
	if _, ok := shared2.TryMerge(final); !ok {
		t.Fatalf("expected shared2 to merge with final remainder")
	}
	if _, ok := shared4.TryMerge(shared2); !ok {
		t.Fatalf("expected shared4 to merge with shared2")
	}

	if got := shared4.Len(); got != 1024 {
		t.Fatalf("shared4.Len() = %d, want 1024", got)
	}
}

func TestBytesTryMergeRejectsNonAdjacent(t *testing.T) {
	raw := make([]byte, 300)
	m := NewBytesMut(raw)

	a := m.ExtractTo(100)
	b := m.ExtractTo(100)

	// a and b are not adjacent to each other after a further split.
	b.ExtractTo(50)

	if remainder, ok := a.TryMerge(b); ok {
		t.Fatalf("expected merge of non-adjacent views to fail")
	} else if remainder.Len() != b.Len() {
		t.Fatalf("expected unchanged remainder on failed merge")
	}
}

func TestBytesMutTryRecover(t *testing.T) {
	raw := make([]byte, DefaultBufferSize)
	sender := NewBytesMut(raw)

	// Sender fills the whole buffer and ships it.
	sent := sender.ExtractTo(sender.Len())

	if sender.TryRecover() {
		t.Fatalf("TryRecover should fail while the sent view is outstanding")
	}

	sent.Release()

	if !sender.TryRecover() {
		t.Fatalf("TryRecover should succeed once the only outstanding view is released")
	}
	if got := sender.Len(); got != DefaultBufferSize {
		t.Fatalf("sender.Len() = %d, want %d after recovery", got, DefaultBufferSize)
	}
}

func TestStashReuse(t *testing.T) {
	s := NewStash(64)

	buf := s.Acquire()
	if len(buf) != 64 {
		t.Fatalf("Acquire() len = %d, want 64", len(buf))
	}

	s.Release(buf)
	reused := s.Acquire()
	if &reused[0] != &buf[0] {
		t.Fatalf("expected Acquire to reuse the released buffer")
	}

	big := s.AcquireAtLeast(200)
	if len(big) < 200 {
		t.Fatalf("AcquireAtLeast(200) len = %d, want >= 200", len(big))
	}

	s.Release(big)
	if after := s.Acquire(); len(after) != 64 {
		t.Fatalf("oversized buffer should not be pooled, got len %d", len(after))
	}
}
