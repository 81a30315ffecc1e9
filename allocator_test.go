package timely

import (
	"encoding/binary"
	"errors"
	"testing"
)

type uint64Codec struct{}

func (uint64Codec) Size(uint64) int { return 8 }
func (uint64Codec) Encode(v uint64, dst []byte) {
	binary.LittleEndian.PutUint64(dst, v)
}
func (uint64Codec) Decode(src []byte) (uint64, error) {
	if len(src) < 8 {
		return 0, errors.New("short buffer")
	}
	return binary.LittleEndian.Uint64(src), nil
}

func singleProcessOf(int) int { return 0 }

func TestAllocatorIntraProcessExchange(t *testing.T) {
	group := NewProcessGroup()
	router := NewChannelRouter()

	a0 := NewAllocator(0, 2, singleProcessOf, group, router, nil)
	a1 := NewAllocator(1, 2, singleProcessOf, group, router, nil)

	pushers0, puller0 := Allocate[uint64](a0, 42, []int{0}, uint64Codec{})
	pushers1, puller1 := Allocate[uint64](a1, 42, []int{0}, uint64Codec{})

	v := uint64(7)
	pushers0[1].Push(&v)
	pushers0[1].Push(nil)

	got, ok := puller1.Pull()
	if !ok || got != 7 {
		t.Fatalf("puller1.Pull() = (%v, %v), want (7, true)", got, ok)
	}
	if _, ok := puller1.Pull(); ok {
		t.Fatalf("expected no further values after end-of-stream")
	}

	v2 := uint64(9)
	pushers1[0].Push(&v2)
	pushers1[0].Push(nil)

	got2, ok := puller0.Pull()
	if !ok || got2 != 9 {
		t.Fatalf("puller0.Pull() = (%v, %v), want (9, true)", got2, ok)
	}

	addr, ok := a0.Address(42)
	if !ok || len(addr) != 1 || addr[0] != 0 {
		t.Fatalf("Address(42) = (%v, %v), want ([0], true)", addr, ok)
	}
}

func TestPipelineSelfLoop(t *testing.T) {
	group := NewProcessGroup()
	router := NewChannelRouter()
	a := NewAllocator(0, 1, singleProcessOf, group, router, nil)

	pusher, puller := Pipeline[uint64](a, 1, []int{0, 1})

	v := uint64(3)
	pusher.Push(&v)

	got, ok := puller.Pull()
	if !ok || got != 3 {
		t.Fatalf("Pull() = (%v, %v), want (3, true)", got, ok)
	}
}
