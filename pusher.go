package timely

// Pusher is the push half of a typed channel. Pushing nil signals
// end-of-stream for this pusher and releases its claim on whatever shared
// resource backs it (spec.md §4.4).
type Pusher[T any] interface {
	Push(v *T)
}

// localPusher delivers values directly into a sibling same-process
// worker's typed queue for this channel, with no serialization (spec.md
// §4.4, "Pushers targeting the same process use an intra-process typed
// queue").
type localPusher[T any] struct {
	q *MergeQueue[T]
}

func (p *localPusher[T]) Push(v *T) {
	if v == nil {
		p.q.ReleaseSender()
		return
	}
	p.q.Push(*v)
}

// remotePusher serializes values onto a SendEndpoint addressed to a
// remote process, framing each with a Header (spec.md §4.3, §4.4).
type remotePusher[T any] struct {
	endpoint *SendEndpoint
	codec    Codec[T]
	header   Header
	seqno    uint64
}

func (p *remotePusher[T]) Push(v *T) {
	if v == nil {
		p.endpoint.ReleaseSender()
		return
	}
	length := p.codec.Size(*v)
	buf := p.endpoint.Reserve(HeaderSize + length)

	p.seqno++
	hdr := p.header
	hdr.Length = uint64(length)
	hdr.Seqno = p.seqno
	hdr.Encode(buf[:HeaderSize])

	p.codec.Encode(*v, buf[HeaderSize:])
}

// loopbackPusher feeds a worker's own pipeline channel: no process or
// worker boundary is crossed at all (spec.md §4.4, pipeline()).
type loopbackPusher[T any] struct {
	q *MergeQueue[T]
}

func (p *loopbackPusher[T]) Push(v *T) {
	if v == nil {
		p.q.ReleaseSender()
		return
	}
	p.q.Push(*v)
}
