package timely

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// routeKey addresses one local worker's queue for one channel, the unit
// the binary receiver routes incoming payloads to (spec.md §4.3, §8
// "Header parse": "route a Bytes... to worker 5's channel 7").
type routeKey struct {
	Worker  uint64
	Channel uint64
}

// ChannelRouter maps (target worker, channel) pairs to the local merge
// queue that should receive the payload, the registry the allocator
// populates when it mints a puller for a channel (spec.md §4.4).
type ChannelRouter struct {
	mu     sync.Mutex
	queues map[routeKey]*MergeQueue[Bytes]
}

// NewChannelRouter builds an empty router.
func NewChannelRouter() *ChannelRouter {
	return &ChannelRouter{queues: map[routeKey]*MergeQueue[Bytes]{}}
}

// Register installs q as the destination for (worker, channel).
func (r *ChannelRouter) Register(worker, channel uint64, q *MergeQueue[Bytes]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queues[routeKey{worker, channel}] = q
}

// Unregister removes the route, called when a puller's canary fires
// (spec.md §5, Cancellation).
func (r *ChannelRouter) Unregister(worker, channel uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.queues, routeKey{worker, channel})
}

// Route looks up the destination queue for (worker, channel).
func (r *ChannelRouter) Route(worker, channel uint64) (*MergeQueue[Bytes], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[routeKey{worker, channel}]
	return q, ok
}

// BinaryReceiver owns one large backing buffer and a stash of spares for a
// single remote process connection, parsing frames from the incoming byte
// stream and routing payloads through a ChannelRouter (spec.md §4.3).
type BinaryReceiver struct {
	conn   io.Reader
	stash  *Stash
	router *ChannelRouter
	events chan<- ChannelEvent
	logger *slog.Logger
}

// ChannelEvent reports activity on a channel to the worker loop's events
// feed (spec.md §4.8, step 2).
type ChannelEvent struct {
	Channel uint64
}

// NewBinaryReceiver builds a receiver reading frames from conn.
func NewBinaryReceiver(conn io.Reader, stash *Stash, router *ChannelRouter, events chan<- ChannelEvent, logger *slog.Logger) *BinaryReceiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &BinaryReceiver{conn: conn, stash: stash, router: router, events: events, logger: logger}
}

// Run reads frames until the connection errors or is closed. Intended to
// run on its own goroutine, one per remote process (spec.md §4.3).
func (r *BinaryReceiver) Run() {
	buf := r.stash.Acquire()
	mut := NewBytesMut(buf)
	writePos := 0
	var inflight []*BytesMut

	for {
		n, err := r.conn.Read(mut.Bytes()[writePos:])
		if n > 0 {
			writePos += n
		}
		if err != nil {
			if err != io.EOF {
				r.logger.Error("binary receiver socket error", "error", err)
			}
			return
		}

		progressed := false
		for {
			avail := mut.Bytes()[:writePos]
			h, ok := DecodeHeader(avail)
			if !ok {
				break
			}
			total := HeaderSize + int(h.Length)
			if writePos < total {
				break
			}

			frame := mut.ExtractTo(total)
			hdrView := frame.ExtractTo(HeaderSize)
			hdrView.Release()
			payload := frame

			if q, found := r.router.Route(h.Target, h.Channel); found {
				q.Push(payload)
				if r.events != nil {
					r.events <- ChannelEvent{Channel: h.Channel}
				}
			} else {
				payload.Release()
			}

			writePos -= total
			progressed = true
		}

		inflight = harvestInflight(r.stash, inflight)

		if writePos == mut.Len() {
			tail := append([]byte(nil), mut.Bytes()[:writePos]...)
			nextSize := len(mut.Bytes())
			if !progressed {
				nextSize *= 2
			}
			newBuf := r.stash.AcquireAtLeast(nextSize)
			newMut := NewBytesMut(newBuf)
			copy(newMut.Bytes(), tail)

			inflight = append(inflight, mut)
			mut = newMut
			writePos = len(tail)
		}
	}
}

func harvestInflight(stash *Stash, inflight []*BytesMut) []*BytesMut {
	kept := inflight[:0]
	for _, old := range inflight {
		if old.TryRecover() {
			stash.Release(old.Bytes())
		} else {
			kept = append(kept, old)
		}
	}
	return kept
}

// BinarySender drains the outbound merge queues feeding one remote
// process — one per local worker with traffic destined there — and writes
// each Bytes to the socket in sender order, flushing after each batch
// (spec.md §4.3).
type BinarySender struct {
	conn   io.Writer
	queues []*MergeQueue[Bytes]
	logger *slog.Logger
}

// NewBinarySender builds a sender writing to conn.
func NewBinarySender(conn io.Writer, queues []*MergeQueue[Bytes], logger *slog.Logger) *BinarySender {
	if logger == nil {
		logger = slog.Default()
	}
	return &BinarySender{conn: conn, queues: queues, logger: logger}
}

// Run drains and writes until every queue is Done, or a socket write
// fails.
func (s *BinarySender) Run() {
	var drained []Bytes
	for {
		any := false
		for _, q := range s.queues {
			drained = drained[:0]
			if q.DrainInto(&drained) > 0 {
				any = true
				for _, b := range drained {
					if _, err := s.conn.Write(b.Bytes()); err != nil {
						s.logger.Error("binary sender socket error", "error", err)
						drainAndRelease(s.queues)
						return
					}
					b.Release()
				}
			}
		}

		if !any {
			if allDone(s.queues) {
				drainAndRelease(s.queues)
				return
			}
			s.queues[0].Wait(50 * time.Millisecond)
		}
	}
}

func allDone(queues []*MergeQueue[Bytes]) bool {
	for _, q := range queues {
		if !q.Done() {
			return false
		}
	}
	return true
}

func drainAndRelease(queues []*MergeQueue[Bytes]) {
	var drained []Bytes
	for _, q := range queues {
		drained = drained[:0]
		q.DrainInto(&drained)
		for _, b := range drained {
			b.Release()
		}
	}
}

// Bootstrap implements the process handshake of spec.md §6: each process
// opens a listener and initiates connections to every process with a
// lower index; on connect the initiator writes its own process id and the
// acceptor reads it, pairing the socket to the right peer index.
//
// Per spec.md §9's Open Question resolution, Bootstrap itself only
// performs the dial/accept/handshake dance; it hands back raw net.Conns
// rather than constructing an Exchange, so wiring those connections to
// BinarySender/BinaryReceiver pairs remains a separable concern of the
// launcher.
func Bootstrap(listener net.Listener, selfIndex int, peerAddrs []string, dialTimeout time.Duration) (map[int]net.Conn, error) {
	conns := make(map[int]net.Conn, len(peerAddrs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errCh := make(chan error, len(peerAddrs)+1)

	// Accept connections from every process with a higher index than us.
	expectedAccepts := len(peerAddrs) - selfIndex - 1
	if expectedAccepts > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < expectedAccepts; i++ {
				conn, err := listener.Accept()
				if err != nil {
					errCh <- fmt.Errorf("accept: %w", err)
					return
				}
				var idBuf [8]byte
				if _, err := io.ReadFull(conn, idBuf[:]); err != nil {
					errCh <- fmt.Errorf("read peer id: %w", err)
					return
				}
				peerID := int(binary.LittleEndian.Uint64(idBuf[:]))
				mu.Lock()
				conns[peerID] = conn
				mu.Unlock()
			}
		}()
	}

	// Dial every process with a lower index than us.
	for i := 0; i < selfIndex; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, err := net.DialTimeout("tcp", peerAddrs[i], dialTimeout)
			if err != nil {
				errCh <- fmt.Errorf("dial %s: %w", peerAddrs[i], err)
				return
			}
			var idBuf [8]byte
			binary.LittleEndian.PutUint64(idBuf[:], uint64(selfIndex))
			if _, err := conn.Write(idBuf[:]); err != nil {
				errCh <- fmt.Errorf("write self id: %w", err)
				return
			}
			mu.Lock()
			conns[i] = conn
			mu.Unlock()
		}()
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return conns, err
		}
	}

	return conns, nil
}
