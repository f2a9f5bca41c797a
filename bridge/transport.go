package bridge

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// ErrTransportClosed is returned by Send and Recv after Close.
var ErrTransportClosed = errors.New("bridge: transport closed")

// Transport is an asynchronous, in-order message channel between the script
// side and the native side. Send must be safe for concurrent use and must not
// wait on the peer reading; Recv is called from a single goroutine.
type Transport interface {
	Send(ctx context.Context, m *Message) error
	Recv(ctx context.Context) (*Message, error)
	Close() error
}

// Pipe returns two connected in-process transports. Messages are encoded to
// CBOR in transit so both ends see exactly what a remote peer would.
func Pipe() (Transport, Transport) {
	a, b := newQueue(), newQueue()
	return &pipeEnd{in: a, out: b}, &pipeEnd{in: b, out: a}
}

type pipeEnd struct {
	in  *queue
	out *queue
}

func (p *pipeEnd) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := MarshalMessage(m)
	if err != nil {
		return err
	}
	return p.out.push(data)
}

func (p *pipeEnd) Recv(ctx context.Context) (*Message, error) {
	data, err := p.in.pop(ctx)
	if err != nil {
		return nil, err
	}
	return UnmarshalMessage(data)
}

func (p *pipeEnd) Close() error {
	p.in.close()
	p.out.close()
	return nil
}

// queue is an unbounded FIFO so a sender never waits on its peer.
type queue struct {
	notify chan struct{}
	items  [][]byte
	mu     sync.Mutex
	closed bool
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(data []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrTransportClosed
	}
	q.items = append(q.items, data)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *queue) pop(ctx context.Context) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			data := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return data, nil
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, ErrTransportClosed
		}

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// StreamTransport carries CBOR messages over a byte stream such as a socket
// or a child process's stdio. CBOR items are self-delimiting, so no extra
// framing is needed. Recv blocks in the underlying reader and only observes
// ctx between messages. Send blocks until the peer reads, so both ends must
// keep a reader running.
type StreamTransport struct {
	enc    *cbor.Encoder
	dec    *cbor.Decoder
	closer io.Closer
	mu     sync.Mutex
}

// NewStreamTransport wraps rw.
func NewStreamTransport(rw io.ReadWriteCloser) *StreamTransport {
	return &StreamTransport{
		enc:    cborEncMode.NewEncoder(rw),
		dec:    cbor.NewDecoder(rw),
		closer: rw,
	}
}

// Send encodes m onto the stream.
func (s *StreamTransport) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(m)
}

// Recv decodes the next message from the stream.
func (s *StreamTransport) Recv(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var m Message
	if err := s.dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
			return nil, ErrTransportClosed
		}
		return nil, err
	}
	return &m, nil
}

// Close closes the underlying stream.
func (s *StreamTransport) Close() error {
	return s.closer.Close()
}
