package transport

import "sync"

const loopbackQueueSize = 64

var (
	_ Transport = (*Endpoint)(nil)
	_ Peer      = (*Endpoint)(nil)
)

// Endpoint is one side of an in-process transport pair. Delivery is
// asynchronous but order-preserving per endpoint: a single dispatch goroutine
// drains the inbound queue, so the listener sees messages in arrival order
// and never concurrently with itself.
type Endpoint struct {
	origin string
	peer   *Endpoint

	mu       sync.Mutex
	listener func(Message)
	closed   bool

	queue chan Message
	done  chan struct{}
}

// NewPair links two endpoints and starts their dispatch goroutines.
// Messages sent on one are delivered to the other, stamped with the
// sender's origin and identity. Each side is closed independently.
func NewPair(originA, originB string) (*Endpoint, *Endpoint) {
	a := newEndpoint(originA)
	b := newEndpoint(originB)
	a.peer, b.peer = b, a
	go a.dispatch()
	go b.dispatch()
	return a, b
}

func newEndpoint(origin string) *Endpoint {
	return &Endpoint{
		origin: origin,
		queue:  make(chan Message, loopbackQueueSize),
		done:   make(chan struct{}),
	}
}

// Origin returns the origin this endpoint sends as.
func (e *Endpoint) Origin() string { return e.origin }

// PeerOrigin returns the linked endpoint's origin.
func (e *Endpoint) PeerOrigin() string { return e.peer.origin }

// PeerSource returns the linked endpoint's identity.
func (e *Endpoint) PeerSource() any { return e.peer }

// Send queues data for delivery to the peer.
func (e *Endpoint) Send(data string) error {
	return e.peer.Deliver(Message{Origin: e.origin, Source: e, Data: data})
}

// Deliver injects an arbitrary inbound message, exactly as if it had arrived
// on the shared medium. Tests use it to simulate foreign or forged traffic.
func (e *Endpoint) Deliver(msg Message) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	select {
	case e.queue <- msg:
		return nil
	case <-e.done:
		return ErrClosed
	}
}

// SetListener registers the inbound callback for this endpoint.
func (e *Endpoint) SetListener(fn func(Message)) {
	e.mu.Lock()
	e.listener = fn
	e.mu.Unlock()
}

// Close stops delivery to this endpoint. Safe to call more than once.
func (e *Endpoint) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.done)
	}
}

func (e *Endpoint) dispatch() {
	for {
		select {
		case <-e.done:
			return
		case msg := <-e.queue:
			e.mu.Lock()
			fn := e.listener
			e.mu.Unlock()
			if fn != nil {
				fn(msg)
			}
		}
	}
}
