// Package transport provides the message-moving primitive underneath a frame
// channel: an asynchronous, string-serialized medium that delivers every
// inbound message to a single registered listener regardless of sender. The
// channel layer ignores nothing the transport tells it: each delivery
// carries the declared sender origin and identity so the channel can reject
// forgeries and unrelated traffic sharing the medium.
package transport

import "errors"

var (
	// ErrClosed indicates the transport has been closed.
	ErrClosed = errors.New("transport closed")

	// ErrNotConnected indicates a send was attempted with no live connection.
	ErrNotConnected = errors.New("transport not connected")
)

// Message is one inbound delivery. Origin and Source are the sender's
// declared origin and identity; Data is the raw payload, either a serialized
// envelope string or an already-structured value.
type Message struct {
	Origin string
	Source any
	Data   any
}

// Transport moves serialized envelopes to a bound peer and hands every
// inbound message to the single registered listener. Implementations must be
// safe for concurrent use; listener callbacks are invoked one at a time.
type Transport interface {
	// Send transmits a serialized envelope to the peer.
	Send(data string) error

	// SetListener registers the callback invoked for every inbound message.
	// A second call replaces the previous listener.
	SetListener(fn func(Message))
}

// Peer is implemented by transports that know who sits on the other end,
// letting the channel derive its expected sender origin and identity from
// the environment instead of explicit configuration.
type Peer interface {
	PeerOrigin() string
	PeerSource() any
}
