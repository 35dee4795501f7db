// Package channel implements the client side of a frame↔host message
// protocol layered over a single broadcast-style transport. The transport
// may carry unrelated or attacker-controlled traffic; the channel validates
// sender origin and identity on every inbound message, multiplexes events,
// fire-and-forget messages, and correlated request/response calls over the
// one medium, and buffers outgoing traffic until the host acknowledges the
// opening handshake.
package channel

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framechan/framechan/pkg/transport"
	"github.com/framechan/framechan/pkg/wire"
)

// ErrNoPeer indicates the expected sender origin and identity could be
// neither derived from the transport nor found in Options.
var ErrNoPeer = errors.New("channel: peer origin and source required")

// Options configures a Client.
type Options struct {
	// Origin is the expected sender origin. Derived from the transport when
	// empty and the transport implements transport.Peer.
	Origin string

	// Source is the expected sender identity. Derived like Origin. Must be
	// comparable.
	Source any

	// AppGUID identifies this application in every outgoing envelope.
	// Defaults to a random UUID.
	AppGUID string

	// InvocationTimeout bounds Get/Set/Invoke calls. Defaults to the
	// protocol's five seconds.
	InvocationTimeout time.Duration

	// Logger receives dropped-message and handler-panic diagnostics.
	// Default discards.
	Logger *slog.Logger
}

// Client is a frame-side protocol channel. All methods are safe for
// concurrent use.
type Client struct {
	origin     string
	source     any
	appGUID    string
	invTimeout time.Duration
	tr         transport.Transport
	log        *slog.Logger

	// sendMu serializes wire writes so buffered envelopes flush in FIFO
	// order ahead of any send issued after the readiness transition.
	sendMu sync.Mutex

	mu       sync.Mutex
	ready    bool
	outbox   []string
	handlers map[string][]registration
	pending  map[uint64]*pendingRequest
	nextID   uint64
}

// New builds a Client bound to t, registers it as the transport listener,
// and immediately announces itself to the host with a handshake envelope.
// The handshake is the first message on the wire and bypasses the readiness
// gate.
func New(t transport.Transport, opts Options) (*Client, error) {
	origin, source := opts.Origin, opts.Source
	if p, ok := t.(transport.Peer); ok {
		if origin == "" {
			origin = p.PeerOrigin()
		}
		if source == nil {
			source = p.PeerSource()
		}
	}
	if origin == "" || source == nil {
		return nil, ErrNoPeer
	}

	appGUID := opts.AppGUID
	if appGUID == "" {
		appGUID = uuid.New().String()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	invTimeout := opts.InvocationTimeout
	if invTimeout <= 0 {
		invTimeout = invocationTimeout
	}

	c := &Client{
		origin:     origin,
		source:     source,
		appGUID:    appGUID,
		invTimeout: invTimeout,
		tr:         t,
		log:        log,
		handlers:   make(map[string][]registration),
		pending:    make(map[uint64]*pendingRequest),
	}
	t.SetListener(c.receive)

	payload, err := wire.Encode(wire.KeyHandshake, wire.Handshake{Version: wire.Version}, appGUID)
	if err != nil {
		return nil, err
	}
	if err := t.Send(payload); err != nil {
		return nil, fmt.Errorf("channel handshake: %w", err)
	}
	return c, nil
}

// AppGUID returns the identifier stamped on every outgoing envelope.
func (c *Client) AppGUID() string { return c.appGUID }

// Ready reports whether the host has acknowledged the handshake.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

// PostMessage sends an application event to the host through the readiness
// gate: buffered until the host acknowledges the handshake, immediate after.
func (c *Client) PostMessage(key string, msg any) error {
	payload, err := wire.Encode(key, msg, c.appGUID)
	if err != nil {
		return err
	}
	return c.send(payload)
}

// receive is the transport listener and the channel's sole trust boundary.
// A message survives only if its declared origin and sender identity match
// the values captured at construction and its payload decodes to an envelope
// carrying the protocol prefix. Everything else is dropped without a trace
// beyond a debug log line.
func (c *Client) receive(msg transport.Message) {
	if msg.Origin != c.origin {
		c.log.Debug("dropping message from unexpected origin", "origin", msg.Origin)
		return
	}
	if msg.Source != c.source {
		c.log.Debug("dropping message from unexpected source")
		return
	}
	env, ok := wire.Decode(msg.Data)
	if !ok {
		c.log.Debug("dropping undecodable message")
		return
	}
	bare, ok := wire.StripPrefix(env.Key)
	if !ok {
		c.log.Debug("dropping message without protocol prefix", "key", env.Key)
		return
	}

	// Readiness is observed before application handlers run, so envelopes
	// buffered behind the gate hit the wire ahead of anything a handler of
	// the acknowledgement event might send.
	if bare == wire.KeyRegistered {
		c.flushReady()
	}
	c.Trigger(bare, env.Message)
}

// send routes payload through the readiness gate.
func (c *Client) send(payload string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if !c.ready {
		c.outbox = append(c.outbox, payload)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.tr.Send(payload)
}

// flushReady transitions the gate to ready exactly once and transmits the
// buffered outbox in original FIFO order.
func (c *Client) flushReady() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	c.mu.Lock()
	if c.ready {
		c.mu.Unlock()
		return
	}
	c.ready = true
	queued := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, payload := range queued {
		if err := c.tr.Send(payload); err != nil {
			c.log.Warn("flushing buffered envelope failed", "err", err)
		}
	}
}
