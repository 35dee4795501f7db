package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 30 * time.Second
	defaultMaxReconnectWait = 30 * time.Second
	wsReadLimit             = 4 * 1024 * 1024 // 4 MB
)

var (
	_ Transport = (*WSConn)(nil)
	_ Peer      = (*WSConn)(nil)
)

// WSOptions configures a websocket transport.
type WSOptions struct {
	// HandshakeTimeout bounds the websocket dial. Default 10 s.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive ping period. <0 disables pings.
	// Default 30 s.
	PingInterval time.Duration

	// Reconnect enables automatic redial with exponential backoff after a
	// read failure. Sends fail with ErrNotConnected while disconnected.
	Reconnect bool

	// MaxReconnectWait caps the backoff interval between redial attempts.
	// Default 30 s.
	MaxReconnectWait time.Duration

	// Logger receives connection lifecycle events. Default discards.
	Logger *slog.Logger
}

// WSConn is a websocket-backed Transport. Text frames carry the serialized
// envelopes; inbound frames surface to the listener with the dialed URL's
// origin and this connection as the sender identity.
type WSConn struct {
	url    string
	origin string
	opts   WSOptions
	log    *slog.Logger

	mu     sync.Mutex // guards conn writes and swaps
	conn   *websocket.Conn
	closed bool
	done   chan struct{}

	lmu      sync.RWMutex
	listener func(Message)
}

// DialWS connects to a frame host at rawURL (ws:// or wss://) and starts the
// read loop. The peer origin is derived from the URL.
func DialWS(ctx context.Context, rawURL string, opts WSOptions) (*WSConn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("ws dial %q: %w", rawURL, err)
	}
	origin, err := originOf(u)
	if err != nil {
		return nil, err
	}

	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.MaxReconnectWait <= 0 {
		opts.MaxReconnectWait = defaultMaxReconnectWait
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t := &WSConn{
		url:    rawURL,
		origin: origin,
		opts:   opts,
		log:    log,
		done:   make(chan struct{}),
	}
	if err := t.connect(ctx); err != nil {
		return nil, err
	}

	go t.readLoop()
	if opts.PingInterval > 0 {
		go t.pingLoop()
	}
	return t, nil
}

func originOf(u *url.URL) (string, error) {
	switch u.Scheme {
	case "ws":
		return "http://" + u.Host, nil
	case "wss":
		return "https://" + u.Host, nil
	default:
		return "", fmt.Errorf("ws dial: unsupported scheme %q", u.Scheme)
	}
}

// PeerOrigin returns the origin derived from the dialed URL.
func (t *WSConn) PeerOrigin() string { return t.origin }

// PeerSource returns this connection; inbound messages carry it as sender
// identity, so a channel bound to this transport trusts only frames read
// from its own socket.
func (t *WSConn) PeerSource() any { return t }

// SetListener registers the inbound callback.
func (t *WSConn) SetListener(fn func(Message)) {
	t.lmu.Lock()
	t.listener = fn
	t.lmu.Unlock()
}

// Send writes data as a text frame.
func (t *WSConn) Send(data string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}
	if t.conn == nil {
		return ErrNotConnected
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		return fmt.Errorf("ws send: %w", err)
	}
	return nil
}

// Close shuts the connection down and stops the read and ping loops.
// Safe to call more than once.
func (t *WSConn) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.done)
	if t.conn != nil {
		_ = t.conn.Close()
	}
}

func (t *WSConn) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: t.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("ws dial %q: %w", t.url, err)
	}
	conn.SetReadLimit(wsReadLimit)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	t.conn = conn
	t.mu.Unlock()
	return nil
}

func (t *WSConn) readLoop() {
	for {
		t.mu.Lock()
		conn := t.conn
		closed := t.closed
		t.mu.Unlock()

		if closed {
			return
		}
		if conn == nil {
			if !t.reconnect() {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			closed = t.closed
			t.conn = nil
			t.mu.Unlock()
			if closed || !t.opts.Reconnect {
				return
			}
			t.log.Warn("ws read failed, reconnecting", "err", err)
			continue
		}

		t.lmu.RLock()
		fn := t.listener
		t.lmu.RUnlock()
		if fn != nil {
			fn(Message{Origin: t.origin, Source: t, Data: string(data)})
		}
	}
}

// reconnect redials with exponential backoff until it succeeds or the
// transport is closed. Returns false when the transport closed.
func (t *WSConn) reconnect() bool {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = t.opts.MaxReconnectWait
	b.MaxElapsedTime = 0 // retry until Close

	for {
		select {
		case <-t.done:
			return false
		case <-time.After(b.NextBackOff()):
		}

		if err := t.connect(context.Background()); err != nil {
			t.log.Debug("ws redial failed", "err", err)
			continue
		}
		t.log.Info("ws reconnected", "url", t.url)
		return true
	}
}

func (t *WSConn) pingLoop() {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.conn != nil && !t.closed {
				_ = t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			t.mu.Unlock()
		}
	}
}
