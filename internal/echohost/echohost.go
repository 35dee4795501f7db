// Package echohost implements a minimal frame host speaking the channel wire
// contract over a websocket endpoint. It acknowledges handshakes, answers
// every request by echoing the call descriptor back in responseArgs, and
// reflects application events. It exists so demos and end-to-end tests have
// a real counterpart without a product host; it defines no host semantics of
// its own.
package echohost

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/framechan/framechan/pkg/wire"
)

// Options configures the echo host.
type Options struct {
	// FailSubstring, when non-empty, makes any request whose descriptor
	// contains it answer with a fail event instead of done. Lets tests
	// exercise the rejection path.
	FailSubstring string

	// Delay postpones every reply, to exercise timeout paths.
	Delay time.Duration

	// Logger receives per-connection diagnostics. Default discards.
	Logger *slog.Logger
}

// Host accepts frame clients on /ws and echoes the protocol back at them.
type Host struct {
	opts     Options
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// New builds an echo host.
func New(opts Options) *Host {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Host{
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the HTTP surface: the websocket endpoint and a health probe.
func (h *Host) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func (h *Host) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	h.log.Info("frame connected", "remote", conn.RemoteAddr().String())

	// Writes are serialized; replies may fire from timers when Delay is set.
	var mu sync.Mutex
	send := func(bareKey string, msg any, appGUID string) {
		payload, err := wire.Encode(bareKey, msg, appGUID)
		if err != nil {
			h.log.Error("encode reply", "err", err)
			return
		}
		write := func() {
			mu.Lock()
			defer mu.Unlock()
			_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
		}
		if h.opts.Delay > 0 {
			time.AfterFunc(h.opts.Delay, write)
			return
		}
		write()
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			h.log.Info("frame disconnected", "err", err)
			return
		}
		h.handleFrame(string(data), send)
	}
}

func (h *Host) handleFrame(data string, send func(bareKey string, msg any, appGUID string)) {
	env, ok := wire.Decode(data)
	if !ok {
		h.log.Debug("ignoring undecodable frame")
		return
	}
	bare, ok := wire.StripPrefix(env.Key)
	if !ok {
		h.log.Debug("ignoring foreign frame", "key", env.Key)
		return
	}

	switch {
	case bare == wire.KeyHandshake:
		send(wire.KeyRegistered, map[string]any{
			"context":  map[string]any{"host": "echo"},
			"metadata": map[string]any{"handshake": env.Message},
		}, env.AppGUID)

	case isRequestKey(bare):
		id, ok := requestID(bare)
		if !ok {
			h.log.Debug("ignoring malformed request key", "key", bare)
			return
		}
		completion := wire.Completion{ResponseArgs: []any{env.Message}}
		if h.shouldFail(env.Message) {
			send(wire.FailKey(id), completion, env.AppGUID)
			return
		}
		send(wire.DoneKey(id), completion, env.AppGUID)

	default:
		// Application events bounce straight back.
		send(bare, env.Message, env.AppGUID)
	}
}

// shouldFail reports whether the descriptor contains the configured failure
// marker.
func (h *Host) shouldFail(descriptor any) bool {
	if h.opts.FailSubstring == "" {
		return false
	}
	raw, err := json.Marshal(descriptor)
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), h.opts.FailSubstring)
}

func isRequestKey(bare string) bool {
	return strings.HasPrefix(bare, "request:") &&
		!strings.HasSuffix(bare, ".done") &&
		!strings.HasSuffix(bare, ".fail")
}

func requestID(bare string) (uint64, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(bare, "request:"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
