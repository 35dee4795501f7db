// Package wire defines the envelope format exchanged between an embedded
// frame and its host, and the codec that moves envelopes on and off a
// string-serialized transport. The transport is shared and broadcast-style,
// so every channel key carries a private prefix that separates protocol
// traffic from unrelated messages travelling on the same medium.
package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Version is the client protocol version announced in the handshake.
const Version = "1.0.0"

// Prefix marks every wire key belonging to this protocol. Messages whose key
// does not start with it are foreign and never reach the channel.
const Prefix = "framechan::"

// Bare keys (without Prefix) for the protocol's fixed message kinds.
const (
	// KeyHandshake is the first message a client sends after construction.
	// Payload: Handshake.
	KeyHandshake = "iframe.handshake"

	// KeyRegistered is the host's acknowledgement of the handshake.
	// Observing it unlocks the client's outbox.
	KeyRegistered = "app.registered"
)

const (
	requestKeyPrefix = "request:"
	doneSuffix       = ".done"
	failSuffix       = ".fail"
)

// Envelope is the wire unit. Field order is fixed so that json.Marshal
// produces the same bytes for the same logical values, which the host relies
// on when comparing encodings.
type Envelope struct {
	Key     string `json:"key"`
	Message any    `json:"message"`
	AppGUID string `json:"appGuid"`
}

// Handshake is the payload of KeyHandshake.
type Handshake struct {
	Version string `json:"version"`
}

// Completion is the payload of request done/fail events. The first element
// of ResponseArgs is the value the request settles with.
type Completion struct {
	ResponseArgs []any `json:"responseArgs"`
}

// RequestKey returns the wire key (without Prefix) for an outgoing request.
func RequestKey(id uint64) string {
	return fmt.Sprintf("%s%d", requestKeyPrefix, id)
}

// DoneKey returns the completion key the host fires when request id succeeds.
func DoneKey(id uint64) string {
	return RequestKey(id) + doneSuffix
}

// FailKey returns the completion key the host fires when request id fails.
func FailKey(id uint64) string {
	return RequestKey(id) + failSuffix
}

// Encode builds the canonical serialized form of an envelope. The bare key is
// prefixed with Prefix; msg may be any JSON-serializable value.
func Encode(key string, msg any, appGUID string) (string, error) {
	data, err := json.Marshal(Envelope{
		Key:     Prefix + key,
		Message: msg,
		AppGUID: appGUID,
	})
	if err != nil {
		return "", fmt.Errorf("wire encode %q: %w", key, err)
	}
	return string(data), nil
}

// Decode recovers an Envelope from an inbound transport payload. The payload
// arrives either pre-structured or as a JSON string; both variants must
// produce the same envelope. Returns ok=false when the payload is not a
// protocol message (wrong shape, unparseable string, missing key), and the
// caller drops it without error.
func Decode(data any) (Envelope, bool) {
	switch v := data.(type) {
	case string:
		return decodeJSON([]byte(v))
	case []byte:
		return decodeJSON(v)
	case json.RawMessage:
		return decodeJSON(v)
	case Envelope:
		return v, v.Key != ""
	case *Envelope:
		if v == nil {
			return Envelope{}, false
		}
		return *v, v.Key != ""
	case map[string]any:
		env := Envelope{Message: v["message"]}
		env.Key, _ = v["key"].(string)
		env.AppGUID, _ = v["appGuid"].(string)
		return env, env.Key != ""
	default:
		return Envelope{}, false
	}
}

func decodeJSON(data []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, false
	}
	return env, env.Key != ""
}

// StripPrefix checks that key belongs to this protocol and returns the bare
// key application code sees. ok=false means foreign traffic.
func StripPrefix(key string) (string, bool) {
	return strings.CutPrefix(key, Prefix)
}

// ParseCompletion extracts a Completion from a decoded event payload. The
// payload may be structured (map) or already a Completion, depending on how
// the envelope arrived.
func ParseCompletion(msg any) Completion {
	switch v := msg.(type) {
	case Completion:
		return v
	case map[string]any:
		args, _ := v["responseArgs"].([]any)
		return Completion{ResponseArgs: args}
	default:
		return Completion{}
	}
}
