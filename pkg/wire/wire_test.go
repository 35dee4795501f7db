package wire

import (
	"encoding/json"
	"testing"
)

func TestEncode_CanonicalBytes(t *testing.T) {
	a, err := Encode("hello", map[string]any{"x": 1}, "guid-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := Encode("hello", map[string]any{"x": 1}, "guid-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if a != b {
		t.Errorf("same logical envelope produced different bytes:\n%s\n%s", a, b)
	}

	want := `{"key":"framechan::hello","message":{"x":1},"appGuid":"guid-1"}`
	if a != want {
		t.Errorf("encoded form = %s, want %s", a, want)
	}
}

func TestDecode_StringAndStructuredAgree(t *testing.T) {
	serialized, err := Encode("hello", map[string]any{"n": float64(7)}, "guid-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	fromString, ok := Decode(serialized)
	if !ok {
		t.Fatal("decode of serialized envelope failed")
	}

	structured := map[string]any{
		"key":     Prefix + "hello",
		"message": map[string]any{"n": float64(7)},
		"appGuid": "guid-1",
	}
	fromMap, ok := Decode(structured)
	if !ok {
		t.Fatal("decode of structured envelope failed")
	}

	if fromString.Key != fromMap.Key || fromString.AppGUID != fromMap.AppGUID {
		t.Errorf("string/structured decode disagree: %+v vs %+v", fromString, fromMap)
	}
	sm := fromString.Message.(map[string]any)
	mm := fromMap.Message.(map[string]any)
	if sm["n"] != mm["n"] {
		t.Errorf("message payloads disagree: %v vs %v", sm, mm)
	}
}

func TestDecode_Rejects(t *testing.T) {
	cases := []struct {
		name string
		in   any
	}{
		{"unparseable string", "not json at all"},
		{"json without key", `{"foo": "bar"}`},
		{"empty string", ""},
		{"wrong type", 42},
		{"nil", nil},
		{"nil envelope pointer", (*Envelope)(nil)},
		{"map without key", map[string]any{"message": "x"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Decode(tc.in); ok {
				t.Errorf("Decode(%v) accepted a non-protocol payload", tc.in)
			}
		})
	}
}

func TestDecode_PassthroughVariants(t *testing.T) {
	env := Envelope{Key: Prefix + "evt", Message: "m", AppGUID: "g"}

	if got, ok := Decode(env); !ok || got != env {
		t.Errorf("Decode(Envelope) = %+v, %v", got, ok)
	}
	if got, ok := Decode(&env); !ok || got != env {
		t.Errorf("Decode(*Envelope) = %+v, %v", got, ok)
	}
	raw, _ := json.Marshal(env)
	if got, ok := Decode(json.RawMessage(raw)); !ok || got.Key != env.Key {
		t.Errorf("Decode(RawMessage) = %+v, %v", got, ok)
	}
}

func TestStripPrefix(t *testing.T) {
	if bare, ok := StripPrefix(Prefix + "hello"); !ok || bare != "hello" {
		t.Errorf("StripPrefix = %q, %v", bare, ok)
	}
	if _, ok := StripPrefix("unrelated::hello"); ok {
		t.Error("StripPrefix accepted a foreign key")
	}
}

func TestRequestKeys(t *testing.T) {
	if got := RequestKey(3); got != "request:3" {
		t.Errorf("RequestKey(3) = %q", got)
	}
	if got := DoneKey(3); got != "request:3.done" {
		t.Errorf("DoneKey(3) = %q", got)
	}
	if got := FailKey(3); got != "request:3.fail" {
		t.Errorf("FailKey(3) = %q", got)
	}
}

func TestParseCompletion(t *testing.T) {
	c := ParseCompletion(map[string]any{"responseArgs": []any{"first", "second"}})
	if len(c.ResponseArgs) != 2 || c.ResponseArgs[0] != "first" {
		t.Errorf("ParseCompletion = %+v", c)
	}

	c = ParseCompletion(Completion{ResponseArgs: []any{1}})
	if len(c.ResponseArgs) != 1 {
		t.Errorf("ParseCompletion passthrough = %+v", c)
	}

	c = ParseCompletion("garbage")
	if c.ResponseArgs != nil {
		t.Errorf("ParseCompletion of garbage = %+v", c)
	}
}
