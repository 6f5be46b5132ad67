package gateway

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	params, _ := json.Marshal(map[string]any{"sessionKey": "agent:a:clawdini:r1:n1"})
	payload, _ := json.Marshal(map[string]any{"runId": "chat-run-1"})

	cases := []Frame{
		{Type: FrameRequest, ID: "req-1", Method: "chat.send", Params: params},
		{Type: FrameResponse, ID: "req-1", OK: boolPtr(true), Payload: payload},
		{Type: FrameResponse, ID: "req-2", OK: boolPtr(false), Error: &RPCError{Code: "missing_scope", Message: "nope"}},
		{Type: FrameEvent, Event: "connect.challenge", Payload: payload},
	}

	for _, want := range cases {
		data, err := Encode(want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(normalize(got), normalize(want)) {
			t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, want)
		}
	}
}

func TestDecodeUnknownFrameType(t *testing.T) {
	f, err := Decode([]byte(`{"type":"ping","id":"x"}`))
	if err != nil {
		t.Fatalf("decode should not fail on unknown type: %v", err)
	}
	if f.Type != "ping" {
		t.Errorf("expected type to decode verbatim, got %q", f.Type)
	}
}

// normalize re-marshals RawMessage fields through json so comparisons
// aren't sensitive to incidental whitespace differences.
func normalize(f Frame) Frame {
	if f.Params != nil {
		var v any
		_ = json.Unmarshal(f.Params, &v)
		f.Params, _ = json.Marshal(v)
	}
	if f.Payload != nil {
		var v any
		_ = json.Unmarshal(f.Payload, &v)
		f.Payload, _ = json.Marshal(v)
	}
	return f
}
