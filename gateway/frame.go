// Package gateway implements the client side of the remote agent gateway's
// wire protocol: the frame codec, the challenge-response device-identity
// handshake, and the correlated request/response plus event-subscription
// surface the graph executors call into.
package gateway

import "encoding/json"

// Frame types. Any other value decodes successfully but is ignored by
// callers, per the protocol's forward-compatibility requirement.
const (
	FrameRequest  = "req"
	FrameResponse = "res"
	FrameEvent    = "event"
)

// RPCError is the {code, message} shape carried by a failed Response frame.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is the union of the three shapes that share the gateway wire:
// request, response, and event. Only the fields relevant to Type are set;
// json's omitempty keeps the encoded form matching the protocol exactly.
type Frame struct {
	Type string `json:"type"`

	// Request
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`

	// Response
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`

	// Event
	Event string          `json:"event,omitempty"`
	Seq   *int64          `json:"seq,omitempty"`
}

// Encode serializes a Frame to its wire JSON form.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// Decode parses a wire JSON document into a Frame. It never rejects an
// unrecognized Type — the caller inspects Type and drops what it doesn't
// understand, which is what forward compatibility requires.
func Decode(data []byte) (Frame, error) {
	var f Frame
	err := json.Unmarshal(data, &f)
	return f, err
}

func boolPtr(b bool) *bool { return &b }
