package graph

import (
	"context"
	"encoding/json"
	"strings"
)

// InvokeConfig is the Invoke node's configuration.
type InvokeConfig struct {
	CommandName     string `json:"commandName"`
	PayloadTemplate string `json:"payloadTemplate"`
}

type invokeExecutor struct{}

func (invokeExecutor) Execute(ctx context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg InvokeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid invoke config", Cause: err}
	}

	upstream := concatText(payloads(inputs))
	rendered := strings.ReplaceAll(cfg.PayloadTemplate, "{INPUT}", jsonStringEscape(upstream))

	var params json.RawMessage
	if json.Valid([]byte(rendered)) {
		params = json.RawMessage(rendered)
	} else {
		escaped, _ := json.Marshal(map[string]string{"payload": rendered})
		params = escaped
	}

	result, err := rc.Gateway.Request(ctx, cfg.CommandName, params)
	if err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeGateway, Message: "invoke " + cfg.CommandName + " failed", Cause: err}
	}

	return payloadFromRPCResult(result), nil
}

// jsonStringEscape escapes text the way encoding/json would inside a
// quoted string (backslashes, quotes, control characters), without the
// surrounding quotes the template already supplies.
func jsonStringEscape(text string) string {
	encoded, _ := json.Marshal(text)
	return string(encoded[1 : len(encoded)-1])
}

// payloadFromRPCResult turns a raw RPC result into a NodePayload: a plain
// JSON string becomes the text verbatim, anything structured is both
// JSON-encoded as text and carried in JSON.
func payloadFromRPCResult(result json.RawMessage) NodePayload {
	if len(result) == 0 {
		return NodePayload{Meta: map[string]any{}}
	}
	var v any
	if err := json.Unmarshal(result, &v); err != nil {
		return NodePayload{Text: string(result), Meta: map[string]any{}}
	}
	if s, ok := v.(string); ok {
		return NodePayload{Text: s, Meta: map[string]any{}}
	}
	encoded, _ := json.Marshal(v)
	return NodePayload{Text: string(encoded), JSON: v, Meta: map[string]any{}}
}
