package graph

import (
	"context"
	"encoding/json"
)

// InputConfig is the Input node's configuration: a literal prompt string
// that seeds the graph.
type InputConfig struct {
	Prompt string `json:"prompt"`
}

type inputExecutor struct{}

// Execute never touches the gateway; it just emits its configured prompt.
func (inputExecutor) Execute(_ context.Context, _ *RunContext, _ *Graph, node *Node, _ []NamedPayload) (NodePayload, error) {
	var cfg InputConfig
	if len(node.Config) > 0 {
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid input config", Cause: err}
		}
	}
	return NodePayload{Text: cfg.Prompt, Meta: map[string]any{}}, nil
}
