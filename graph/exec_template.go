package graph

import (
	"context"
	"encoding/json"
)

// TemplateConfig is the Template node's configuration.
type TemplateConfig struct {
	Template string `json:"template"`
	Format   string `json:"format"` // "text" or "json"
}

const (
	TemplateFormatText = "text"
	TemplateFormatJSON = "json"
)

type templateExecutor struct{}

func (templateExecutor) Execute(_ context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg TemplateConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid template config", Cause: err}
	}

	scopeJSON, err := buildTemplateScope(inputsByLabel(inputs), rc.State.Snapshot())
	if err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeTemplate, Message: "failed to build template scope", Cause: err}
	}
	rendered := renderTemplate(cfg.Template, scopeJSON)

	if cfg.Format != TemplateFormatJSON {
		return NodePayload{Text: rendered, Meta: map[string]any{}}, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(rendered), &parsed); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeParse, Message: "rendered template is not valid JSON", Cause: err}
	}
	return NodePayload{Text: rendered, JSON: parsed, Meta: map[string]any{}}, nil
}
