package graph

import (
	"context"
	"encoding/json"
	"fmt"
)

// ExtractConfig is the Extract node's configuration.
type ExtractConfig struct {
	Schema  string `json:"schema"`
	ModelID string `json:"modelId,omitempty"`
}

const extractPromptTemplate = `Extract structured data from the following input as raw JSON only, no markdown fences, matching exactly this schema:

%s

--- INPUT ---

%s`

type extractExecutor struct{}

func (extractExecutor) Execute(ctx context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg ExtractConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid extract config", Cause: err}
	}

	message := fmt.Sprintf(extractPromptTemplate, cfg.Schema, concatText(payloads(inputs)))
	sessionKey := SessionKey("main", PurposeExtract, rc.RunID, node.ID)

	result, err := runChatTurn(ctx, rc, node.ID, sessionKey, message, cfg.ModelID, rc.ChatTimeout)
	if err != nil {
		return NodePayload{}, err
	}

	raw := stripMarkdownFences(result.Text)
	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return NodePayload{Text: result.Text, Meta: map[string]any{"sessionKey": sessionKey}}, nil
	}
	return NodePayload{
		Text: "Successfully extracted JSON data.",
		JSON: parsed,
		Meta: map[string]any{"sessionKey": sessionKey},
	}, nil
}
