package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MergeConfig is the Merge node's configuration.
type MergeConfig struct {
	Mode    string `json:"mode"` // concat, llm, consensus
	ModelID string `json:"modelId,omitempty"`
	Prompt  string `json:"prompt,omitempty"`
}

const (
	MergeModeConcat    = "concat"
	MergeModeLLM       = "llm"
	MergeModeConsensus = "consensus"
)

var inputsPlaceholder = regexp.MustCompile(`(?i)\{INPUTS\}`)

const defaultSynthesisPrompt = "Synthesize the following inputs into a single coherent output:\n\n{INPUTS}"
const defaultConsensusPrompt = "Produce meeting-minutes style notes capturing the points of agreement, disagreement, and any decisions reached across the following inputs:\n\n{INPUTS}"

type mergeExecutor struct{}

func (mergeExecutor) Execute(ctx context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg MergeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid merge config", Cause: err}
	}

	in := payloads(inputs)

	switch cfg.Mode {
	case MergeModeConcat, "":
		return NodePayload{Text: concatSources(in), Meta: map[string]any{}}, nil
	case MergeModeLLM, MergeModeConsensus:
		return mergeViaGateway(ctx, rc, node, cfg, in)
	default:
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "unknown merge mode " + cfg.Mode}
	}
}

// concatSources renders each input as "=== Source i ===\n<text>\n", joined
// by a blank line, per spec.md §8 scenario 2.
func concatSources(inputs []NodePayload) string {
	blocks := make([]string, len(inputs))
	for i, p := range inputs {
		blocks[i] = fmt.Sprintf("=== Source %d ===\n%s\n", i+1, p.Text)
	}
	return strings.Join(blocks, "\n")
}

func mergeViaGateway(ctx context.Context, rc *RunContext, node *Node, cfg MergeConfig, inputs []NodePayload) (NodePayload, error) {
	switch len(inputs) {
	case 0:
		return NodePayload{Meta: map[string]any{}}, nil
	case 1:
		return inputs[0], nil
	}

	template := cfg.Prompt
	if template == "" {
		if cfg.Mode == MergeModeConsensus {
			template = defaultConsensusPrompt
		} else {
			template = defaultSynthesisPrompt
		}
	}
	message := inputsPlaceholder.ReplaceAllString(template, concatSources(inputs))

	sessionKey := SessionKey("main", PurposeMerge, rc.RunID, node.ID)
	result, err := runChatTurn(ctx, rc, node.ID, sessionKey, message, cfg.ModelID, rc.ChatTimeout)
	if err != nil {
		return NodePayload{}, err
	}
	return NodePayload{Text: result.Text, Meta: map[string]any{"modelId": cfg.ModelID, "sessionKey": sessionKey}}, nil
}
