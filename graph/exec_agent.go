package graph

import (
	"context"
	"encoding/json"
)

// AgentConfig is the Agent node's configuration.
type AgentConfig struct {
	AgentID string `json:"agentId"`
	ModelID string `json:"modelId,omitempty"`
	Role    string `json:"role,omitempty"`
}

// Agent role presets. "custom" is a no-op: the upstream text is sent
// unmodified. The exact wording of each preset is this implementation's
// own (spec.md §4.3.3 names the four roles but not their text), kept
// short and declarative in the style of a system prompt a caller would
// actually write.
const (
	RolePlanner    = "planner"
	RoleCritic     = "critic"
	RoleResearcher = "researcher"
	RoleOperator   = "operator"
	RoleCustom     = "custom"
)

var rolePrompts = map[string]string{
	RolePlanner:    "You are a planning agent. Break the input into a concrete, ordered sequence of steps toward the stated goal.",
	RoleCritic:     "You are a critic agent. Identify concrete flaws, gaps, and risks in the input and suggest specific fixes.",
	RoleResearcher: "You are a research agent. Gather and synthesize the information the input asks for, citing what you're drawing from.",
	RoleOperator:   "You are an operator agent. Carry out the requested action directly and report the outcome.",
}

const inputMarker = "\n\n--- INPUT ---\n\n"

type agentExecutor struct{}

func (agentExecutor) Execute(ctx context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg AgentConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid agent config", Cause: err}
	}
	if cfg.AgentID == "" {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "agent node missing agentId"}
	}

	message := concatText(payloads(inputs))
	if prompt, ok := rolePrompts[cfg.Role]; ok {
		message = prompt + inputMarker + message
	}

	sessionKey := SessionKey(cfg.AgentID, PurposeClawdini, rc.RunID, node.ID)

	result, err := runChatTurn(ctx, rc, node.ID, sessionKey, message, cfg.ModelID, rc.ChatTimeout)
	if err != nil {
		return NodePayload{}, err
	}

	return NodePayload{
		Text: result.Text,
		Meta: map[string]any{
			"agentId":    cfg.AgentID,
			"modelId":    cfg.ModelID,
			"sessionKey": sessionKey,
		},
	}, nil
}
