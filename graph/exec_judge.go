package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// JudgeConfig is the Judge node's configuration. PassScore is carried for
// downstream consumers (a Switch fieldMatch rule against
// json.score) but is not evaluated here — per spec.md §9's open question,
// the judge executor itself does not gate on it.
type JudgeConfig struct {
	Criteria  string `json:"criteria"`
	ModelID   string `json:"modelId,omitempty"`
	PassScore *int   `json:"passScore,omitempty"`
}

const judgePromptTemplate = `Evaluate the following input against these criteria:

%s

Respond with raw JSON only, no markdown fences, matching exactly this shape:
{"status": "done|continue|needs_info|failed|human_review", "score": 0-100, "reasons": ["..."], "missing": ["..."], "nextActionHint": "...", "recommendedBranch": "..."}

--- INPUT ---

%s`

var markdownFence = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// stripMarkdownFences removes a single leading/trailing ``` or ```json
// fence some models wrap JSON replies in, leaving the body untouched
// otherwise.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := markdownFence.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

type judgeExecutor struct{}

func (judgeExecutor) Execute(ctx context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg JudgeConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid judge config", Cause: err}
	}

	message := fmt.Sprintf(judgePromptTemplate, cfg.Criteria, concatText(payloads(inputs)))
	sessionKey := SessionKey("main", PurposeJudge, rc.RunID, node.ID)

	result, err := runChatTurn(ctx, rc, node.ID, sessionKey, message, cfg.ModelID, rc.ChatTimeout)
	if err != nil {
		return NodePayload{}, err
	}

	raw := stripMarkdownFences(result.Text)
	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return NodePayload{Text: result.Text, Meta: map[string]any{"sessionKey": sessionKey}}, nil
	}
	return NodePayload{Text: raw, JSON: decision, Meta: map[string]any{"sessionKey": sessionKey}}, nil
}
