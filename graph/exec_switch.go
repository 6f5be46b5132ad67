package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

// SwitchRule is one routing condition. Condition is a regex pattern for
// RuleModeRegex, or a dotted JSON path for RuleModeFieldMatch (compared
// against ValueMatch).
type SwitchRule struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"` // regex or fieldMatch
	Condition  string `json:"condition"`
	ValueMatch string `json:"valueMatch,omitempty"`
}

// SwitchConfig is the Switch node's configuration.
type SwitchConfig struct {
	Rules []SwitchRule `json:"rules"`
}

const (
	RuleModeRegex      = "regex"
	RuleModeFieldMatch = "fieldMatch"
)

type switchExecutor struct{}

func (switchExecutor) Execute(_ context.Context, rc *RunContext, g *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg SwitchConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid switch config", Cause: err}
	}

	in := payloads(inputs)
	text := concatText(in)
	jsonVal := mergedJSON(in)

	matched := make(map[string]bool, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		if evaluateRule(rule, text, jsonVal) {
			matched[rule.ID] = true
		}
	}

	var toDisable []string
	for _, e := range g.OutEdges(node.ID) {
		if !matched[e.SourceHandle] {
			toDisable = append(toDisable, e.ID)
		}
	}

	if len(matched) == 0 {
		allIDs := make([]string, 0, len(g.OutEdges(node.ID)))
		for _, e := range g.OutEdges(node.ID) {
			allIDs = append(allIDs, e.ID)
		}
		rc.DisableEdges(node.ID, allIDs)
		return NodePayload{Text: "Halted (No conditions matched)", Meta: map[string]any{}}, nil
	}

	rc.DisableEdges(node.ID, toDisable)
	return NodePayload{Text: fmt.Sprintf("Flow routed to %d branches", len(matched)), Meta: map[string]any{}}, nil
}

// evaluateRule reports whether rule matches, per its mode. An invalid
// regex is treated as a non-match rather than an error, per spec.md
// §4.3.6.
func evaluateRule(rule SwitchRule, text string, jsonVal any) bool {
	switch rule.Mode {
	case RuleModeRegex:
		re, err := regexp.Compile(rule.Condition)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	case RuleModeFieldMatch:
		if jsonVal == nil {
			return false
		}
		data, err := json.Marshal(jsonVal)
		if err != nil {
			return false
		}
		result := gjson.GetBytes(data, rule.Condition)
		if !result.Exists() {
			return false
		}
		return result.String() == rule.ValueMatch
	default:
		return false
	}
}
