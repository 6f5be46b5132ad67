package graph

import (
	"context"
	"encoding/json"

	"github.com/tidwall/sjson"
)

// StateConfig is the State node's configuration. Path is optional: when
// set, the value is written at that dotted path inside the namespace's
// existing JSON document rather than replacing or shallow-merging the
// whole namespace, so a graph can accumulate structured state one field
// at a time (state.profile.name, state.counters.retries, ...).
type StateConfig struct {
	Namespace string `json:"namespace"`
	Mode      string `json:"mode"` // merge, replace, append
	Path      string `json:"path,omitempty"`
}

const (
	StateModeMerge   = "merge"
	StateModeReplace = "replace"
	StateModeAppend  = "append"
)

type stateExecutor struct{}

func (stateExecutor) Execute(_ context.Context, rc *RunContext, _ *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg StateConfig
	if err := json.Unmarshal(node.Config, &cfg); err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid state config", Cause: err}
	}
	if cfg.Namespace == "" {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "state node missing namespace"}
	}

	in := payloads(inputs)
	value := mergedJSON(in)
	if value == nil {
		value = concatText(in)
	}

	if cfg.Path != "" {
		merged, err := setAtPath(rc.State, cfg.Namespace, cfg.Path, value)
		if err != nil {
			return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeTemplate, Message: "failed to write state path", Cause: err}
		}
		rc.State.Set(cfg.Namespace, merged)
		return NodePayload{Text: concatText(in), JSON: merged, Meta: map[string]any{}}, nil
	}

	switch cfg.Mode {
	case StateModeReplace, "":
		rc.State.Set(cfg.Namespace, value)
	case StateModeAppend:
		rc.State.Append(cfg.Namespace, value)
	case StateModeMerge:
		if m, ok := value.(map[string]any); ok {
			rc.State.Merge(cfg.Namespace, m)
		} else {
			rc.State.Set(cfg.Namespace, value)
		}
	default:
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "unknown state mode " + cfg.Mode}
	}

	return NodePayload{Text: concatText(in), JSON: value, Meta: map[string]any{}}, nil
}

// setAtPath writes value at path inside namespace's existing JSON document
// (starting from `{}` if the namespace is unset or not an object) and
// returns the resulting document decoded back into Go values.
func setAtPath(store *StateStore, namespace, path string, value any) (any, error) {
	existing, ok := store.Get(namespace)
	var doc []byte
	if _, isObject := existing.(map[string]any); ok && isObject {
		encoded, err := json.Marshal(existing)
		if err != nil {
			return nil, err
		}
		doc = encoded
	} else {
		doc = []byte(`{}`)
	}

	updated, err := sjson.SetBytes(doc, path, value)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal(updated, &decoded); err != nil {
		return nil, err
	}
	return decoded, nil
}
