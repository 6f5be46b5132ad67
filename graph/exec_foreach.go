package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// ForeachConfig is the ForEach node's configuration.
type ForeachConfig struct {
	ArrayPath string `json:"arrayPath,omitempty"`
}

type foreachExecutor struct{}

func (foreachExecutor) Execute(ctx context.Context, rc *RunContext, g *Graph, node *Node, inputs []NamedPayload) (NodePayload, error) {
	var cfg ForeachConfig
	if len(node.Config) > 0 {
		if err := json.Unmarshal(node.Config, &cfg); err != nil {
			return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "invalid foreach config", Cause: err}
		}
	}

	outEdges := g.OutEdges(node.ID)
	outEdgeIDs := make([]string, len(outEdges))
	for i, e := range outEdges {
		outEdgeIDs[i] = e.ID
	}

	arr, ok := extractArray(cfg.ArrayPath, payloads(inputs))
	if !ok {
		rc.DisableEdges(node.ID, outEdgeIDs)
		return NodePayload{Text: "Halted (No Array Found)", Meta: map[string]any{}}, nil
	}

	subgraph, err := ExtractSubgraph(g, node.ID)
	if err != nil {
		return NodePayload{}, &NodeError{NodeID: node.ID, Code: ErrCodeConfig, Message: "failed to extract foreach subgraph", Cause: err}
	}
	// The parent runner must not also execute the subgraph's roots itself.
	rc.DisableEdges(node.ID, outEdgeIDs)

	var eg errgroup.Group
	for i, elem := range arr {
		i, elem := i, elem
		eg.Go(func() error {
			childRunID := fmt.Sprintf("%s/%s/%d", rc.RunID, node.ID, i)
			child := NewRunner(ctx, childRunID, subgraph, rc.Gateway, rc.sink, elementPayload(elem), WithChatTimeout(rc.ChatTimeout))
			return child.Run()
		})
	}
	_ = eg.Wait() // a child's cancellation/error doesn't fail the others; each is independent

	return NodePayload{Text: fmt.Sprintf("Completed %d parallel sub-executions.", len(arr)), Meta: map[string]any{}}, nil
}

// extractArray locates the array ForEach fans out over: by walking
// arrayPath against the merged input's JSON when given, else the merged
// JSON directly, else by parsing the merged text as JSON. A non-array or
// empty result is reported as not-found.
func extractArray(arrayPath string, inputs []NodePayload) ([]any, bool) {
	jsonVal := mergedJSON(inputs)

	if arrayPath != "" {
		if jsonVal == nil {
			return nil, false
		}
		data, err := json.Marshal(jsonVal)
		if err != nil {
			return nil, false
		}
		result := gjson.GetBytes(data, arrayPath)
		if !result.IsArray() {
			return nil, false
		}
		var arr []any
		if err := json.Unmarshal([]byte(result.Raw), &arr); err != nil {
			return nil, false
		}
		return arr, len(arr) > 0
	}

	if jsonVal != nil {
		if arr, ok := jsonVal.([]any); ok {
			return arr, len(arr) > 0
		}
		return nil, false
	}

	var arr []any
	if err := json.Unmarshal([]byte(concatText(inputs)), &arr); err != nil {
		return nil, false
	}
	return arr, len(arr) > 0
}

// elementPayload turns one array element into the child runner's global
// input: a bare string passes through, anything structured is both
// stringified into Text and kept in JSON.
func elementPayload(elem any) NodePayload {
	if s, ok := elem.(string); ok {
		return NodePayload{Text: s}
	}
	encoded, _ := json.Marshal(elem)
	return NodePayload{Text: string(encoded), JSON: elem}
}
