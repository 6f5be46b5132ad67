package graph

import "context"

type outputExecutor struct{}

// Execute collects the text of all completed in-edges and concatenates
// them; it never touches the gateway.
func (outputExecutor) Execute(_ context.Context, _ *RunContext, _ *Graph, _ *Node, inputs []NamedPayload) (NodePayload, error) {
	return NodePayload{Text: concatText(payloads(inputs)), Meta: map[string]any{}}, nil
}
