package graph

import "encoding/json"

// wireNode and wireEdge are the JSON shapes a caller submits a graph in
// over the run-submission protocol (spec.md §6). They carry the wire's JSON
// field names, which Node and Edge (untagged structs) do not, and keep the
// wire contract apart from Graph and its unexported lookup indices.
type wireNode struct {
	ID     string          `json:"id"`
	Label  string          `json:"label,omitempty"`
	Kind   string          `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

type wireEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

type wireGraph struct {
	ID    string     `json:"id"`
	Nodes []wireNode `json:"nodes"`
	Edges []wireEdge `json:"edges"`
}

// ParseGraph decodes a submitted graph document into a validated Graph.
func ParseGraph(data []byte) (*Graph, error) {
	var wg wireGraph
	if err := json.Unmarshal(data, &wg); err != nil {
		return nil, &GraphError{Code: "INVALID_GRAPH", Message: "malformed graph document", Cause: err}
	}

	nodes := make([]Node, len(wg.Nodes))
	for i, n := range wg.Nodes {
		nodes[i] = Node{ID: n.ID, Label: n.Label, Kind: Kind(n.Kind), Config: n.Config}
	}
	edges := make([]Edge, len(wg.Edges))
	for i, e := range wg.Edges {
		edges[i] = Edge{ID: e.ID, Source: e.Source, Target: e.Target, SourceHandle: e.SourceHandle}
	}

	return NewGraph(wg.ID, nodes, edges)
}
