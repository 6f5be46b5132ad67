// Package graph implements the level-scheduled DAG execution engine: the
// node kinds, the scheduler, and the runner that drives a submitted graph
// to completion against a gateway client.
package graph

import "encoding/json"

// Kind discriminates the eleven node strategies an executor dispatches on.
type Kind string

const (
	KindInput    Kind = "input"
	KindTemplate Kind = "template"
	KindAgent    Kind = "agent"
	KindMerge    Kind = "merge"
	KindJudge    Kind = "judge"
	KindSwitch   Kind = "switch"
	KindExtract  Kind = "extract"
	KindInvoke   Kind = "invoke"
	KindForeach  Kind = "foreach"
	KindState    Kind = "state"
	KindOutput   Kind = "output"
)

// Node is a graph-unique unit of computation. Config is kind-specific and
// is decoded lazily by the matching executor.
type Node struct {
	ID     string
	Label  string
	Kind   Kind
	Config json.RawMessage
}

// Edge is a directed dependency between two nodes. SourceHandle is only
// meaningful for edges leaving a switch node, where it names the output
// port the edge is attached to.
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
}

// Graph is an immutable, validated DAG: every edge endpoint resolves to a
// node and the induced graph is acyclic (acyclicity is checked lazily by
// ComputeLevels, not at construction, since cycle detection and leveling
// share the same peeling pass).
type Graph struct {
	ID    string
	Nodes []Node
	Edges []Edge

	byID    map[string]*Node
	outEdge map[string][]Edge
	inEdge  map[string][]Edge
}

// NewGraph validates edge endpoints and builds the lookup indices used by
// the scheduler and executors.
func NewGraph(id string, nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		ID:      id,
		Nodes:   nodes,
		Edges:   edges,
		byID:    make(map[string]*Node, len(nodes)),
		outEdge: make(map[string][]Edge),
		inEdge:  make(map[string][]Edge),
	}
	for i := range nodes {
		g.byID[nodes[i].ID] = &nodes[i]
	}
	for _, e := range edges {
		if _, ok := g.byID[e.Source]; !ok {
			return nil, &GraphError{Code: "UNKNOWN_NODE", Message: "edge " + e.ID + " references unknown source " + e.Source}
		}
		if _, ok := g.byID[e.Target]; !ok {
			return nil, &GraphError{Code: "UNKNOWN_NODE", Message: "edge " + e.ID + " references unknown target " + e.Target}
		}
		g.outEdge[e.Source] = append(g.outEdge[e.Source], e)
		g.inEdge[e.Target] = append(g.inEdge[e.Target], e)
	}
	return g, nil
}

func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

func (g *Graph) OutEdges(nodeID string) []Edge { return g.outEdge[nodeID] }
func (g *Graph) InEdges(nodeID string) []Edge  { return g.inEdge[nodeID] }

// NodePayload is the single value type that flows along edges.
type NodePayload struct {
	Text string         `json:"text"`
	JSON any            `json:"json,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
}

func (p NodePayload) metaString(key string) string {
	if p.Meta == nil {
		return ""
	}
	s, _ := p.Meta[key].(string)
	return s
}

func (p NodePayload) SessionKey() string { return p.metaString("sessionKey") }
func (p NodePayload) ModelID() string    { return p.metaString("modelId") }
func (p NodePayload) AgentID() string    { return p.metaString("agentId") }

func (p NodePayload) LatencyMs() (int64, bool) {
	if p.Meta == nil {
		return 0, false
	}
	switch v := p.Meta["latencyMs"].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Decision is the structured verdict a judge node produces, carried inside
// NodePayload.JSON.
type Decision struct {
	Status            string   `json:"status"`
	Score             int      `json:"score"`
	Reasons           []string `json:"reasons"`
	Missing           []string `json:"missing"`
	NextActionHint    string   `json:"nextActionHint"`
	RecommendedBranch string   `json:"recommendedBranch"`
}

const (
	DecisionDone        = "done"
	DecisionContinue    = "continue"
	DecisionNeedsInfo   = "needs_info"
	DecisionFailed      = "failed"
	DecisionHumanReview = "human_review"
)
