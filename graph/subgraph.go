package graph

// ExtractSubgraph builds the graph ForEach fans its children out over: the
// strict transitive successors of rootID (not including rootID itself),
// plus the edges whose source and target both lie in that successor set.
// Shared upstream nodes are not replicated — a child that needs an
// upstream payload receives it as the child runner's global input instead.
func ExtractSubgraph(g *Graph, rootID string) (*Graph, error) {
	successors := make(map[string]bool)
	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, e := range g.OutEdges(id) {
			if successors[e.Target] {
				continue
			}
			successors[e.Target] = true
			queue = append(queue, e.Target)
		}
	}

	var nodes []Node
	for _, n := range g.Nodes {
		if successors[n.ID] {
			nodes = append(nodes, n)
		}
	}

	var edges []Edge
	for _, e := range g.Edges {
		if successors[e.Source] && successors[e.Target] {
			edges = append(edges, e)
		}
	}

	return NewGraph(g.ID+"/"+rootID, nodes, edges)
}
