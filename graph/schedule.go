package graph

// ComputeLevels partitions a graph's nodes into dependency levels by
// Kahn-style peeling: nodes with in-degree zero form level 0; removing
// them reveals the next level; repeat. A node left with positive in-degree
// after peeling terminates indicates a cycle.
//
// Edges referencing nodes outside the graph cannot occur here — NewGraph
// rejects them at construction — so the only failure mode left is a cycle.
func ComputeLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n.ID] = len(g.InEdges(n.ID))
	}

	remaining := len(g.Nodes)
	var levels [][]string

	for remaining > 0 {
		var level []string
		for _, n := range g.Nodes {
			if inDegree[n.ID] == 0 {
				level = append(level, n.ID)
			}
		}
		if len(level) == 0 {
			return nil, &GraphError{Code: ErrCodeCycle, Message: "graph contains a cycle"}
		}
		levels = append(levels, level)

		for _, nodeID := range level {
			inDegree[nodeID] = -1 // mark consumed so it's never re-selected
			for _, e := range g.OutEdges(nodeID) {
				if inDegree[e.Target] > 0 {
					inDegree[e.Target]--
				}
			}
			remaining--
		}
	}

	return levels, nil
}
