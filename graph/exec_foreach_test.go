package graph

import (
	"context"
	"testing"
)

func foreachGraph(t *testing.T) *Graph {
	t.Helper()
	nodes := []Node{
		{ID: "fe", Kind: KindForeach},
		{ID: "out", Kind: KindOutput},
	}
	edges := []Edge{{ID: "e1", Source: "fe", Target: "out"}}
	g, err := NewGraph("g1", nodes, edges)
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return g
}

func TestForeachExecutorSpawnsOneChildRunPerElement(t *testing.T) {
	g := foreachGraph(t)
	node, _ := g.Node("fe")
	sink := newTestSink()
	rc := NewRunContext("run-1", newFakeGateway(), sink)
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{JSON: []any{"a", "b", "c"}}}}

	payload, err := foreachExecutor{}.Execute(context.Background(), rc, g, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "Completed 3 parallel sub-executions." {
		t.Errorf("text = %q", payload.Text)
	}

	finals := sink.finalsFor("out")
	if len(finals) != 3 {
		t.Fatalf("got %d nodeFinal events for out, want 3", len(finals))
	}
	seen := map[string]bool{}
	for _, e := range finals {
		seen[e.Data.Text] = true
	}
	for _, want := range []string{"a", "b", "c"} {
		if !seen[want] {
			t.Errorf("missing child output %q, saw %v", want, seen)
		}
	}
}

func TestForeachExecutorDisablesOutEdgesOnParent(t *testing.T) {
	g := foreachGraph(t)
	node, _ := g.Node("fe")
	rc := NewRunContext("run-1", newFakeGateway(), newTestSink())
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{JSON: []any{"only"}}}}

	if _, err := foreachExecutor{}.Execute(context.Background(), rc, g, node, inputs); err != nil {
		t.Fatalf("execute: %v", err)
	}
	disabled := rc.TakeDisabledEdges(node.ID)
	if len(disabled) != 1 || disabled[0] != "e1" {
		t.Errorf("disabled = %v, want [e1]", disabled)
	}
}

func TestForeachExecutorHaltsWhenArrayMissing(t *testing.T) {
	g := foreachGraph(t)
	node, _ := g.Node("fe")
	rc := NewRunContext("run-1", newFakeGateway(), newTestSink())
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "not an array"}}}

	payload, err := foreachExecutor{}.Execute(context.Background(), rc, g, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "Halted (No Array Found)" {
		t.Errorf("text = %q", payload.Text)
	}
	disabled := rc.TakeDisabledEdges(node.ID)
	if len(disabled) != 1 || disabled[0] != "e1" {
		t.Errorf("disabled = %v, want [e1]", disabled)
	}
}

func TestForeachExecutorArrayPathExtractsNestedArray(t *testing.T) {
	g := foreachGraph(t)
	node := &Node{ID: "fe", Kind: KindForeach, Config: []byte(`{"arrayPath":"items"}`)}
	sink := newTestSink()
	rc := NewRunContext("run-1", newFakeGateway(), sink)
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{JSON: map[string]any{"items": []any{"x", "y"}}}}}

	_, err := foreachExecutor{}.Execute(context.Background(), rc, g, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(sink.finalsFor("out")) != 2 {
		t.Errorf("got %d finals, want 2", len(sink.finalsFor("out")))
	}
}
