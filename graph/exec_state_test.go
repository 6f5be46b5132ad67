package graph

import (
	"context"
	"testing"
)

func TestStateExecutorReplaceMode(t *testing.T) {
	node := &Node{ID: "s1", Kind: KindState, Config: []byte(`{"namespace":"profile","mode":"replace"}`)}
	rc := newNullRunContext(newFakeGateway())
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{JSON: map[string]any{"name": "ada"}}}}

	if _, err := stateExecutor{}.Execute(context.Background(), rc, nil, node, inputs); err != nil {
		t.Fatalf("execute: %v", err)
	}
	v, ok := rc.State.Get("profile")
	if !ok {
		t.Fatal("expected profile namespace to be set")
	}
	m := v.(map[string]any)
	if m["name"] != "ada" {
		t.Errorf("profile = %#v", v)
	}
}

func TestStateExecutorMergeModeShallowMerges(t *testing.T) {
	node := &Node{ID: "s1", Kind: KindState, Config: []byte(`{"namespace":"profile","mode":"merge"}`)}
	rc := newNullRunContext(newFakeGateway())
	rc.State.Set("profile", map[string]any{"name": "ada", "role": "admin"})
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{JSON: map[string]any{"role": "owner"}}}}

	if _, err := stateExecutor{}.Execute(context.Background(), rc, nil, node, inputs); err != nil {
		t.Fatalf("execute: %v", err)
	}
	v, _ := rc.State.Get("profile")
	m := v.(map[string]any)
	if m["name"] != "ada" || m["role"] != "owner" {
		t.Errorf("profile = %#v", v)
	}
}

func TestStateExecutorAppendMode(t *testing.T) {
	node := &Node{ID: "s1", Kind: KindState, Config: []byte(`{"namespace":"log","mode":"append"}`)}
	rc := newNullRunContext(newFakeGateway())
	inputs1 := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "first"}}}
	inputs2 := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "second"}}}

	if _, err := stateExecutor{}.Execute(context.Background(), rc, nil, node, inputs1); err != nil {
		t.Fatalf("execute 1: %v", err)
	}
	if _, err := stateExecutor{}.Execute(context.Background(), rc, nil, node, inputs2); err != nil {
		t.Fatalf("execute 2: %v", err)
	}
	v, _ := rc.State.Get("log")
	arr := v.([]any)
	if len(arr) != 2 || arr[0] != "first" || arr[1] != "second" {
		t.Errorf("log = %#v", arr)
	}
}

func TestStateExecutorPathWritesNestedField(t *testing.T) {
	node := &Node{ID: "s1", Kind: KindState, Config: []byte(`{"namespace":"profile","path":"contact.email"}`)}
	rc := newNullRunContext(newFakeGateway())
	rc.State.Set("profile", map[string]any{"name": "ada"})
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "ada@example.com"}}}

	if _, err := stateExecutor{}.Execute(context.Background(), rc, nil, node, inputs); err != nil {
		t.Fatalf("execute: %v", err)
	}
	v, _ := rc.State.Get("profile")
	m := v.(map[string]any)
	if m["name"] != "ada" {
		t.Errorf("existing field lost: %#v", m)
	}
	contact, ok := m["contact"].(map[string]any)
	if !ok || contact["email"] != "ada@example.com" {
		t.Errorf("contact = %#v", m["contact"])
	}
}

func TestStateExecutorRequiresNamespace(t *testing.T) {
	node := &Node{ID: "s1", Kind: KindState, Config: []byte(`{"mode":"replace"}`)}
	rc := newNullRunContext(newFakeGateway())

	if _, err := stateExecutor{}.Execute(context.Background(), rc, nil, node, nil); err == nil {
		t.Fatal("expected an error when namespace is missing")
	}
}
