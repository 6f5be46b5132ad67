package graph

import (
	"context"
	"testing"
)

func TestTemplateExecutorSubstitutesLabeledInput(t *testing.T) {
	node := &Node{ID: "n1", Kind: KindTemplate, Config: []byte(`{"template":"Hello {{input}}!","format":"text"}`)}
	rc := newNullRunContext(newFakeGateway())
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "world"}}}

	payload, err := templateExecutor{}.Execute(context.Background(), rc, nil, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "Hello world!" {
		t.Errorf("text = %q, want %q", payload.Text, "Hello world!")
	}
}

func TestTemplateExecutorParsesJSONFormat(t *testing.T) {
	node := &Node{ID: "n1", Kind: KindTemplate, Config: []byte(`{"template":"{\"name\":\"{{input}}\"}","format":"json"}`)}
	rc := newNullRunContext(newFakeGateway())
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "ada"}}}

	payload, err := templateExecutor{}.Execute(context.Background(), rc, nil, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	m, ok := payload.JSON.(map[string]any)
	if !ok || m["name"] != "ada" {
		t.Errorf("json = %#v, want name=ada", payload.JSON)
	}
}

func TestTemplateExecutorReadsStateNamespace(t *testing.T) {
	node := &Node{ID: "n1", Kind: KindTemplate, Config: []byte(`{"template":"profile={{state.profile}}","format":"text"}`)}
	rc := newNullRunContext(newFakeGateway())
	rc.State.Set("profile", "admin")

	payload, err := templateExecutor{}.Execute(context.Background(), rc, nil, node, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "profile=admin" {
		t.Errorf("text = %q, want %q", payload.Text, "profile=admin")
	}
}

func TestTemplateExecutorUnresolvedReferenceBecomesEmpty(t *testing.T) {
	node := &Node{ID: "n1", Kind: KindTemplate, Config: []byte(`{"template":"[{{missing.path}}]","format":"text"}`)}
	rc := newNullRunContext(newFakeGateway())

	payload, err := templateExecutor{}.Execute(context.Background(), rc, nil, node, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "[]" {
		t.Errorf("text = %q, want %q", payload.Text, "[]")
	}
}
