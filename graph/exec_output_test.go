package graph

import (
	"context"
	"testing"
)

func TestOutputExecutorConcatenatesInputs(t *testing.T) {
	rc := newNullRunContext(newFakeGateway())
	inputs := []NamedPayload{
		{Label: "a", Payload: NodePayload{Text: "one"}},
		{Label: "b", Payload: NodePayload{Text: "two"}},
	}

	payload, err := outputExecutor{}.Execute(context.Background(), rc, nil, &Node{ID: "o1", Kind: KindOutput}, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "one\n\ntwo" {
		t.Errorf("text = %q, want %q", payload.Text, "one\n\ntwo")
	}
}

func TestOutputExecutorWithNoInputsIsEmpty(t *testing.T) {
	rc := newNullRunContext(newFakeGateway())

	payload, err := outputExecutor{}.Execute(context.Background(), rc, nil, &Node{ID: "o1", Kind: KindOutput}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "" {
		t.Errorf("text = %q, want empty", payload.Text)
	}
}
