package graph

import (
	"context"
	"testing"

	"github.com/flowkit-ai/graphrunner/gateway"
)

func TestExtractExecutorParsesJSONReply(t *testing.T) {
	node := &Node{ID: "e1", Kind: KindExtract, Config: []byte(`{"schema":"{name:string}"}`)}
	gw := newFakeGateway()
	sessionKey := SessionKey("main", PurposeExtract, "run-1", "e1")
	gw.responses[sessionKey] = []gateway.ChatEvent{
		{State: gateway.ChatStateFinal, Message: &gateway.ChatMessage{Text: `{"name":"ada"}`}},
	}
	rc := newNullRunContext(gw)
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "my name is ada"}}}

	payload, err := extractExecutor{}.Execute(context.Background(), rc, nil, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	m, ok := payload.JSON.(map[string]any)
	if !ok || m["name"] != "ada" {
		t.Errorf("json = %#v", payload.JSON)
	}
	if payload.Text != "Successfully extracted JSON data." {
		t.Errorf("text = %q", payload.Text)
	}
}

func TestExtractExecutorNonJSONReplyFallsBackToPlainText(t *testing.T) {
	node := &Node{ID: "e1", Kind: KindExtract, Config: []byte(`{"schema":"{}"}`)}
	gw := newFakeGateway()
	sessionKey := SessionKey("main", PurposeExtract, "run-1", "e1")
	gw.responses[sessionKey] = []gateway.ChatEvent{
		{State: gateway.ChatStateFinal, Message: &gateway.ChatMessage{Text: "no data found"}},
	}
	rc := newNullRunContext(gw)

	payload, err := extractExecutor{}.Execute(context.Background(), rc, nil, node, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.JSON != nil {
		t.Errorf("json = %#v, want nil", payload.JSON)
	}
	if payload.Text != "no data found" {
		t.Errorf("text = %q", payload.Text)
	}
}
