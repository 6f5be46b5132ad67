package graph

import (
	"context"
	"encoding/json"
	"testing"
)

func TestInvokeExecutorSendsRenderedParamsAndReturnsStructuredResult(t *testing.T) {
	node := &Node{ID: "i1", Kind: KindInvoke, Config: []byte(`{"commandName":"tools.search","payloadTemplate":"{\"query\":\"{INPUT}\"}"}`)}
	gw := newFakeGateway()
	var gotMethod string
	var gotParams json.RawMessage
	gw.requestFunc = func(method string, params json.RawMessage) (json.RawMessage, error) {
		gotMethod, gotParams = method, params
		return json.Marshal(map[string]any{"results": []string{"one", "two"}})
	}
	rc := newNullRunContext(gw)
	inputs := []NamedPayload{{Label: "input", Payload: NodePayload{Text: "weather today"}}}

	payload, err := invokeExecutor{}.Execute(context.Background(), rc, nil, node, inputs)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotMethod != "tools.search" {
		t.Errorf("method = %q, want tools.search", gotMethod)
	}
	var sent struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(gotParams, &sent)
	if sent.Query != "weather today" {
		t.Errorf("query = %q, want %q", sent.Query, "weather today")
	}
	if payload.JSON == nil {
		t.Error("expected structured JSON result")
	}
}

func TestInvokeExecutorPlainStringResult(t *testing.T) {
	node := &Node{ID: "i1", Kind: KindInvoke, Config: []byte(`{"commandName":"tools.echo","payloadTemplate":"{\"text\":\"{INPUT}\"}"}`)}
	gw := newFakeGateway()
	gw.requestFunc = func(string, json.RawMessage) (json.RawMessage, error) {
		return json.Marshal("just a string")
	}
	rc := newNullRunContext(gw)

	payload, err := invokeExecutor{}.Execute(context.Background(), rc, nil, node, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if payload.Text != "just a string" || payload.JSON != nil {
		t.Errorf("payload = %+v", payload)
	}
}

func TestInvokeExecutorGatewayErrorIsNodeError(t *testing.T) {
	node := &Node{ID: "i1", Kind: KindInvoke, Config: []byte(`{"commandName":"tools.fail","payloadTemplate":"{}"}`)}
	gw := newFakeGateway()
	gw.requestFunc = func(string, json.RawMessage) (json.RawMessage, error) {
		return nil, &NodeError{Message: "boom"}
	}
	rc := newNullRunContext(gw)

	_, err := invokeExecutor{}.Execute(context.Background(), rc, nil, node, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
}
