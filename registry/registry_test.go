package registry

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/flowkit-ai/graphrunner/gateway"
	"github.com/flowkit-ai/graphrunner/graph"
	"github.com/flowkit-ai/graphrunner/graph/emit"
)

// fakeGateway is the registry package's own minimal graph.Gateway: every
// RPC succeeds at once and no chat event is ever delivered, which is enough
// to drive a Runner through input/output graphs without a real socket.
type fakeGateway struct{}

func (fakeGateway) SessionsReset(context.Context, string) error             { return nil }
func (fakeGateway) SessionsPatch(context.Context, string, map[string]any) error { return nil }
func (fakeGateway) ChatAbort(context.Context, string, string) error         { return nil }
func (fakeGateway) Request(context.Context, string, json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}

// OnChat and ChatSend are unused by the input/output-only graphs these
// tests drive; they exist only to satisfy graph.Gateway.
func (fakeGateway) OnChat(string, gateway.ChatHandler) func() { return func() {} }

func (fakeGateway) ChatSend(context.Context, string, string, gateway.ChatSendOptions) (string, error) {
	return "run-1", nil
}

func simpleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	nodes := []graph.Node{
		{ID: "in", Kind: graph.KindInput, Config: []byte(`{"prompt":"hi"}`)},
		{ID: "out", Kind: graph.KindOutput},
	}
	edges := []graph.Edge{{ID: "e1", Source: "in", Target: "out"}}
	g, err := graph.NewGraph("g1", nodes, edges)
	if err != nil {
		t.Fatalf("new graph: %v", err)
	}
	return g
}

func TestRegistryStartAndSubscribeSeesTerminalEvent(t *testing.T) {
	reg := New(fakeGateway{}, WithGraceWindow(50*time.Millisecond))
	g := simpleGraph(t)

	runID := reg.Start(context.Background(), g, graph.NodePayload{}, graph.WithSettleDelay(0))

	events, unsubscribe, err := reg.Subscribe(runID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				t.Fatal("event channel closed before runCompleted")
			}
			if e.Type == emit.RunCompleted {
				payload, status, ok := reg.Result(runID, "out")
				if !ok || status != graph.StatusCompleted {
					t.Fatalf("result: ok=%v status=%q", ok, status)
				}
				if payload.Text != "hi" {
					t.Errorf("text = %q, want %q", payload.Text, "hi")
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for runCompleted")
		}
	}
}

func TestRegistrySubscribeUnknownRun(t *testing.T) {
	reg := New(fakeGateway{})
	if _, _, err := reg.Subscribe("does-not-exist"); err != ErrRunNotFound {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRegistryCancelUnknownRun(t *testing.T) {
	reg := New(fakeGateway{})
	if err := reg.Cancel("does-not-exist"); err != ErrRunNotFound {
		t.Fatalf("err = %v, want ErrRunNotFound", err)
	}
}

func TestRegistryEvictsRunAfterGraceWindow(t *testing.T) {
	reg := New(fakeGateway{}, WithGraceWindow(20*time.Millisecond))
	g := simpleGraph(t)
	runID := reg.Start(context.Background(), g, graph.NodePayload{}, graph.WithSettleDelay(0))

	events, unsubscribe, err := reg.Subscribe(runID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	for e := range events {
		if e.Type == emit.RunCompleted {
			break
		}
	}
	unsubscribe()

	time.Sleep(200 * time.Millisecond)
	if _, _, err := reg.Subscribe(runID); err != ErrRunNotFound {
		t.Fatalf("err = %v, want ErrRunNotFound after eviction", err)
	}
}
