package graph

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowkit-ai/graphrunner/gateway"
	"github.com/flowkit-ai/graphrunner/graph/emit"
)

// DefaultChatTimeout is the hard ceiling a node executor waits for a
// chat turn's final/error/aborted event, per spec.md §4.2/§5.
const DefaultChatTimeout = 120 * time.Second

// Gateway is the slice of gateway.Client's RPC surface node executors need.
// Declaring it here rather than depending on *gateway.Client directly lets
// executor tests substitute a fake that never opens a socket.
type Gateway interface {
	SessionsReset(ctx context.Context, sessionKey string) error
	SessionsPatch(ctx context.Context, sessionKey string, patch map[string]any) error
	ChatSend(ctx context.Context, sessionKey, message string, opts gateway.ChatSendOptions) (string, error)
	ChatAbort(ctx context.Context, sessionKey, chatRunID string) error
	OnChat(sessionKey string, h gateway.ChatHandler) (cancel func())
	Request(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// InflightOp names the gateway-side operation a node currently has open, so
// a cancelling run can abort it.
type InflightOp struct {
	SessionKey string
	ChatRunID  string
}

// InflightTracker is the run's set of in-flight gateway operations, indexed
// by node ID. The runner reads a snapshot when cancelling; executors
// register and clear their own entry.
type InflightTracker struct {
	mu  sync.Mutex
	ops map[string]InflightOp
}

func NewInflightTracker() *InflightTracker {
	return &InflightTracker{ops: make(map[string]InflightOp)}
}

func (t *InflightTracker) Set(nodeID string, op InflightOp) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[nodeID] = op
}

func (t *InflightTracker) Clear(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.ops, nodeID)
}

func (t *InflightTracker) Snapshot() map[string]InflightOp {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]InflightOp, len(t.ops))
	for k, v := range t.ops {
		out[k] = v
	}
	return out
}

// RunContext bundles the facilities shared by every node executor in a
// single run: the gateway client, the event sink (with sequence-number
// assignment), the run-scoped state store, and the in-flight op tracker
// cancellation reads from.
type RunContext struct {
	RunID       string
	Gateway     Gateway
	State       *StateStore
	ChatTimeout time.Duration

	inflight *InflightTracker
	sink     emit.Sink
	seq      atomic.Uint64

	disabledMu    sync.Mutex
	disabledEdges map[string][]string // nodeID -> edge IDs that node wants disabled
}

func NewRunContext(runID string, gw Gateway, sink emit.Sink) *RunContext {
	return &RunContext{
		RunID:         runID,
		Gateway:       gw,
		State:         NewStateStore(),
		ChatTimeout:   DefaultChatTimeout,
		inflight:      NewInflightTracker(),
		sink:          sink,
		disabledEdges: make(map[string][]string),
	}
}

// DisableEdges records edgeIDs as disabled by nodeID's own execution (a
// Switch routing decision or a ForEach fan-out). The runner collects these
// after the node finishes and folds them into the run's disabled-edge set.
func (rc *RunContext) DisableEdges(nodeID string, edgeIDs []string) {
	if len(edgeIDs) == 0 {
		return
	}
	rc.disabledMu.Lock()
	defer rc.disabledMu.Unlock()
	rc.disabledEdges[nodeID] = append(rc.disabledEdges[nodeID], edgeIDs...)
}

// TakeDisabledEdges returns and clears the edges nodeID asked to disable.
func (rc *RunContext) TakeDisabledEdges(nodeID string) []string {
	rc.disabledMu.Lock()
	defer rc.disabledMu.Unlock()
	out := rc.disabledEdges[nodeID]
	delete(rc.disabledEdges, nodeID)
	return out
}

func (rc *RunContext) nextSeq() uint64 { return rc.seq.Add(1) }

func (rc *RunContext) emit(e emit.Event) {
	e.RunID = rc.RunID
	e.Seq = rc.nextSeq()
	rc.sink.Emit(e)
}

func (rc *RunContext) EmitNodeStarted(nodeID string) {
	rc.emit(emit.Event{Type: emit.NodeStarted, NodeID: nodeID, Data: &emit.NodeData{}})
}

func (rc *RunContext) EmitDelta(nodeID string, suffix NodePayload) {
	rc.emit(emit.Event{Type: emit.NodeDelta, NodeID: nodeID, Data: toNodeData(suffix)})
}

func (rc *RunContext) EmitThinking(nodeID, preview string) {
	rc.emit(emit.Event{Type: emit.Thinking, NodeID: nodeID, Content: preview})
}

func (rc *RunContext) EmitFinal(nodeID string, payload NodePayload) {
	rc.emit(emit.Event{Type: emit.NodeFinal, NodeID: nodeID, Data: toNodeData(payload)})
}

func (rc *RunContext) EmitNodeError(nodeID string, err error) {
	rc.emit(emit.Event{Type: emit.NodeError, NodeID: nodeID, Error: err.Error()})
}

func (rc *RunContext) EmitNodeAborted(nodeID string) {
	rc.emit(emit.Event{Type: emit.NodeAborted, NodeID: nodeID})
}

func toNodeData(p NodePayload) *emit.NodeData {
	return &emit.NodeData{Text: p.Text, JSON: p.JSON, Meta: p.Meta}
}
