package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowkit-ai/graphrunner/graph/emit"
)

// Node execution statuses. Aborted nodes are a practical third outcome
// this runner tracks alongside the two spec.md §3 names explicitly
// (completed, error): a node halted by a cascading disable never ran its
// executor, so folding it into either of those would misrepresent it.
// Both error and aborted are "not completed" for upstream aggregation.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
	StatusAborted   = "aborted"
)

// ErrRunCancelled is returned by Run when the run was cancelled before or
// during execution.
var ErrRunCancelled = errors.New("run cancelled")

type nodeResult struct {
	Payload NodePayload
	Status  string
	Err     error
}

// Runner drives one graph to completion: it computes dependency levels,
// dispatches each level's executors concurrently, folds routing decisions
// (Switch/ForEach edge disabling) back into its disabled-edge set, and
// reports the run's lifecycle through its RunContext's sink.
type Runner struct {
	runID       string
	graph       *Graph
	rc          *RunContext
	globalInput NodePayload
	settleDelay time.Duration
	metrics     *Metrics

	ctx    context.Context
	cancel context.CancelFunc

	cancelled boolFlag

	mu            sync.RWMutex
	outputs       map[string]nodeResult
	disabledEdges map[string]bool
}

// NewRunner builds a Runner for graph g. parent's cancellation propagates
// to the runner and to any child runners it spawns via ForEach. sink
// receives every event the run (and its children) emit; gw is the shared
// gateway client.
func NewRunner(parent context.Context, runID string, g *Graph, gw Gateway, sink emit.Sink, globalInput NodePayload, opts ...Option) *Runner {
	ctx, cancel := context.WithCancel(parent)
	r := &Runner{
		runID:         runID,
		graph:         g,
		rc:            NewRunContext(runID, gw, sink),
		globalInput:   globalInput,
		settleDelay:   500 * time.Millisecond,
		ctx:           ctx,
		cancel:        cancel,
		outputs:       make(map[string]nodeResult),
		disabledEdges: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunID returns the run's ID.
func (r *Runner) RunID() string { return r.runID }

// Run executes the graph to completion: level by level, each level's nodes
// concurrently. It returns nil on success, ErrRunCancelled if cancelled,
// or the GraphError that aborted the run.
func (r *Runner) Run() error {
	levels, err := ComputeLevels(r.graph)
	if err != nil {
		r.rc.emit(emit.Event{Type: emit.RunError, Error: err.Error()})
		r.metrics.recordRun("error")
		return err
	}

	if r.cancelled.get() {
		r.rc.emit(emit.Event{Type: emit.RunCancelled})
		r.metrics.recordRun("cancelled")
		return ErrRunCancelled
	}

	if r.settleDelay > 0 {
		select {
		case <-time.After(r.settleDelay):
		case <-r.ctx.Done():
		}
	}
	r.rc.emit(emit.Event{Type: emit.RunStarted})

	for _, level := range levels {
		if r.cancelled.get() {
			break
		}
		var eg errgroup.Group
		for _, nodeID := range level {
			nodeID := nodeID
			eg.Go(func() error {
				r.runNode(nodeID)
				return nil
			})
		}
		_ = eg.Wait() // runNode never returns an error; failures are recorded per-node
	}

	if r.cancelled.get() {
		r.rc.emit(emit.Event{Type: emit.RunCancelled})
		r.metrics.recordRun("cancelled")
		return ErrRunCancelled
	}
	r.rc.emit(emit.Event{Type: emit.RunCompleted})
	r.metrics.recordRun("completed")
	return nil
}

// Cancel stops the run cooperatively: no further levels are launched, the
// run's context is cancelled (unblocking any executor waiting on it), and
// every currently in-flight chat.send is aborted on the gateway.
func (r *Runner) Cancel() {
	if !r.cancelled.set() {
		return
	}
	r.cancel()
	go r.abortInflight()
}

func (r *Runner) abortInflight() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, op := range r.rc.inflight.Snapshot() {
		_ = r.rc.Gateway.ChatAbort(ctx, op.SessionKey, op.ChatRunID)
	}
}

func (r *Runner) runNode(nodeID string) {
	node, ok := r.graph.Node(nodeID)
	if !ok {
		return // referenced only by a dangling edge; ComputeLevels never produces this
	}

	inEdges := r.graph.InEdges(nodeID)
	if len(inEdges) > 0 && r.allDisabled(inEdges) {
		r.recordAborted(nodeID)
		return
	}

	r.rc.EmitNodeStarted(nodeID)
	inputs := r.resolveInputs(nodeID, inEdges)

	executor, ok := ExecutorFor(node.Kind)
	if !ok {
		err := &NodeError{NodeID: nodeID, Code: ErrCodeConfig, Message: "unknown node kind " + string(node.Kind)}
		r.recordError(nodeID, err)
		return
	}

	start := time.Now()
	r.metrics.nodeStarted()
	payload, err := executor.Execute(r.ctx, r.rc, r.graph, node, inputs)
	r.metrics.nodeFinished()

	if err != nil {
		r.metrics.recordNode(node.Kind, "error", time.Since(start))
		r.recordError(nodeID, err)
		return
	}
	r.metrics.recordNode(node.Kind, "success", time.Since(start))

	for _, edgeID := range r.rc.TakeDisabledEdges(nodeID) {
		r.setDisabled(edgeID)
	}
	r.recordCompleted(nodeID, payload)
}

// allDisabled reports whether every edge in edges is in the disabled set.
func (r *Runner) allDisabled(edges []Edge) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range edges {
		if !r.disabledEdges[e.ID] {
			return false
		}
	}
	return true
}

func (r *Runner) setDisabled(edgeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disabledEdges[edgeID] = true
}

// resolveInputs builds the NamedPayload list an executor sees: one entry
// per non-disabled in-edge whose source node completed, in edge order. A
// node with no in-edges at all (a graph root) instead sees the run's
// global input, if one was provided — this is how ForEach feeds a fanned-
// out array element to a subgraph whose roots lost their only in-edge
// when the edge from the ForEach node itself was filtered out of the
// subgraph.
func (r *Runner) resolveInputs(nodeID string, inEdges []Edge) []NamedPayload {
	if len(inEdges) == 0 {
		if r.globalInput.Text == "" && r.globalInput.JSON == nil {
			return nil
		}
		return []NamedPayload{{Label: "input", Payload: r.globalInput}}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var inputs []NamedPayload
	for _, e := range inEdges {
		if r.disabledEdges[e.ID] {
			continue
		}
		result, ok := r.outputs[e.Source]
		if !ok || result.Status != StatusCompleted {
			continue
		}
		label := e.Source
		if src, ok := r.graph.Node(e.Source); ok && src.Label != "" {
			label = src.Label
		}
		inputs = append(inputs, NamedPayload{Label: label, Payload: result.Payload})
	}
	return inputs
}

func (r *Runner) recordCompleted(nodeID string, payload NodePayload) {
	r.mu.Lock()
	r.outputs[nodeID] = nodeResult{Payload: payload, Status: StatusCompleted}
	r.mu.Unlock()
	r.rc.EmitFinal(nodeID, payload)
}

func (r *Runner) recordError(nodeID string, err error) {
	r.mu.Lock()
	r.outputs[nodeID] = nodeResult{Status: StatusError, Err: err}
	r.mu.Unlock()
	r.rc.EmitNodeError(nodeID, err)
}

// recordAborted marks nodeID halted-without-invocation and cascades the
// halt: every out-edge of an aborted node is disabled too, so its
// downstream is given the chance to abort in turn.
func (r *Runner) recordAborted(nodeID string) {
	payload := NodePayload{Text: "Halted (Skipped)", Meta: map[string]any{}}
	r.mu.Lock()
	r.outputs[nodeID] = nodeResult{Payload: payload, Status: StatusAborted}
	for _, e := range r.graph.OutEdges(nodeID) {
		r.disabledEdges[e.ID] = true
	}
	r.mu.Unlock()
	r.rc.EmitNodeAborted(nodeID)
}

// Result returns the recorded payload and status for nodeID, if it ran.
func (r *Runner) Result(nodeID string) (NodePayload, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.outputs[nodeID]
	return res.Payload, res.Status, ok
}

// boolFlag is a tiny CAS-guarded bool: cancelled needs both "is it set"
// (get) and "set it, telling me if I was first" (set) semantics, which
// atomic.Bool's Store/Load alone doesn't name as clearly at call sites.
type boolFlag struct {
	v atomic.Bool
}

func (f *boolFlag) get() bool { return f.v.Load() }

// set marks the flag true and reports whether this call was the one that
// did so (false if it was already set).
func (f *boolFlag) set() bool { return f.v.CompareAndSwap(false, true) }
