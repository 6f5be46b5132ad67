package graph

import (
	"context"
	"strings"
	"time"

	"github.com/flowkit-ai/graphrunner/gateway"
)

// NamedPayload pairs an upstream node's payload with the label the runner
// resolved for it (the source node's Label, falling back to its ID). The
// Template executor addresses upstream values by this label; every other
// executor just reads Payload.
type NamedPayload struct {
	Label   string
	Payload NodePayload
}

// Executor is the strategy every node kind implements. inputs holds one
// entry per in-edge whose edge ID is not in the run's disabled set and
// whose source node completed, in edge-list order; a node with no in-edges
// instead gets the run's global input, if any. g is the graph being executed (the parent graph, not a
// ForEach-derived subgraph, when the executor itself is what derives one).
type Executor interface {
	Execute(ctx context.Context, rc *RunContext, g *Graph, node *Node, inputs []NamedPayload) (NodePayload, error)
}

// executors is the fixed dispatch table from Kind to its Executor. Built
// once; Executor implementations are stateless.
var executors = map[Kind]Executor{
	KindInput:    inputExecutor{},
	KindTemplate: templateExecutor{},
	KindAgent:    agentExecutor{},
	KindMerge:    mergeExecutor{},
	KindJudge:    judgeExecutor{},
	KindSwitch:   switchExecutor{},
	KindExtract:  extractExecutor{},
	KindInvoke:   invokeExecutor{},
	KindForeach:  foreachExecutor{},
	KindState:    stateExecutor{},
	KindOutput:   outputExecutor{},
}

// ExecutorFor returns the Executor registered for kind.
func ExecutorFor(kind Kind) (Executor, bool) {
	e, ok := executors[kind]
	return e, ok
}

// payloads strips the labels off a NamedPayload slice.
func payloads(inputs []NamedPayload) []NodePayload {
	out := make([]NodePayload, len(inputs))
	for i, in := range inputs {
		out[i] = in.Payload
	}
	return out
}

// concatText joins the Text field of every payload with a blank line, the
// aggregation rule spec.md §4.3 spells out explicitly for the Agent
// executor. Judge, Switch, Extract, Invoke and ForEach aggregate their
// in-edges the same way; the spec only states the rule once but the
// multi-input case is common to all of them.
func concatText(inputs []NodePayload) string {
	parts := make([]string, 0, len(inputs))
	for _, p := range inputs {
		parts = append(parts, p.Text)
	}
	return strings.Join(parts, "\n\n")
}

// mergedJSON returns the JSON value of the first input that has one, or
// nil if none do. Used by the single-payload consumers (Switch, ForEach)
// that need one structured value, not N.
func mergedJSON(inputs []NodePayload) any {
	for _, p := range inputs {
		if p.JSON != nil {
			return p.JSON
		}
	}
	return nil
}

// inputsByLabel builds the label->payload map the Template executor
// substitutes against.
func inputsByLabel(inputs []NamedPayload) map[string]NodePayload {
	out := make(map[string]NodePayload, len(inputs))
	for _, in := range inputs {
		out[in.Label] = in.Payload
	}
	return out
}

// chatTurnResult is what runChatTurn hands back to its caller once the
// session reaches a terminal state (or times out with partial output).
type chatTurnResult struct {
	Text       string
	SessionKey string
	TimedOut   bool // true if the hard timeout fired before a terminal event
}

// runChatTurn implements the reset/patch/send/wait-for-terminal protocol
// shared by the Agent, Merge(llm/consensus), Judge and Extract executors
// (spec.md §4.3.2 steps 2-8, referenced by name from the other three). It
// resets the session, optionally pins a model, sends message, and streams
// the gateway's cumulative chat text back through rc as nodeDelta/thinking
// events until a final/error/aborted event arrives or timeout elapses.
//
// A timeout with some text already observed returns that text with
// TimedOut set rather than an error — per spec.md §4.3.3, only a timeout
// with zero output is fatal, and that rule is written generically enough
// to apply to every caller of this helper.
func runChatTurn(ctx context.Context, rc *RunContext, nodeID, sessionKey, message, modelID string, timeout time.Duration) (chatTurnResult, error) {
	if err := rc.Gateway.SessionsReset(ctx, sessionKey); err != nil {
		// A nonexistent session is the expected case on first use; reset
		// failures are logged by the caller's emit stream, not fatal.
		rc.EmitThinking(nodeID, "session reset: "+err.Error())
	}
	if modelID != "" {
		if err := rc.Gateway.SessionsPatch(ctx, sessionKey, map[string]any{"model": modelID}); err != nil {
			return chatTurnResult{}, &NodeError{NodeID: nodeID, Code: ErrCodeGateway, Message: "sessions.patch failed", Cause: err}
		}
	}

	type terminal struct {
		text string
		err  error
	}
	done := make(chan terminal, 1)
	var tracker gateway.CumulativeTextTracker

	unsubscribe := rc.Gateway.OnChat(sessionKey, func(ev gateway.ChatEvent) {
		text := gateway.ExtractText(ev.Message)
		switch ev.State {
		case gateway.ChatStateDelta:
			suffix := tracker.Next(text)
			if suffix != "" {
				rc.EmitDelta(nodeID, NodePayload{Text: suffix})
				rc.EmitThinking(nodeID, previewOf(suffix))
			}
		case gateway.ChatStateFinal:
			suffix := tracker.Next(text)
			if suffix != "" {
				rc.EmitDelta(nodeID, NodePayload{Text: suffix})
			}
			select {
			case done <- terminal{text: tracker.Text()}:
			default:
			}
		case gateway.ChatStateError:
			select {
			case done <- terminal{err: &NodeError{NodeID: nodeID, Code: ErrCodeGateway, Message: "chat error: " + ev.ErrorMessage}}:
			default:
			}
		case gateway.ChatStateAborted:
			select {
			case done <- terminal{err: &NodeError{NodeID: nodeID, Code: ErrCodeAborted, Message: "chat aborted"}}:
			default:
			}
		}
	})
	defer unsubscribe()

	chatRunID, err := rc.Gateway.ChatSend(ctx, sessionKey, message, gateway.ChatSendOptions{IdempotencyKey: rc.RunID + ":" + nodeID})
	if err != nil {
		return chatTurnResult{}, &NodeError{NodeID: nodeID, Code: ErrCodeGateway, Message: "chat.send failed", Cause: err}
	}
	rc.inflight.Set(nodeID, InflightOp{SessionKey: sessionKey, ChatRunID: chatRunID})
	defer rc.inflight.Clear(nodeID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case t := <-done:
		if t.err != nil {
			return chatTurnResult{}, t.err
		}
		return chatTurnResult{Text: t.text, SessionKey: sessionKey}, nil
	case <-timer.C:
		if text := tracker.Text(); text != "" {
			return chatTurnResult{Text: text, SessionKey: sessionKey, TimedOut: true}, nil
		}
		return chatTurnResult{}, &NodeError{NodeID: nodeID, Code: ErrCodeTimeout, Message: "timed out waiting for chat completion"}
	case <-ctx.Done():
		return chatTurnResult{}, &NodeError{NodeID: nodeID, Code: ErrCodeAborted, Message: "run cancelled", Cause: ctx.Err()}
	}
}

func previewOf(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return s[:max]
}
