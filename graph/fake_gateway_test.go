package graph

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/flowkit-ai/graphrunner/gateway"
	"github.com/flowkit-ai/graphrunner/graph/emit"
)

// fakeGateway is a Gateway that never opens a socket: ChatSend looks up a
// scripted response by sessionKey and delivers it to whatever handler is
// registered for that key, mirroring the gateway's own async chat event
// fan-out. Grounded on gateway/client_test.go's fakeGateway, minus the
// websocket transport this package's executors don't depend on.
type fakeGateway struct {
	mu       sync.Mutex
	handlers map[string][]gateway.ChatHandler

	// responses maps sessionKey to the sequence of ChatEvents ChatSend
	// delivers on every call against that key. Missing keys get
	// a single synthetic final event echoing the sent message.
	responses map[string][]gateway.ChatEvent
	chatErr   error

	requestFunc func(method string, params json.RawMessage) (json.RawMessage, error)

	resetCalls []string
	patchCalls []string
	abortCalls []string
	sentMsgs   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		handlers:  make(map[string][]gateway.ChatHandler),
		responses: make(map[string][]gateway.ChatEvent),
	}
}

func (f *fakeGateway) SessionsReset(_ context.Context, sessionKey string) error {
	f.mu.Lock()
	f.resetCalls = append(f.resetCalls, sessionKey)
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) SessionsPatch(_ context.Context, sessionKey string, _ map[string]any) error {
	f.mu.Lock()
	f.patchCalls = append(f.patchCalls, sessionKey)
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) OnChat(sessionKey string, h gateway.ChatHandler) func() {
	f.mu.Lock()
	f.handlers[sessionKey] = append(f.handlers[sessionKey], h)
	idx := len(f.handlers[sessionKey]) - 1
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		hs := f.handlers[sessionKey]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

func (f *fakeGateway) ChatSend(_ context.Context, sessionKey, message string, _ gateway.ChatSendOptions) (string, error) {
	f.mu.Lock()
	f.sentMsgs = append(f.sentMsgs, message)
	if f.chatErr != nil {
		err := f.chatErr
		f.mu.Unlock()
		return "", err
	}
	events, ok := f.responses[sessionKey]
	handlers := append([]gateway.ChatHandler(nil), f.handlers[sessionKey]...)
	f.mu.Unlock()

	if !ok {
		events = []gateway.ChatEvent{{SessionKey: sessionKey, State: gateway.ChatStateFinal, Message: &gateway.ChatMessage{Text: "echo: " + message}}}
	}

	go func() {
		for _, ev := range events {
			ev.SessionKey = sessionKey
			for _, h := range handlers {
				if h != nil {
					h(ev)
				}
			}
		}
	}()

	return "chatrun-1", nil
}

func (f *fakeGateway) ChatAbort(_ context.Context, sessionKey, chatRunID string) error {
	f.mu.Lock()
	f.abortCalls = append(f.abortCalls, sessionKey+"/"+chatRunID)
	f.mu.Unlock()
	return nil
}

func (f *fakeGateway) Request(_ context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if f.requestFunc != nil {
		return f.requestFunc(method, params)
	}
	return json.RawMessage(`{}`), nil
}

// newNullRunContext builds a RunContext backed by fakeGateway and a sink
// that discards everything, for executors that need one but whose test
// doesn't assert on the event stream.
func newNullRunContext(gw Gateway) *RunContext {
	return NewRunContext("run-1", gw, emit.NewNullSink())
}

// testSink records every event delivered to it, for tests that need to
// observe what a runner (or a ForEach child runner) actually emitted.
type testSink struct {
	mu     sync.Mutex
	events []emit.Event
}

func newTestSink() *testSink { return &testSink{} }

func (s *testSink) Emit(e emit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *testSink) EmitBatch(_ context.Context, events []emit.Event) error {
	for _, e := range events {
		s.Emit(e)
	}
	return nil
}

func (s *testSink) Flush(context.Context) error { return nil }

func (s *testSink) snapshot() []emit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]emit.Event(nil), s.events...)
}

func (s *testSink) finalsFor(nodeID string) []emit.Event {
	var out []emit.Event
	for _, e := range s.snapshot() {
		if e.Type == emit.NodeFinal && e.NodeID == nodeID {
			out = append(out, e)
		}
	}
	return out
}
