package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// State is the connection's handshake state.
type State int32

const (
	Disconnected State = iota
	Opening
	Challenged
	Authenticating
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Opening:
		return "opening"
	case Challenged:
		return "challenged"
	case Authenticating:
		return "authenticating"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChatHandler receives chat events for sessions it was registered against.
type ChatHandler func(ChatEvent)

// Client is a single persistent connection to the gateway. One Client is
// shared across every node in a run; the handshake happens once, and every
// executor that needs an agent call goes through the same Request/ChatSend
// surface.
type Client struct {
	cfg      Config
	identity *Identity

	mu    sync.Mutex
	conn  *websocket.Conn
	state atomic.Int32

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan Frame

	handlersMu sync.RWMutex
	handlers   map[string][]ChatHandler // sessionKey -> handlers

	challengeCh chan string // delivers a nonce, closed without sending if none arrives

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient constructs a Client bound to identity. Connect must be called
// before any RPC.
func NewClient(cfg Config, identity *Identity) *Client {
	return &Client{
		cfg:      cfg,
		identity: identity,
		pending:  make(map[string]chan Frame),
		handlers: make(map[string][]ChatHandler),
		closed:   make(chan struct{}),
	}
}

// State returns the client's current handshake state.
func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Connect dials the gateway and runs the challenge-response handshake to
// completion. It returns once hello-ok has been received or the open
// timeout elapses.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(Opening)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.OpenTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		c.setState(Failed)
		return &TransportError{Message: "dial gateway", Cause: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.challengeCh = make(chan string, 1)
	go c.readLoop()

	nonce := c.awaitChallenge()

	c.setState(Authenticating)
	if err := c.sendConnect(dialCtx, nonce); err != nil {
		c.setState(Failed)
		return err
	}

	c.setState(Ready)
	return nil
}

// awaitChallenge waits briefly for a connect.challenge event and returns
// its nonce, or "" if none arrives within ChallengeWait. Some gateway
// deployments never challenge and expect a v1 payload straight away.
func (c *Client) awaitChallenge() string {
	c.setState(Challenged)
	timer := time.NewTimer(c.cfg.ChallengeWait)
	defer timer.Stop()
	select {
	case nonce := <-c.challengeCh:
		return nonce
	case <-timer.C:
		return ""
	case <-c.closed:
		return ""
	}
}

// MinProtocol and MaxProtocol bound the connect negotiation range this
// client supports.
const (
	MinProtocol = 3
	MaxProtocol = 3
)

func (c *Client) sendConnect(ctx context.Context, nonce string) error {
	signedAtMs := time.Now().UnixMilli()
	scopesCSV := ""
	for i, s := range c.cfg.Scopes {
		if i > 0 {
			scopesCSV += ","
		}
		scopesCSV += s
	}

	_, payload := buildSignedPayload(c.identity.Doc.DeviceID, c.cfg.ClientID, c.cfg.ClientMode, c.cfg.Role, scopesCSV, signedAtMs, c.cfg.Token, nonce)
	sig := signPayload(c.identity.Priv, payload)

	device := map[string]any{
		"id":        c.identity.Doc.DeviceID,
		"publicKey": encodePublicKey(c.identity.Pub),
		"signature": sig,
		"signedAt":  signedAtMs,
	}
	if nonce != "" {
		device["nonce"] = nonce
	}

	body := map[string]any{
		"minProtocol": MinProtocol,
		"maxProtocol": MaxProtocol,
		"client": map[string]any{
			"id":   c.cfg.ClientID,
			"mode": c.cfg.ClientMode,
		},
		"role":   c.cfg.Role,
		"scopes": c.cfg.Scopes,
		"device": device,
	}
	if c.cfg.Token != "" {
		body["auth"] = map[string]any{"token": c.cfg.Token}
	}
	params, _ := json.Marshal(body)

	resp, err := c.Request(ctx, "connect", params)
	if err != nil {
		return err
	}
	var hello struct {
		Type string `json:"type"`
	}
	if len(resp) > 0 {
		_ = json.Unmarshal(resp, &hello)
	}
	if hello.Type != "" && hello.Type != "hello-ok" {
		return &AuthError{Code: "HANDSHAKE_REJECTED", Message: hello.Type}
	}
	return nil
}

// readLoop is the single reader for the connection. It dispatches response
// frames to their waiting caller and event frames to registered handlers,
// and drops anything with an unrecognized Type for forward compatibility.
func (c *Client) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.closeOnce.Do(func() { close(c.closed) })
			c.failPending(&TransportError{Message: "connection closed", Cause: err})
			return
		}
		frame, err := Decode(data)
		if err != nil {
			continue
		}
		switch frame.Type {
		case FrameResponse:
			c.deliverResponse(frame)
		case FrameEvent:
			c.dispatchEvent(frame)
		default:
			// unknown frame types are ignored, per protocol
		}
	}
}

func (c *Client) deliverResponse(frame Frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[frame.ID]
	if ok {
		delete(c.pending, frame.ID)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- frame
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan Frame)
	c.pendingMu.Unlock()
	for _, ch := range pending {
		ch <- Frame{Type: FrameResponse, OK: boolPtr(false), Error: &RPCError{Code: "TRANSPORT", Message: err.Error()}}
	}
}

func (c *Client) dispatchEvent(frame Frame) {
	switch frame.Event {
	case "connect.challenge":
		var body struct {
			Nonce string `json:"nonce"`
		}
		_ = json.Unmarshal(frame.Payload, &body)
		select {
		case c.challengeCh <- body.Nonce:
		default:
		}
	case "chat":
		var ev ChatEvent
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			return
		}
		c.handlersMu.RLock()
		hs := append([]ChatHandler(nil), c.handlers[ev.SessionKey]...)
		c.handlersMu.RUnlock()
		for _, h := range hs {
			if h != nil {
				go h(ev)
			}
		}
	}
}

// OnChat registers h to receive every chat event for sessionKey. The
// returned func deregisters it. Handlers run on their own goroutine per
// event, so a slow handler never stalls the read loop.
func (c *Client) OnChat(sessionKey string, h ChatHandler) (cancel func()) {
	c.handlersMu.Lock()
	c.handlers[sessionKey] = append(c.handlers[sessionKey], h)
	idx := len(c.handlers[sessionKey]) - 1
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		hs := c.handlers[sessionKey]
		if idx < len(hs) {
			hs[idx] = nil
		}
	}
}

// Request issues a correlated request and blocks for its matching response,
// bounded by ctx. Connect's own handshake uses this for the "connect"
// method before the client reaches Ready.
func (c *Client) Request(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	id := uuid.NewString()
	ch := make(chan Frame, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	frame := Frame{Type: FrameRequest, ID: id, Method: method, Params: params}
	data, err := Encode(frame)
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, &ProtocolError{Message: fmt.Sprintf("encode %s request: %v", method, err)}
	}

	c.writeMu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, &TransportError{Message: fmt.Sprintf("send %s request", method), Cause: err}
	}

	select {
	case resp := <-ch:
		if resp.Error != nil {
			return nil, &RpcError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		return resp.Payload, nil
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
		return nil, &TimeoutError{Op: method, Timeout: c.cfg.RPCTimeout}
	case <-c.closed:
		return nil, &TransportError{Message: "connection closed while waiting for " + method}
	}
}

func (c *Client) requestWithTimeout(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.RPCTimeout)
	defer cancel()
	return c.Request(rctx, method, params)
}

// AgentsList returns the gateway's advertised agent catalog.
func (c *Client) AgentsList(ctx context.Context) (json.RawMessage, error) {
	return c.requestWithTimeout(ctx, "agents.list", nil)
}

// ModelsList returns the gateway's advertised model catalog.
func (c *Client) ModelsList(ctx context.Context) (json.RawMessage, error) {
	return c.requestWithTimeout(ctx, "models.list", nil)
}

// SessionsReset clears (or creates) the session named by key.
func (c *Client) SessionsReset(ctx context.Context, sessionKey string) error {
	params, _ := json.Marshal(map[string]string{"sessionKey": sessionKey})
	_, err := c.requestWithTimeout(ctx, "sessions.reset", params)
	return err
}

// SessionsPatch applies a partial update (model, system prompt, etc.) to an
// existing session.
func (c *Client) SessionsPatch(ctx context.Context, sessionKey string, patch map[string]any) error {
	body := map[string]any{"sessionKey": sessionKey}
	for k, v := range patch {
		body[k] = v
	}
	params, _ := json.Marshal(body)
	_, err := c.requestWithTimeout(ctx, "sessions.patch", params)
	return err
}

// ChatSendOptions carries chat.send's optional fields.
type ChatSendOptions struct {
	IdempotencyKey string
	TimeoutMs      int64
	ModelID        string
}

// ChatSend starts a turn on sessionKey with message and returns the
// gateway-assigned chat run ID; the reply itself streams back as "chat"
// events to whatever handler is registered via OnChat for this sessionKey.
// This chat run ID is distinct from the orchestrator's own run ID — it is
// only used to correlate a later ChatAbort.
func (c *Client) ChatSend(ctx context.Context, sessionKey, message string, opts ChatSendOptions) (string, error) {
	params, _ := json.Marshal(map[string]any{
		"sessionKey":     sessionKey,
		"message":        message,
		"idempotencyKey": opts.IdempotencyKey,
		"timeoutMs":      opts.TimeoutMs,
		"modelId":        opts.ModelID,
	})
	payload, err := c.requestWithTimeout(ctx, "chat.send", params)
	if err != nil {
		return "", err
	}
	var result struct {
		RunID string `json:"runId"`
	}
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &result)
	}
	return result.RunID, nil
}

// ChatAbort cancels an in-flight turn on sessionKey. chatRunID may be empty
// if the caller never captured one (e.g. ChatSend failed before returning).
func (c *Client) ChatAbort(ctx context.Context, sessionKey, chatRunID string) error {
	params, _ := json.Marshal(map[string]string{"sessionKey": sessionKey, "runId": chatRunID})
	_, err := c.requestWithTimeout(ctx, "chat.abort", params)
	return err
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
