package gateway

import (
	"fmt"
	"time"
)

// TransportError reports a connection failure: refused, dropped mid-flight,
// or never established within the open timeout.
type TransportError struct {
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport: %s: %v", e.Message, e.Cause)
	}
	return "transport: " + e.Message
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ProtocolError reports a frame that doesn't match the expected shape for
// its context (e.g. a response whose payload can't be decoded into the
// caller's expected type).
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return "protocol: " + e.Message }

// AuthError reports a handshake rejection: hello-ok never arrived, the
// signature was rejected, or a scope required by a later RPC is missing.
// Per the protocol, AuthError for a missing scope MUST NOT be retried.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth: %s: %s", e.Code, e.Message) }

// RpcError wraps any response with ok:false, carrying the server's
// {code, message}.
type RpcError struct {
	Code    string
	Message string
}

func (e *RpcError) Error() string { return fmt.Sprintf("rpc error %s: %s", e.Code, e.Message) }

// TimeoutError reports a bounded wait (RPC or chat-final) that elapsed
// without a response.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout waiting for %s after %s", e.Op, e.Timeout)
}
