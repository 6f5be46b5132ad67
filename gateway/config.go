package gateway

import "time"

// Config configures a Client's connection and handshake.
type Config struct {
	URL   string
	Token string

	ClientID   string
	ClientMode string
	Role       string
	Scopes     []string

	// IdentityPath is where the device keypair is persisted. Client does not
	// read it and nothing fills in a default; cmd/orchestratord takes the
	// path from its -identity-path flag (default
	// ~/.config/graphrunner/device.json) and loads the Identity itself.
	IdentityPath string

	// ChallengeWait bounds how long Connect waits for a connect.challenge
	// event before proceeding without a nonce.
	ChallengeWait time.Duration
	// OpenTimeout bounds the full handshake, from connect.challenge wait
	// through hello-ok.
	OpenTimeout time.Duration
	// RPCTimeout bounds a generic correlated request.
	RPCTimeout time.Duration
	// ChatTimeout bounds waiting for a chat session's final/error/aborted
	// event.
	ChatTimeout time.Duration
}

// DefaultConfig returns the timeouts named in the concurrency model: ~10s
// to open, ~30s for a generic RPC, ~120s to wait out a chat turn.
func DefaultConfig() Config {
	return Config{
		ClientMode:    "backend",
		Role:          "operator",
		ChallengeWait: 2 * time.Second,
		OpenTimeout:   10 * time.Second,
		RPCTimeout:    30 * time.Second,
		ChatTimeout:   120 * time.Second,
	}
}
