package gateway

import (
	"encoding/json"
	"strings"
)

// Chat event states.
const (
	ChatStateDelta   = "delta"
	ChatStateFinal   = "final"
	ChatStateError   = "error"
	ChatStateAborted = "aborted"
)

// ChatEvent is the payload of the gateway's "chat" event, the only event
// the core consumes.
type ChatEvent struct {
	RunID        string       `json:"runId"`
	SessionKey   string       `json:"sessionKey"`
	State        string       `json:"state"`
	Message      *ChatMessage `json:"message,omitempty"`
	ErrorMessage string       `json:"errorMessage,omitempty"`
}

// ChatMessage carries the assistant text for a chat event. Content may be
// a plain string, a list of {type, text} blocks, or absent in favor of
// Text — the gateway has used all three shapes across versions.
type ChatMessage struct {
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Text    string          `json:"text,omitempty"`
}

type chatContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ExtractText pulls the assistant text out of a ChatMessage regardless of
// which of the three content shapes the gateway used. Non-text blocks are
// ignored.
func ExtractText(msg *ChatMessage) string {
	if msg == nil {
		return ""
	}
	if len(msg.Content) > 0 {
		var asString string
		if err := json.Unmarshal(msg.Content, &asString); err == nil {
			return asString
		}
		var blocks []chatContentBlock
		if err := json.Unmarshal(msg.Content, &blocks); err == nil {
			var sb strings.Builder
			for _, b := range blocks {
				if b.Type == "text" {
					sb.WriteString(b.Text)
				}
			}
			return sb.String()
		}
		return ""
	}
	return msg.Text
}

// CumulativeTextTracker turns the gateway's cumulative chat text into
// incremental suffixes. The gateway's delta/final text fields always carry
// the full message so far, not a fragment; the consumer must diff against
// what it has already seen.
type CumulativeTextTracker struct {
	seen string
}

// Next computes the increment to emit for newText and records it as seen.
// If newText extends seen, the increment is the trailing slice. Otherwise
// the producer re-issued the text from scratch (rare); the tracker treats
// the whole of newText as the increment rather than attempting a diff.
func (t *CumulativeTextTracker) Next(newText string) string {
	var suffix string
	if strings.HasPrefix(newText, t.seen) {
		suffix = newText[len(t.seen):]
	} else {
		suffix = newText
	}
	t.seen = newText
	return suffix
}

// Text returns everything observed so far.
func (t *CumulativeTextTracker) Text() string { return t.seen }
