package gateway

import (
	"encoding/json"
	"testing"
)

func TestCumulativeTextTrackerEmitsSuffixes(t *testing.T) {
	var tr CumulativeTextTracker
	steps := []struct{ in, want string }{
		{"He", "He"},
		{"Hello", "llo"},
		{"Hello world", " world"},
	}
	for _, s := range steps {
		if got := tr.Next(s.in); got != s.want {
			t.Errorf("Next(%q) = %q, want %q", s.in, got, s.want)
		}
	}
	if tr.Text() != "Hello world" {
		t.Errorf("Text() = %q", tr.Text())
	}
}

func TestCumulativeTextTrackerNonPrefixRecovery(t *testing.T) {
	var tr CumulativeTextTracker
	tr.Next("draft one")
	got := tr.Next("totally different")
	if got != "totally different" {
		t.Errorf("non-prefix recovery should emit the whole new text, got %q", got)
	}
}

func TestExtractTextShapes(t *testing.T) {
	stringContent, _ := json.Marshal("hi there")
	blockContent, _ := json.Marshal([]chatContentBlock{{Type: "text", Text: "a"}, {Type: "image", Text: "ignored"}, {Type: "text", Text: "b"}})

	cases := []struct {
		name string
		msg  *ChatMessage
		want string
	}{
		{"nil message", nil, ""},
		{"string content", &ChatMessage{Content: stringContent}, "hi there"},
		{"block content", &ChatMessage{Content: blockContent}, "ab"},
		{"plain text field", &ChatMessage{Text: "fallback"}, "fallback"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractText(tc.msg); got != tc.want {
				t.Errorf("ExtractText() = %q, want %q", got, tc.want)
			}
		})
	}
}
