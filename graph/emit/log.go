package emit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogSink writes events to a writer, either as human-readable text or as
// JSON lines. It has no internal buffering, so Flush is a no-op.
type LogSink struct {
	w        io.Writer
	jsonMode bool
}

// NewLogSink builds a LogSink. A nil writer defaults to os.Stdout.
func NewLogSink(w io.Writer, jsonMode bool) *LogSink {
	if w == nil {
		w = os.Stdout
	}
	return &LogSink{w: w, jsonMode: jsonMode}
}

func (l *LogSink) Emit(event Event) {
	if l.jsonMode {
		data, err := json.Marshal(event)
		if err != nil {
			fmt.Fprintf(l.w, `{"type":"marshalError","error":%q}`+"\n", err.Error())
			return
		}
		fmt.Fprintf(l.w, "%s\n", data)
		return
	}

	switch event.Type {
	case RunError:
		fmt.Fprintf(l.w, "[%s] runId=%s error=%s\n", event.Type, event.RunID, event.Error)
	case NodeError:
		fmt.Fprintf(l.w, "[%s] nodeId=%s error=%s\n", event.Type, event.NodeID, event.Error)
	case Thinking:
		fmt.Fprintf(l.w, "[%s] nodeId=%s content=%s\n", event.Type, event.NodeID, event.Content)
	case NodeStarted, NodeDelta, NodeFinal:
		text := ""
		if event.Data != nil {
			text = event.Data.Text
		}
		fmt.Fprintf(l.w, "[%s] nodeId=%s text=%q\n", event.Type, event.NodeID, text)
	default:
		fmt.Fprintf(l.w, "[%s] runId=%s nodeId=%s\n", event.Type, event.RunID, event.NodeID)
	}
}

func (l *LogSink) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		l.Emit(e)
	}
	return nil
}

func (l *LogSink) Flush(_ context.Context) error { return nil }
