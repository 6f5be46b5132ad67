package emit

import (
	"context"
	"sync"
)

// RecordingSink captures every event it receives, grouped by run ID. It has
// no capacity bound and is meant for tests and short-lived debugging
// sessions that want to assert on the full event sequence of a run — the
// bounded, fan-out-capable buffer used by live subscribers lives in the
// registry package instead.
type RecordingSink struct {
	mu     sync.RWMutex
	events map[string][]Event
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{events: make(map[string][]Event)}
}

func (r *RecordingSink) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[event.RunID] = append(r.events[event.RunID], event)
}

func (r *RecordingSink) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		r.Emit(e)
	}
	return nil
}

func (r *RecordingSink) Flush(context.Context) error { return nil }

// History returns a copy of the events recorded for runID, in emission
// order.
func (r *RecordingSink) History(runID string) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events := r.events[runID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// TypesOf returns just the Type of each recorded event for runID, a
// convenient shape for asserting on event ordering in tests.
func (r *RecordingSink) TypesOf(runID string) []Type {
	events := r.History(runID)
	out := make([]Type, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
