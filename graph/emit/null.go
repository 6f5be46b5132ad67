package emit

import "context"

// NullSink discards every event. Useful as the default sink for runners
// constructed without an observer (e.g. in tests that only check return
// values).
type NullSink struct{}

func NewNullSink() *NullSink { return &NullSink{} }

func (NullSink) Emit(Event)                             {}
func (NullSink) EmitBatch(context.Context, []Event) error { return nil }
func (NullSink) Flush(context.Context) error              { return nil }
