package emit

import "context"

// MultiSink fans a single event stream out to several sinks, e.g. the
// registry's per-run backlog plus a tracing or logging sink wired in by the
// host binary. A failing EmitBatch on one sink does not stop delivery to
// the rest; the first error encountered is returned.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink builds a MultiSink over sinks, skipping any nil entries.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiSink) Emit(event Event) {
	for _, s := range m.sinks {
		s.Emit(event)
	}
}

func (m *MultiSink) EmitBatch(ctx context.Context, events []Event) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.EmitBatch(ctx, events); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) Flush(ctx context.Context) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
