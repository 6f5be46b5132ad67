package emit

import "context"

// Sink receives RunEvents produced by a runner. Implementations are used
// concurrently by a runner and any child runners it spawns (ForEach), so
// Emit must be safe for concurrent use and must not block the caller for
// long — a slow sink stalls graph execution.
type Sink interface {
	Emit(event Event)

	// EmitBatch delivers several events at once. Implementations that have
	// no batching advantage may just loop over Emit.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered to the
	// backing store or exporter. Safe to call multiple times.
	Flush(ctx context.Context) error
}
