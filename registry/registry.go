package registry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowkit-ai/graphrunner/graph"
	"github.com/flowkit-ai/graphrunner/graph/emit"
)

// DefaultGraceWindow is how long a terminated run's entry (and its event
// backlog) is kept around so a subscriber attaching just after
// termination still sees the tail of the stream, per spec.md §4.5.
const DefaultGraceWindow = 10 * time.Second

// ErrRunNotFound is returned by Subscribe/Cancel for an unknown or
// already-evicted run ID.
var ErrRunNotFound = errors.New("registry: run not found")

type entry struct {
	runner *graph.Runner
	bus    *bus
}

// Registry owns every currently-executing (or recently-terminated) run. It
// is the concrete implementation of the run-submission protocol's
// start/subscribe/cancel surface (spec.md §6).
type Registry struct {
	gw            graph.Gateway
	bufferSize    int
	graceWindow   time.Duration
	observability emit.Sink

	mu   sync.Mutex
	runs map[string]*entry
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithBufferSize overrides the per-run event backlog size.
func WithBufferSize(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.bufferSize = n
		}
	}
}

// WithGraceWindow overrides how long a terminated run stays subscribable.
func WithGraceWindow(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.graceWindow = d
		}
	}
}

// WithObservabilitySink fans every run's events out to sink in addition to
// the registry's own subscription backlog, e.g. a tracing or logging sink
// the host binary wires in alongside the default bus.
func WithObservabilitySink(sink emit.Sink) Option {
	return func(r *Registry) {
		r.observability = sink
	}
}

// New builds a Registry that spawns runners against gw.
func New(gw graph.Gateway, opts ...Option) *Registry {
	r := &Registry{
		gw:          gw,
		bufferSize:  DefaultBufferSize,
		graceWindow: DefaultGraceWindow,
		runs:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start mints a run ID, builds a Runner for g, and begins executing it in
// the background. It returns immediately with the run ID.
func (r *Registry) Start(ctx context.Context, g *graph.Graph, input graph.NodePayload, opts ...graph.Option) string {
	runID := uuid.NewString()
	b := newBus(r.bufferSize)

	var sink emit.Sink = b
	if r.observability != nil {
		sink = emit.NewMultiSink(b, r.observability)
	}
	runner := graph.NewRunner(ctx, runID, g, r.gw, sink, input, opts...)

	e := &entry{runner: runner, bus: b}
	r.mu.Lock()
	r.runs[runID] = e
	r.mu.Unlock()

	go func() {
		_ = runner.Run()
		b.close()
		r.scheduleEviction(runID)
	}()

	return runID
}

func (r *Registry) scheduleEviction(runID string) {
	time.AfterFunc(r.graceWindow, func() {
		r.mu.Lock()
		delete(r.runs, runID)
		r.mu.Unlock()
	})
}

// Subscribe attaches a new observer to runID's event stream. The returned
// channel is pre-loaded with the run's buffered backlog and then receives
// live events; it is closed when the run terminates and the caller's
// cancel func detaches early subscribers. The reference deployment only
// ever has one live subscriber per run, but Subscribe itself supports any
// number.
func (r *Registry) Subscribe(runID string) (<-chan emit.Event, func(), error) {
	r.mu.Lock()
	e, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return nil, nil, ErrRunNotFound
	}
	ch, cancel := e.bus.subscribe()
	return ch, cancel, nil
}

// Cancel requests cooperative cancellation of runID. It returns
// ErrRunNotFound if the run is unknown or has already been evicted past
// its grace window.
func (r *Registry) Cancel(runID string) error {
	r.mu.Lock()
	e, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return ErrRunNotFound
	}
	e.runner.Cancel()
	return nil
}

// Result exposes a single node's recorded payload and status for runID,
// mainly useful for tests and synchronous callers that don't want to
// drive the subscription protocol.
func (r *Registry) Result(runID, nodeID string) (graph.NodePayload, string, bool) {
	r.mu.Lock()
	e, ok := r.runs[runID]
	r.mu.Unlock()
	if !ok {
		return graph.NodePayload{}, "", false
	}
	return e.runner.Result(nodeID)
}
