// Package registry maps run IDs to executing graph.Runners and multiplexes
// each run's event stream to zero or more subscribers, buffering recent
// events so a subscriber that attaches late doesn't miss anything within
// the buffer window.
package registry

import (
	"context"
	"sync"

	"github.com/flowkit-ai/graphrunner/graph/emit"
)

// DefaultBufferSize is the reference bound from spec.md §4.5: the most
// recent 500 events per run are retained for late subscribers.
const DefaultBufferSize = 500

// bus is a single run's event sink: it retains the last capacity events
// and fans every event out to whatever subscribers are currently
// attached. It implements emit.Sink so a graph.Runner can use it directly.
type bus struct {
	mu          sync.Mutex
	capacity    int
	buffer      []emit.Event
	subscribers map[int]chan emit.Event
	nextID      int
	closed      bool
}

func newBus(capacity int) *bus {
	return &bus{capacity: capacity, subscribers: make(map[int]chan emit.Event)}
}

// Emit appends e to the ring buffer and delivers it to every current
// subscriber. A subscriber whose channel is full is skipped rather than
// blocked — per emit.Sink's contract, a slow consumer must never stall
// graph execution; the buffer still has the event for a fresh subscribe.
func (b *bus) Emit(e emit.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.buffer = append(b.buffer, e)
	if over := len(b.buffer) - b.capacity; over > 0 {
		b.buffer = b.buffer[over:]
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *bus) EmitBatch(_ context.Context, events []emit.Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

func (b *bus) Flush(context.Context) error { return nil }

// subscribe attaches a new subscriber, replays the buffered backlog onto
// its channel, and returns a cancel func that detaches it. If the run has
// already terminated and closed the bus, the channel is pre-loaded with
// the backlog and closed immediately — the caller drains what's left and
// sees the channel close.
func (b *bus) subscribe() (<-chan emit.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan emit.Event, b.capacity)
	for _, e := range b.buffer {
		select {
		case ch <- e:
		default:
		}
	}

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(c)
		}
	}
	return ch, cancel
}

// close marks the bus terminated: no further events are accepted and
// every attached subscriber's channel is closed. The buffer itself is
// left intact so subscribe can still replay it during the grace window.
func (b *bus) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
