package audit

import (
	"context"
	"sync"
)

// DefaultRecent is the number of audit entries the in-memory ring retains
// for the moderation panel.
const DefaultRecent = 50

// Ring keeps the most recent audit entries in a fixed-size circular buffer.
// It implements Sink, so it can sit in a fan-out next to the NATS publisher
// and feed the moderation panel without a store round trip.
type Ring struct {
	mu    sync.RWMutex
	items []Entry
	pos   int
	count int
}

// NewRing creates a ring retaining the last capacity entries. A capacity of
// zero or less falls back to DefaultRecent.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRecent
	}
	return &Ring{items: make([]Entry, capacity)}
}

// Record implements Sink. When the ring is full the oldest entry is
// overwritten.
func (r *Ring) Record(_ context.Context, entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.pos] = entry
	r.pos = (r.pos + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// Recent returns the retained entries in chronological order (oldest first).
func (r *Ring) Recent() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, r.count)
	// The oldest entry sits at (pos - count) mod len.
	start := (r.pos - r.count + len(r.items)) % len(r.items)
	for i := 0; i < r.count; i++ {
		out[i] = r.items[(start+i)%len(r.items)]
	}
	return out
}

// Fanout sends every entry to each sink in order.
type Fanout []Sink

// Record implements Sink.
func (f Fanout) Record(ctx context.Context, entry Entry) {
	for _, sink := range f {
		sink.Record(ctx, entry)
	}
}
