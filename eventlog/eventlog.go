// Package eventlog records pipeline observability events in a bounded
// in-memory ring buffer.
package eventlog

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/use-agent/rankscope/models"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 5000

// Sink receives observability events.
type Sink interface {
	Record(event string, fields map[string]any)
}

// Discard is a Sink that drops every event.
var Discard Sink = discard{}

type discard struct{}

func (discard) Record(string, map[string]any) {}

// Ring is a fixed-capacity event buffer. When full, the oldest event is
// overwritten. It is safe for concurrent use.
type Ring struct {
	mu     sync.Mutex
	buf    []models.Event
	next   int
	full   bool
	now    func() time.Time
	mirror bool
}

// Option configures a Ring.
type Option func(*Ring)

// WithSlogMirror also writes every event to the default slog logger at
// debug level.
func WithSlogMirror() Option {
	return func(r *Ring) { r.mirror = true }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Ring) { r.now = now }
}

// NewRing creates a Ring holding at most capacity events. A non-positive
// capacity falls back to DefaultCapacity.
func NewRing(capacity int, opts ...Option) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	r := &Ring{
		buf: make([]models.Event, capacity),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends an event, evicting the oldest one when the ring is full.
// The fields map is copied.
func (r *Ring) Record(event string, fields map[string]any) {
	e := models.Event{Name: event, Fields: maps.Clone(fields)}

	r.mu.Lock()
	e.Time = r.now()
	r.buf[r.next] = e
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
	r.mu.Unlock()

	if r.mirror {
		attrs := make([]any, 0, len(fields)*2)
		for k, v := range fields {
			attrs = append(attrs, k, v)
		}
		slog.Debug(event, attrs...)
	}
}

// Snapshot returns the buffered events, oldest first.
func (r *Ring) Snapshot() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]models.Event, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]models.Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}

// Len returns the number of buffered events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Cap returns the ring capacity.
func (r *Ring) Cap() int { return len(r.buf) }

// Clear drops every buffered event.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.buf)
	r.next = 0
	r.full = false
}
