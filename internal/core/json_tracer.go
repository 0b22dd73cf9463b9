package core

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// DefaultTraceRetention is how many spans a JSONTracer keeps for Entries.
const DefaultTraceRetention = 1024

// JSONTraceEntry is one finished span.
type JSONTraceEntry struct {
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// JSONTracer writes each finished span as a JSON line and keeps the most
// recent ones in a ring buffer.
type JSONTracer struct {
	mu   sync.Mutex
	enc  *json.Encoder
	ring []JSONTraceEntry
	next int
	full bool
}

// NewJSONTracer writes to w (may be nil) and retains DefaultTraceRetention spans.
func NewJSONTracer(w io.Writer) *JSONTracer {
	return NewJSONTracerWithRetention(w, DefaultTraceRetention)
}

// NewJSONTracerWithRetention is NewJSONTracer keeping the last n spans (at least one).
func NewJSONTracerWithRetention(w io.Writer, n int) *JSONTracer {
	if n < 1 {
		n = 1
	}
	t := &JSONTracer{ring: make([]JSONTraceEntry, n)}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the retained spans, oldest first.
func (t *JSONTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.full {
		return append([]JSONTraceEntry(nil), t.ring[:t.next]...)
	}
	out := make([]JSONTraceEntry, 0, len(t.ring))
	out = append(out, t.ring[t.next:]...)
	return append(out, t.ring[:t.next]...)
}

// Start implements Tracer.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	started := time.Now().UTC()
	return ctx, spanFunc(func(err error) {
		ended := time.Now().UTC()
		entry := JSONTraceEntry{
			Operation:  operation,
			Status:     statusLabel(err == nil),
			DurationMS: float64(ended.Sub(started)) / float64(time.Millisecond),
			StartedAt:  started,
			EndedAt:    ended,
		}
		if err != nil {
			entry.Error = err.Error()
		}
		t.record(entry)
	})
}

func (t *JSONTracer) record(entry JSONTraceEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ring[t.next] = entry
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.full = true
	}
	if t.enc != nil {
		_ = t.enc.Encode(entry)
	}
}

type spanFunc func(err error)

func (f spanFunc) End(err error) { f(err) }
