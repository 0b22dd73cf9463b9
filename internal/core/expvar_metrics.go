package core

import (
	"context"
	"expvar"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const expvarDurationKey = "duration_ms"

var (
	expvarMu        sync.Mutex
	expvarRecorders = make(map[string]*ExpvarMetricsRecorder)
	expvarSeq       atomic.Uint64
)

// ExpvarMetricsRecorder keeps per-operation totals in one published
// expvar.Map. Keys are "<operation>.duration_ms" (float milliseconds) and
// "<operation>.success" / "<operation>.error" (counts).
type ExpvarMetricsRecorder struct {
	name string
	vars *expvar.Map
}

// ExpvarMetricsSnapshot is a decoded copy of the recorder's map.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	Results     map[string]map[string]int64 `json:"results_total"`
}

// NewExpvarMetricsRecorder returns the recorder published under name,
// creating and publishing it on first use. An empty name gets a generated
// unique one.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	expvarMu.Lock()
	defer expvarMu.Unlock()
	if name == "" {
		name = fmt.Sprintf("todoapi_service_metrics_%d", expvarSeq.Add(1))
	}
	if rec, ok := expvarRecorders[name]; ok {
		return rec
	}
	rec := &ExpvarMetricsRecorder{name: name, vars: new(expvar.Map).Init()}
	// a var published elsewhere under the same name wins; rec stays private
	if expvar.Get(name) == nil {
		expvar.Publish(name, rec.vars)
	}
	expvarRecorders[name] = rec
	return rec
}

// Name returns the expvar name.
func (r *ExpvarMetricsRecorder) Name() string { return r.name }

// Observe implements MetricsRecorder.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	r.vars.AddFloat(operation+"."+expvarDurationKey, float64(duration)/float64(time.Millisecond))
	r.vars.Add(operation+"."+statusLabel(success), 1)
}

// Snapshot decodes the current totals.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	snap := ExpvarMetricsSnapshot{
		DurationsMS: make(map[string]float64),
		Results:     make(map[string]map[string]int64),
	}
	r.vars.Do(func(kv expvar.KeyValue) {
		dot := strings.LastIndexByte(kv.Key, '.')
		if dot < 0 {
			return
		}
		op, field := kv.Key[:dot], kv.Key[dot+1:]
		switch v := kv.Value.(type) {
		case *expvar.Float:
			if field == expvarDurationKey {
				snap.DurationsMS[op] = v.Value()
			}
		case *expvar.Int:
			if snap.Results[op] == nil {
				snap.Results[op] = make(map[string]int64, 2)
			}
			snap.Results[op][field] = v.Value()
		}
	})
	return snap
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
