package metrics

import (
	"sync/atomic"
	"time"
)

// EngineMetrics counts what the reactive engine does. All counters are
// atomic so the live server can read them while a propagation runs.
type EngineMetrics struct {
	writes           int64 // Write calls
	suppressedWrites int64 // writes that did not change the value
	propagations     int64 // real changes propagated
	callbacks        int64 // binding callbacks invoked
	callbackErrors   int64 // callbacks that panicked
	evaluations      int64 // Evaluate/Execute calls
	evalErrors       int64 // compile and evaluation failures
	cacheHits        int64
	cacheMisses      int64
	maxDepth         int64 // deepest re-entrant propagation seen
	startTime        time.Time
}

// EngineStats is a point-in-time copy of EngineMetrics.
type EngineStats struct {
	Writes           int64     `json:"writes"`
	SuppressedWrites int64     `json:"suppressed_writes"`
	Propagations     int64     `json:"propagations"`
	Callbacks        int64     `json:"callbacks"`
	CallbackErrors   int64     `json:"callback_errors"`
	Evaluations      int64     `json:"evaluations"`
	EvalErrors       int64     `json:"eval_errors"`
	CacheHits        int64     `json:"cache_hits"`
	CacheMisses      int64     `json:"cache_misses"`
	CacheHitRate     float64   `json:"cache_hit_rate"` // Percentage
	MaxDepth         int64     `json:"max_depth"`
	Uptime           string    `json:"uptime"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewEngineMetrics creates a zeroed collector.
func NewEngineMetrics() *EngineMetrics {
	return &EngineMetrics{startTime: time.Now()}
}

func (m *EngineMetrics) RecordWrite(changed bool) {
	atomic.AddInt64(&m.writes, 1)
	if !changed {
		atomic.AddInt64(&m.suppressedWrites, 1)
	}
}

// RecordPropagation counts a propagation at the given re-entrancy depth.
func (m *EngineMetrics) RecordPropagation(depth int) {
	atomic.AddInt64(&m.propagations, 1)
	d := int64(depth)
	for {
		current := atomic.LoadInt64(&m.maxDepth)
		if d <= current {
			break
		}
		if atomic.CompareAndSwapInt64(&m.maxDepth, current, d) {
			break
		}
	}
}

func (m *EngineMetrics) RecordCallback(failed bool) {
	atomic.AddInt64(&m.callbacks, 1)
	if failed {
		atomic.AddInt64(&m.callbackErrors, 1)
	}
}

func (m *EngineMetrics) RecordEvaluation() {
	atomic.AddInt64(&m.evaluations, 1)
}

func (m *EngineMetrics) RecordEvalError() {
	atomic.AddInt64(&m.evalErrors, 1)
}

func (m *EngineMetrics) RecordCache(hit bool) {
	if hit {
		atomic.AddInt64(&m.cacheHits, 1)
	} else {
		atomic.AddInt64(&m.cacheMisses, 1)
	}
}

// GetStats returns current engine statistics.
func (m *EngineMetrics) GetStats() EngineStats {
	stats := EngineStats{
		Writes:           atomic.LoadInt64(&m.writes),
		SuppressedWrites: atomic.LoadInt64(&m.suppressedWrites),
		Propagations:     atomic.LoadInt64(&m.propagations),
		Callbacks:        atomic.LoadInt64(&m.callbacks),
		CallbackErrors:   atomic.LoadInt64(&m.callbackErrors),
		Evaluations:      atomic.LoadInt64(&m.evaluations),
		EvalErrors:       atomic.LoadInt64(&m.evalErrors),
		CacheHits:        atomic.LoadInt64(&m.cacheHits),
		CacheMisses:      atomic.LoadInt64(&m.cacheMisses),
		MaxDepth:         atomic.LoadInt64(&m.maxDepth),
		Uptime:           time.Since(m.startTime).Round(time.Second).String(),
		Timestamp:        time.Now(),
	}
	if lookups := stats.CacheHits + stats.CacheMisses; lookups > 0 {
		stats.CacheHitRate = float64(stats.CacheHits) / float64(lookups) * 100
	}
	return stats
}

// Reset clears all counters (useful for testing)
func (m *EngineMetrics) Reset() {
	for _, c := range []*int64{
		&m.writes, &m.suppressedWrites, &m.propagations, &m.callbacks,
		&m.callbackErrors, &m.evaluations, &m.evalErrors, &m.cacheHits,
		&m.cacheMisses, &m.maxDepth,
	} {
		atomic.StoreInt64(c, 0)
	}
	m.startTime = time.Now()
}
