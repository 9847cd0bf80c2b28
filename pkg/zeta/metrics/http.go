package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPMetrics counts requests served by the live server, per route.
type HTTPMetrics struct {
	requests     int64 // Total requests
	errors       int64 // Responses with status >= 400
	totalLatency int64 // Sum of latencies (nanoseconds)
	maxLatency   int64 // Slowest request (nanoseconds)
	inFlight     int64
	startTime    time.Time

	mu     sync.Mutex
	routes map[string]int64
}

func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		routes:    make(map[string]int64),
		startTime: time.Now(),
	}
}

// HTTPStats is a point-in-time copy of HTTPMetrics.
type HTTPStats struct {
	Requests   int64        `json:"requests"`
	Errors     int64        `json:"errors"`
	ErrorRate  float64      `json:"error_rate"` // Percentage
	AvgLatency int64        `json:"avg_latency"`
	MaxLatency int64        `json:"max_latency"`
	InFlight   int64        `json:"in_flight"`
	Routes     []RouteCount `json:"routes"`
	Uptime     string       `json:"uptime"`
	Timestamp  time.Time    `json:"timestamp"`
}

type RouteCount struct {
	Route string `json:"route"`
	Count int64  `json:"count"`
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack passes through to the wrapped writer so websocket upgrades work
// behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Middleware records latency and status for every request to route.
func (h *HTTPMetrics) Middleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		atomic.AddInt64(&h.inFlight, 1)
		defer atomic.AddInt64(&h.inFlight, -1)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start).Nanoseconds()
		atomic.AddInt64(&h.requests, 1)
		atomic.AddInt64(&h.totalLatency, elapsed)
		for {
			current := atomic.LoadInt64(&h.maxLatency)
			if elapsed <= current || atomic.CompareAndSwapInt64(&h.maxLatency, current, elapsed) {
				break
			}
		}
		if rec.status >= 400 {
			atomic.AddInt64(&h.errors, 1)
		}

		h.mu.Lock()
		h.routes[route]++
		h.mu.Unlock()
	}
}

// GetStats returns current request statistics.
func (h *HTTPMetrics) GetStats() HTTPStats {
	requests := atomic.LoadInt64(&h.requests)
	errors := atomic.LoadInt64(&h.errors)

	stats := HTTPStats{
		Requests:   requests,
		Errors:     errors,
		MaxLatency: atomic.LoadInt64(&h.maxLatency),
		InFlight:   atomic.LoadInt64(&h.inFlight),
		Timestamp:  time.Now(),
	}
	if requests > 0 {
		stats.ErrorRate = float64(errors) / float64(requests) * 100
		stats.AvgLatency = atomic.LoadInt64(&h.totalLatency) / requests
	}

	h.mu.Lock()
	stats.Uptime = time.Since(h.startTime).Round(time.Second).String()
	for route, n := range h.routes {
		stats.Routes = append(stats.Routes, RouteCount{Route: route, Count: n})
	}
	h.mu.Unlock()
	sort.Slice(stats.Routes, func(i, j int) bool { return stats.Routes[i].Route < stats.Routes[j].Route })

	return stats
}

// Reset clears all counters.
func (h *HTTPMetrics) Reset() {
	atomic.StoreInt64(&h.requests, 0)
	atomic.StoreInt64(&h.errors, 0)
	atomic.StoreInt64(&h.totalLatency, 0)
	atomic.StoreInt64(&h.maxLatency, 0)
	h.mu.Lock()
	h.routes = make(map[string]int64)
	h.startTime = time.Now()
	h.mu.Unlock()
}
