package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineMetrics(t *testing.T) {
	m := NewEngineMetrics()

	m.RecordWrite(true)
	m.RecordWrite(false)
	m.RecordWrite(false)
	m.RecordPropagation(1)
	m.RecordPropagation(3)
	m.RecordPropagation(2)
	m.RecordCallback(false)
	m.RecordCallback(true)
	m.RecordEvaluation()
	m.RecordEvalError()
	m.RecordCache(true)
	m.RecordCache(true)
	m.RecordCache(true)
	m.RecordCache(false)

	stats := m.GetStats()
	assert.Equal(t, int64(3), stats.Writes)
	assert.Equal(t, int64(2), stats.SuppressedWrites)
	assert.Equal(t, int64(3), stats.Propagations)
	assert.Equal(t, int64(3), stats.MaxDepth)
	assert.Equal(t, int64(2), stats.Callbacks)
	assert.Equal(t, int64(1), stats.CallbackErrors)
	assert.Equal(t, int64(1), stats.Evaluations)
	assert.Equal(t, int64(1), stats.EvalErrors)
	assert.Equal(t, 75.0, stats.CacheHitRate)

	m.Reset()
	assert.Equal(t, "0s", m.GetStats().Uptime)
	assert.Zero(t, m.GetStats().Writes)
	assert.Zero(t, m.GetStats().CacheHitRate)
}

func TestEngineMetricsConcurrentDepth(t *testing.T) {
	m := NewEngineMetrics()
	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(depth int) {
			defer wg.Done()
			m.RecordPropagation(depth)
		}(i)
	}
	wg.Wait()

	stats := m.GetStats()
	assert.Equal(t, int64(50), stats.Propagations)
	assert.Equal(t, int64(50), stats.MaxDepth)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	h := NewHTTPMetrics()
	ok := h.Middleware("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fine"))
	})
	fail := h.Middleware("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		ok(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	fail(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stats := h.GetStats()
	assert.Equal(t, int64(4), stats.Requests)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Equal(t, 25.0, stats.ErrorRate)
	assert.Zero(t, stats.InFlight)
	assert.GreaterOrEqual(t, stats.MaxLatency, stats.AvgLatency)
	assert.Equal(t, []RouteCount{{Route: "/fail", Count: 1}, {Route: "/ok", Count: 3}}, stats.Routes)

	h.Reset()
	stats = h.GetStats()
	assert.Zero(t, stats.Requests)
	assert.Empty(t, stats.Routes)
}

func TestStatusRecorderHijack(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rec.Hijack()
	assert.Error(t, err)

	h := NewHTTPMetrics()
	hijacked := make(chan error, 1)
	server := httptest.NewServer(h.Middleware("/", func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			hijacked <- errors.New("not a hijacker")
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		hijacked <- err
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err == nil {
		resp.Body.Close()
	}
	require.NoError(t, <-hijacked)
}

func TestReadRuntime(t *testing.T) {
	stats := ReadRuntime()
	assert.Positive(t, stats.NumGoroutine)
	assert.Positive(t, stats.HeapAlloc)
	assert.Positive(t, stats.Sys)
	assert.False(t, stats.Timestamp.IsZero())
}
