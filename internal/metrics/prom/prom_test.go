package prom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userstats/internal/metrics"
)

func TestIncCounter_RoutesByName(t *testing.T) {
	t.Parallel()
	b := New(Options{})

	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": "succeeded"})
	b.IncCounter(metrics.RunsTotal, 2, metrics.Labels{"status": "succeeded"})
	b.IncCounter(metrics.RunsTotal, 1, nil)
	b.IncCounter(metrics.RecordsTotal, 42, metrics.Labels{"kind": "written"})
	b.IncCounter(metrics.StepTotal, 1, metrics.Labels{"step": "load", "status": "ok"})

	assert.Equal(t, 3.0, testutil.ToFloat64(b.runs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.runs.WithLabelValues("unknown")))
	assert.Equal(t, 42.0, testutil.ToFloat64(b.records.WithLabelValues("written")))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.steps.WithLabelValues("load", "ok")))
}

func TestIncCounter_IgnoresInvalidObservations(t *testing.T) {
	t.Parallel()
	b := New(Options{})

	b.IncCounter(metrics.RunsTotal, 0, metrics.Labels{"status": "succeeded"})
	b.IncCounter(metrics.RecordsTotal, 1, metrics.Labels{})
	b.IncCounter("unknown_total", 1, nil)
	b.ObserveHistogram(metrics.StepDurationSeconds, -1, metrics.Labels{"step": "load"})

	assert.Equal(t, 0, testutil.CollectAndCount(b.runs))
	assert.Equal(t, 0, testutil.CollectAndCount(b.records))
	assert.Equal(t, 0, testutil.CollectAndCount(b.stepDuration))
}

func TestHandler_ExposesObservations(t *testing.T) {
	t.Parallel()
	b := New(Options{})

	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "write", "status": "ok"})
	b.IncCounter(metrics.HTTPRequestsTotal, 1, metrics.Labels{"status": "202"})

	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `etl_step_duration_seconds_count{status="ok",step="write"} 1`)
	assert.Contains(t, text, `etl_http_requests_total{status="202"} 1`)
}

func TestFlush_WithoutPushURLIsNoop(t *testing.T) {
	t.Parallel()
	require.NoError(t, New(Options{}).Flush())
}

func TestFlush_PushesToGateway(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var path atomic.Value
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		path.Store(r.URL.Path)
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gw.Close()

	b := New(Options{PushURL: gw.URL})
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": "succeeded"})

	require.NoError(t, b.Flush())
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, strings.HasSuffix(path.Load().(string), "/job/userstats"), "path=%v", path.Load())
}

func TestFlush_GatewayErrorIsReturned(t *testing.T) {
	t.Parallel()

	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer gw.Close()

	b := New(Options{PushURL: gw.URL, JobName: "nightly"})
	b.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": "failed"})

	err := b.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pushgateway")
}
