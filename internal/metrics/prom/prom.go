// Package prom implements a Prometheus backend for the internal/metrics package.
//
// Observations land in a private registry that is exposed over HTTP with
// Handler and, for one-shot CLI runs, can be pushed to a Pushgateway.
package prom

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"userstats/internal/metrics"
)

// Options configures the backend.
type Options struct {
	// PushURL is the Pushgateway base URL. Empty disables Flush pushes.
	PushURL string
	// JobName is the Pushgateway job. Defaults to "userstats".
	JobName string
}

// Backend implements metrics.Backend on a prometheus.Registry.
type Backend struct {
	registry *prometheus.Registry
	pusher   *push.Pusher

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	records      *prometheus.CounterVec
	runs         *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpErrors   *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New builds a backend with every metric registered up front.
func New(opts Options) *Backend {
	b := &Backend{
		registry: prometheus.NewRegistry(),

		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: metrics.StepTotal, Help: "Pipeline steps by outcome"},
			[]string{"step", "status"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.StepDurationSeconds,
				Help:    "Time spent in each pipeline step",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step", "status"},
		),
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: metrics.RecordsTotal, Help: "Records read and written by kind"},
			[]string{"kind"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: metrics.RunsTotal, Help: "Completed pipeline runs by status"},
			[]string{"status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: metrics.HTTPRequestsTotal, Help: "HTTP requests by response status"},
			[]string{"status"},
		),
		httpErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: metrics.HTTPErrorsTotal, Help: "HTTP responses with status >= 400"},
			[]string{"status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metrics.HTTPRequestDurationSeconds,
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
	}

	b.registry.MustRegister(
		b.steps,
		b.stepDuration,
		b.records,
		b.runs,
		b.httpRequests,
		b.httpErrors,
		b.httpDuration,
	)

	if url := strings.TrimSpace(opts.PushURL); url != "" {
		job := opts.JobName
		if job == "" {
			job = "userstats"
		}
		b.pusher = push.New(url, job).Gatherer(b.registry)
	}
	return b
}

// Registry returns the underlying registry.
func (b *Backend) Registry() *prometheus.Registry { return b.registry }

// Handler serves the registry in the Prometheus exposition format.
func (b *Backend) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{})
}

func label(l metrics.Labels, k string) string {
	if v := l[k]; v != "" {
		return v
	}
	return "unknown"
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, l metrics.Labels) {
	if delta <= 0 {
		return
	}
	switch name {
	case metrics.StepTotal:
		b.steps.WithLabelValues(label(l, "step"), label(l, "status")).Add(delta)
	case metrics.RecordsTotal:
		if l["kind"] == "" {
			return
		}
		b.records.WithLabelValues(l["kind"]).Add(delta)
	case metrics.RunsTotal:
		b.runs.WithLabelValues(label(l, "status")).Add(delta)
	case metrics.HTTPRequestsTotal:
		b.httpRequests.WithLabelValues(label(l, "status")).Add(delta)
	case metrics.HTTPErrorsTotal:
		b.httpErrors.WithLabelValues(label(l, "status")).Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, l metrics.Labels) {
	if value < 0 {
		return
	}
	switch name {
	case metrics.StepDurationSeconds:
		b.stepDuration.WithLabelValues(label(l, "step"), label(l, "status")).Observe(value)
	case metrics.HTTPRequestDurationSeconds:
		b.httpDuration.WithLabelValues(label(l, "status")).Observe(value)
	}
}

// Flush pushes the registry to the Pushgateway when one is configured.
// Push replaces every series previously pushed under the same job.
func (b *Backend) Flush() error {
	if b.pusher == nil {
		return nil
	}
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("pushgateway: %w", err)
	}
	return nil
}

var (
	_ metrics.Backend = (*Backend)(nil)
	_ metrics.Flusher = (*Backend)(nil)
)
