// Package metrics is a process-wide, backend-agnostic metrics seam.
//
// Pipeline and HTTP code record through the package functions; the command
// wiring picks a backend (Datadog, Prometheus or none) once at startup with
// SetBackend. The default backend discards everything.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Labels in braces.
const (
	StepTotal           = "etl_step_total"            // {step, status}
	StepDurationSeconds = "etl_step_duration_seconds" // {step, status}
	RecordsTotal        = "etl_records_total"         // {kind}
	RunsTotal           = "etl_runs_total"            // {status}

	HTTPRequestsTotal          = "etl_http_requests_total"           // {status}
	HTTPErrorsTotal            = "etl_http_errors_total"             // {status}
	HTTPRequestDurationSeconds = "etl_http_request_duration_seconds" // {status}
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe for
// concurrent use and should ignore names they do not know.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer and submit in batches.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter on the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample on the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush flushes the current backend if it buffers.
func Flush() error {
	if f, ok := current().(Flusher); ok {
		return f.Flush()
	}
	return nil
}

// ObserveStep records one step outcome: a StepTotal increment and a
// StepDurationSeconds sample, both labelled with step and status.
func ObserveStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	IncCounter(StepTotal, 1, l)
	ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}
