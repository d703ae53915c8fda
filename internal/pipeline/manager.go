package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"userstats/internal/etlerr"
)

var (
	// ErrBusy is returned by Start while another run writes the same
	// destination.
	ErrBusy = errors.New("pipeline: a run is already active for this destination")
	// ErrClosed is returned by Start after Shutdown.
	ErrClosed = errors.New("pipeline: manager is shut down")
)

// Status is the lifecycle state of a background run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = RunSucceeded
	StatusFailed    Status = RunFailed
)

// maxHistory bounds how many finished runs Get can still find.
const maxHistory = 256

// Run is the handle of a background run.
type Run struct {
	ID        string
	Target    string
	StartedAt time.Time

	done chan struct{}

	mu         sync.Mutex
	status     Status
	finishedAt time.Time
	result     Result
	err        error
}

// RunInfo is a point-in-time view of a Run.
type RunInfo struct {
	ID          string     `json:"run_id"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Rows        int64      `json:"rows,omitempty"`
	Fingerprint string     `json:"fingerprint,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorKind   string     `json:"error_kind,omitempty"`
}

func newRun(id, target string) *Run {
	return &Run{
		ID:        id,
		Target:    target,
		StartedAt: time.Now().UTC(),
		status:    StatusRunning,
		done:      make(chan struct{}),
	}
}

func (r *Run) finish(res Result, err error) {
	r.mu.Lock()
	r.finishedAt = time.Now().UTC()
	r.result = res
	r.err = err
	if err != nil {
		r.status = StatusFailed
	} else {
		r.status = StatusSucceeded
	}
	r.mu.Unlock()
	close(r.done)
}

// Status returns the current state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Err returns the failure of a finished run, or nil.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed when the run finishes.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (Result, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// Info returns a snapshot of the run.
func (r *Run) Info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RunInfo{ID: r.ID, Status: r.status, StartedAt: r.StartedAt}
	if r.status == StatusRunning {
		return info
	}
	fin := r.finishedAt
	info.FinishedAt = &fin
	if r.err != nil {
		info.Error = r.err.Error()
		info.ErrorKind = string(etlerr.KindOf(r.err))
		return info
	}
	info.Rows = r.result.Rows
	info.Fingerprint = r.result.Fingerprint
	return info
}

// Manager starts runs in the background and tracks them by ID. At most one
// run per destination is active at a time.
type Manager struct {
	pipeline *Pipeline

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	runs     map[string]*Run
	finished []string
	active   map[string]*Run
}

// NewManager returns a Manager executing runs with p.
func NewManager(p *Pipeline) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		pipeline: p,
		ctx:      ctx,
		cancel:   cancel,
		runs:     make(map[string]*Run),
		active:   make(map[string]*Run),
	}
}

// Start validates params and opens the inputs before returning, so
// configuration and missing-input errors reach the caller directly. The
// remaining stages run on their own goroutine, detached from ctx; use the
// returned handle to follow them.
func (m *Manager) Start(ctx context.Context, params Params) (*Run, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	target := params.Target()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if _, busy := m.active[target]; busy {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	run := newRun(uuid.NewString(), target)
	m.active[target] = run
	// Added under mu so Shutdown, which sets closed under mu, never waits
	// concurrently with an Add.
	m.wg.Add(1)
	m.mu.Unlock()

	// Opened streams (HTTP bodies, S3 objects) stay bound to the context
	// they were opened with and are read after Start returns, so they are
	// opened under the run's own context. The caller can only cancel the
	// open itself.
	runCtx, runCancel := context.WithCancel(m.ctx)
	stop := context.AfterFunc(ctx, runCancel)

	res := newResult(run.ID)
	in, err := m.pipeline.open(runCtx, params, &res)
	if !stop() && err == nil {
		_ = in.Close()
		err = context.Cause(ctx)
	}
	if err != nil {
		runCancel()
		m.mu.Lock()
		delete(m.active, target)
		m.mu.Unlock()
		m.wg.Done()
		finish(m.pipeline.logger().With(zap.String("run_id", run.ID)), err)
		return nil, err
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer runCancel()
		out, err := m.pipeline.execute(runCtx, params, in, res)
		// Release first so a caller woken by Done can start the next run
		// for the same destination immediately.
		m.release(run)
		run.finish(out, err)
	}()
	return run, nil
}

func (m *Manager) release(run *Run) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active[run.Target] == run {
		delete(m.active, run.Target)
	}
	m.finished = append(m.finished, run.ID)
	for len(m.finished) > maxHistory {
		delete(m.runs, m.finished[0])
		m.finished = m.finished[1:]
	}
}

// Get returns the run with id, if it is active or among the most recent
// finished runs.
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	return r, ok
}

// Active returns the number of runs in progress.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Shutdown stops accepting runs. With wait, active runs are allowed to
// finish; otherwise they are canceled and their destination transactions
// roll back. Either way Shutdown returns once every run goroutine has exited
// or ctx is done.
func (m *Manager) Shutdown(ctx context.Context, wait bool) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if !wait {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		return ctx.Err()
	}
}
