// Package pipeline runs the user statistics ETL: open the three inputs, load
// them, derive experiment/compound links, aggregate per user, join with the
// reference tables and replace the destination table.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"userstats/internal/dataset"
	"userstats/internal/etlerr"
	"userstats/internal/metrics"
	"userstats/internal/source"
	"userstats/internal/storage"
	"userstats/internal/transformer"
)

// Step names, used as the "step" metric label and in logs.
const (
	StepOpen      = "open"
	StepLoad      = "load"
	StepExplode   = "explode"
	StepAggregate = "aggregate"
	StepAssemble  = "assemble"
	StepWrite     = "write"
)

// Run statuses, used as the "status" label of etl_runs_total.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// Result summarizes a successful run.
type Result struct {
	RunID string `json:"run_id"`
	// Rows is the number of rows written to the destination.
	Rows int64 `json:"rows"`
	// Fingerprint is a digest of the written table; identical inputs give
	// identical fingerprints.
	Fingerprint string                   `json:"fingerprint"`
	Durations   map[string]time.Duration `json:"durations"`
}

// Pipeline executes runs. It holds no per-run state and is safe for
// concurrent use.
type Pipeline struct {
	Opener source.Opener
	Logger *zap.Logger

	// NewRepository is a seam for tests; nil means storage.New.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

// New returns a Pipeline reading through op.
func New(op source.Opener, log *zap.Logger) *Pipeline {
	return &Pipeline{Opener: op, Logger: log}
}

func (p *Pipeline) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Pipeline) newRepository(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	if p.NewRepository != nil {
		return p.NewRepository(ctx, cfg)
	}
	return storage.New(ctx, cfg)
}

// Run executes a complete run synchronously.
func (p *Pipeline) Run(ctx context.Context, params Params) (Result, error) {
	runID := uuid.NewString()
	res := newResult(runID)

	in, err := p.open(ctx, params, &res)
	if err != nil {
		finish(p.logger().With(zap.String("run_id", runID)), err)
		return Result{}, err
	}
	return p.execute(ctx, params, in, res)
}

func newResult(runID string) Result {
	return Result{RunID: runID, Durations: make(map[string]time.Duration)}
}

// open validates params and opens all three inputs. Failures here are
// configuration or missing-input errors.
func (p *Pipeline) open(ctx context.Context, params Params, res *Result) (*dataset.Inputs, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	log := p.logger().With(zap.String("run_id", res.RunID))

	var in *dataset.Inputs
	err := p.step(log, res, StepOpen, func() error {
		var err error
		in, err = dataset.Open(ctx, p.Opener, params.DataRoot, params.Files())
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info("opened inputs",
		zap.String("root", params.DataRoot),
		zap.String("experiments", params.ExperimentsFile),
		zap.String("compounds", params.CompoundsFile),
		zap.String("users", params.UsersFile),
	)
	return in, nil
}

// execute runs every stage after open. It always closes in.
func (p *Pipeline) execute(ctx context.Context, params Params, in *dataset.Inputs, res Result) (out Result, err error) {
	log := p.logger().With(zap.String("run_id", res.RunID))
	defer func() { finish(log, err) }()
	defer in.Close()

	var ds *dataset.Datasets
	if err := p.step(log, &res, StepLoad, func() error {
		var err error
		ds, err = dataset.LoadAll(ctx, in)
		return err
	}); err != nil {
		return Result{}, err
	}
	for _, t := range []*dataset.Table{ds.Experiments, ds.Compounds, ds.Users} {
		metrics.IncCounter(metrics.RecordsTotal, float64(t.Len()), metrics.Labels{"kind": t.Name})
		log.Debug("loaded table",
			zap.String("table", t.Name),
			zap.Int("rows", t.Len()),
			zap.Strings("columns", t.ColumnNames()),
			zap.Int("duplicate_keys", t.Duplicates()),
		)
	}

	var links []transformer.Link
	if err := p.step(log, &res, StepExplode, func() error {
		var err error
		links, err = transformer.Explode(ds.Experiments)
		return err
	}); err != nil {
		return Result{}, err
	}
	metrics.IncCounter(metrics.RecordsTotal, float64(len(links)), metrics.Labels{"kind": "links"})
	log.Debug("exploded compound ids", zap.Int("links", len(links)))

	var (
		stats     []transformer.UserStats
		favorites []transformer.Favorite
	)
	if err := p.step(log, &res, StepAggregate, func() error {
		var err error
		if stats, err = transformer.ExperimentStats(ds.Experiments); err != nil {
			return err
		}
		favorites = transformer.FavoriteCompounds(links)
		return nil
	}); err != nil {
		return Result{}, err
	}
	log.Debug("aggregated", zap.Int("users", len(stats)), zap.Int("favorites", len(favorites)))

	var table *transformer.Result
	if err := p.step(log, &res, StepAssemble, func() error {
		var err error
		table, err = transformer.Assemble(stats, favorites, ds.Users, ds.Compounds)
		return err
	}); err != nil {
		return Result{}, err
	}
	res.Fingerprint = transformer.Fingerprint(table)

	if err := p.step(log, &res, StepWrite, func() error {
		n, err := p.write(ctx, params, table)
		res.Rows = n
		return err
	}); err != nil {
		return Result{}, err
	}
	metrics.IncCounter(metrics.RecordsTotal, float64(res.Rows), metrics.Labels{"kind": "written"})

	log.Info("run succeeded",
		zap.String("table", table.TableSpec(params.Schema, params.Table).QualifiedName()),
		zap.Int64("rows", res.Rows),
		zap.String("fingerprint", res.Fingerprint),
	)
	return res, nil
}

// write replaces the destination table. Every failure is a sink error. The
// repository is closed whether or not the write succeeds.
func (p *Pipeline) write(ctx context.Context, params Params, table *transformer.Result) (int64, error) {
	dsn, err := storage.BuildDSN(params.SinkKind, params.DB)
	if err != nil {
		return 0, etlerr.Config("sink dsn", err)
	}
	repo, err := p.newRepository(ctx, storage.Config{Kind: params.SinkKind, DSN: dsn})
	if err != nil {
		return 0, etlerr.Sink("connect "+params.DB.Target(params.SinkKind), err)
	}
	defer repo.Close()

	n, err := repo.ReplaceTable(ctx, table.TableSpec(params.Schema, params.Table), table.Rows)
	if err != nil {
		return 0, etlerr.Sink("replace "+params.Table, err)
	}
	return n, nil
}

// step times fn and records the outcome under name.
func (p *Pipeline) step(log *zap.Logger, res *Result, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ObserveStep(name, status, d)
	res.Durations[name] = d

	if err != nil {
		log.Warn("step failed", zap.String("step", name), zap.Duration("duration", d), zap.Error(err))
		return err
	}
	log.Debug("step done", zap.String("step", name), zap.Duration("duration", d.Truncate(time.Microsecond)))
	return nil
}

// finish records the run outcome.
func finish(log *zap.Logger, err error) {
	if err == nil {
		metrics.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": RunSucceeded})
		return
	}
	metrics.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": RunFailed})
	kind := etlerr.KindOf(err)
	if errors.Is(err, context.Canceled) {
		kind = "canceled"
	}
	log.Error("run failed", zap.String("kind", string(kind)), zap.Error(err))
}
