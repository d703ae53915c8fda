package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"userstats/internal/api"
	"userstats/internal/pipeline"
)

func (c *cli) newServeCmd() *cobra.Command {
	var (
		addr            string
		waitRuns        bool
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger (POST /start_etl)",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			m := initMetrics(ctx, cfg, log)
			defer func() {
				if err := m.close(); err != nil {
					log.Warn("metrics flush failed", zap.Error(err))
				}
			}()

			op, err := buildOpener(ctx, cfg)
			if err != nil {
				return err
			}
			manager := pipeline.NewManager(pipeline.New(op, log))

			srv := &http.Server{
				Addr: cfg.HTTPAddr,
				Handler: api.NewRouter(api.Options{
					Runs:    manager,
					Base:    baseParams(cfg),
					Logger:  log,
					Metrics: m.handler,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				log.Info("shutting down", zap.Bool("wait_runs", waitRuns), zap.Int("active_runs", manager.Active()))

				sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return errors.Join(srv.Shutdown(sctx), manager.Shutdown(sctx, waitRuns))
			})
			return g.Wait()
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", "", "listen address (overrides USERSTATS_HTTP_ADDR, default :5000)")
	fl.BoolVar(&waitRuns, "wait-runs", false, "on shutdown, let active runs finish instead of canceling them")
	fl.DurationVar(&shutdownTimeout, "shutdown-timeout", 30*time.Second, "upper bound on graceful shutdown")
	return cmd
}
