package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"userstats/internal/pipeline"
)

type runFlags struct {
	dataRoot    string
	experiments string
	compounds   string
	users       string
	sink        string
	sqlitePath  string
}

func (c *cli) newRunCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and wait for it to finish",
		Long: `Run loads the three input files from the data root, computes the
per-user statistics and replaces the destination table, then exits.

Database settings not provided by the environment or config file fall back to
host user-experiment-stats, user postgres, password password.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := c.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			flags := cmd.Flags()
			if flags.Changed("data-root") {
				cfg.DataRoot = f.dataRoot
			}
			if flags.Changed("experiments") {
				cfg.ExperimentsFile = f.experiments
			}
			if flags.Changed("compounds") {
				cfg.CompoundsFile = f.compounds
			}
			if flags.Changed("users") {
				cfg.UsersFile = f.users
			}
			if flags.Changed("sink") {
				cfg.SinkKind = f.sink
			}
			if flags.Changed("sqlite-path") {
				cfg.SQLitePath = f.sqlitePath
			}
			cfg.ApplyRunDefaults()
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

			start := time.Now()
			res, err := pipeline.New(op, log).Run(ctx, baseParams(cfg))
			if err != nil {
				return err
			}
			log.Info("completed", zap.Duration("duration", time.Since(start).Truncate(time.Millisecond)))

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.dataRoot, "data-root", "", "directory, s3:// or http(s):// root holding the inputs (overrides ROOT_DATA_PATH)")
	fl.StringVar(&f.experiments, "experiments", "", "user experiments file name")
	fl.StringVar(&f.compounds, "compounds", "", "compounds file name")
	fl.StringVar(&f.users, "users", "", "users file name")
	fl.StringVar(&f.sink, "sink", "", "destination kind: postgres, sqlite or mssql")
	fl.StringVar(&f.sqlitePath, "sqlite-path", "", "SQLite database file when --sink=sqlite")
	return cmd
}
