package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"userstats/internal/config"
)

// usageError marks bad command lines.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func isUsage(err error) bool {
	var u usageError
	return errors.As(err, &u)
}

// noArgs is cobra.NoArgs reporting a usage error.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError{err}
	}
	return nil
}

// cli holds state shared by the subcommands.
type cli struct {
	deps    appDeps
	cfgFile string
}

func newRootCmd(deps appDeps) *cobra.Command {
	c := &cli{deps: deps}

	root := &cobra.Command{
		Use:           "userstats",
		Short:         "Compute per-user experiment statistics into a summary table",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "optional YAML config file (environment variables take precedence)")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.AddCommand(c.newRunCmd(), c.newServeCmd(), c.newConfigCmd(), c.newProbeCmd())
	return root
}

// load reads configuration and builds the logger.
func (c *cli) load() (*config.Config, *zap.Logger, error) {
	cfg, err := c.deps.loadConfig(c.cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := c.deps.newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
