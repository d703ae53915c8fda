// Command userstats computes per-user experiment statistics and replaces the
// destination summary table, either once (run) or on demand over HTTP (serve).
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"userstats/internal/config"
	"userstats/internal/logging"

	// Register every storage backend; the configured sink kind picks one.
	_ "userstats/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// appDeps are the process seams the commands go through; tests replace them.
type appDeps struct {
	loadConfig func(path string) (*config.Config, error)
	newLogger  func(level, format string) (*zap.Logger, error)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig: config.Load,
		newLogger:  logging.New,
	}
}

// execute runs the CLI and returns the process exit code: 0 on success, 2 on
// usage errors, 1 otherwise.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	root := newRootCmd(deps)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("error:", err)
		if isUsage(err) {
			return 2
		}
		return 1
	}
	return 0
}
