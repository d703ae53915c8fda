package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"userstats/internal/config"
	"userstats/internal/metrics"
	"userstats/internal/metrics/datadog"
	"userstats/internal/metrics/prom"
	"userstats/internal/pipeline"
	"userstats/internal/source"
)

// metricsSetup is the installed metrics backend. close flushes it; handler is
// non-nil when the backend can be scraped.
type metricsSetup struct {
	handler http.Handler
	close   func() error
}

// initMetrics installs the configured backend. A backend that fails to start
// is logged and metrics stay disabled; the run itself does not fail.
func initMetrics(ctx context.Context, cfg *config.Config, log *zap.Logger) metricsSetup {
	nop := metricsSetup{close: func() error { return nil }}

	switch cfg.MetricsBackend {
	case "prometheus":
		b := prom.New(prom.Options{PushURL: cfg.PushgatewayURL})
		metrics.SetBackend(b)
		log.Info("metrics enabled", zap.String("backend", cfg.MetricsBackend), zap.String("pushgateway", cfg.PushgatewayURL))
		return metricsSetup{handler: b.Handler(), close: b.Flush}

	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.DatadogTags)
		b, err := datadog.NewBackend(ctx, datadog.Options{Tags: tags})
		if err != nil {
			log.Warn("metrics: datadog init failed; metrics disabled", zap.Error(err))
			return nop
		}
		metrics.SetBackend(b)
		log.Info("metrics enabled", zap.String("backend", cfg.MetricsBackend), zap.Strings("tags", tags))
		return metricsSetup{close: b.Close}

	default:
		return nop
	}
}

// buildOpener returns the input opener for cfg: local paths, s3:// and
// http(s):// roots, decoded from cfg.InputEncoding.
func buildOpener(ctx context.Context, cfg *config.Config) (source.Opener, error) {
	r := source.Router{
		Local: source.FS{},
		HTTP:  source.NewHTTP(nil, cfg.InputHTTPTimeout),
	}
	if source.IsS3(cfg.DataRoot) {
		s3, err := source.NewS3(ctx, source.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		r.S3 = s3
	}
	return source.WithEncoding(r, cfg.InputEncoding)
}

// baseParams maps configuration to run parameters.
func baseParams(cfg *config.Config) pipeline.Params {
	return pipeline.Params{
		DataRoot:        cfg.DataRoot,
		ExperimentsFile: cfg.ExperimentsFile,
		CompoundsFile:   cfg.CompoundsFile,
		UsersFile:       cfg.UsersFile,
		SinkKind:        cfg.SinkKind,
		DB:              cfg.ConnParams(),
		Schema:          cfg.DBSchema,
		Table:           cfg.DBTable,
	}
}
