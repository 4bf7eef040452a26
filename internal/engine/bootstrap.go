package engine

import (
	"context"
	"fmt"

	"refinery/internal/filter"
	"refinery/internal/pipeline"
	"refinery/internal/telemetry"
	"refinery/internal/transform"
	"refinery/internal/transport"
)

type Config struct {
	GRPCPort    int
	MetricsPort int // 0 disables /metrics
	PipelineYml string
	// Serve exposes the pipeline's local filters over gRPC.
	Serve bool
}

// Bootstrap compiles the pipeline and binds the listeners. Nothing runs
// until Run is called.
func Bootstrap(ctx context.Context, cfg Config, catalog filter.Catalog) (*Engine, error) {
	// 1. pipeline runner
	runner, err := pipeline.Compile(cfg.PipelineYml, catalog)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	e := &Engine{runner: runner}

	// 2. transport server
	if cfg.Serve {
		e.transport, err = transport.StartServer(cfg.GRPCPort, localFilters(runner))
		if err != nil {
			_ = runner.Close()
			return nil, fmt.Errorf("transport: %w", err)
		}
	}
	if e.transport == nil && !runner.HasSource() {
		_ = runner.Close()
		return nil, fmt.Errorf("pipeline %s has no source and serving is disabled", cfg.PipelineYml)
	}

	// 3. metrics
	if cfg.MetricsPort > 0 {
		e.metrics = telemetry.Expose(cfg.MetricsPort)
	}
	return e, nil
}

func localFilters(r *pipeline.Runner) []filter.Filter {
	var out []filter.Filter
	for _, f := range r.Filters() {
		if _, remote := f.(*transform.Remote); !remote {
			out = append(out, f)
		}
	}
	return out
}
