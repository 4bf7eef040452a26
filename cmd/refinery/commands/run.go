package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"refinery/internal/engine"
	"refinery/internal/filter"
)

func newRunCmd(cat filter.Catalog) *cobra.Command {
	cfg := engine.Config{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a pipeline until interrupted or its source ends",
		Long: `Run compiles the pipeline file, then consumes its source, applies the
filters in order and writes surviving records to the sinks.

With --serve the pipeline's local filters are also exposed over gRPC
(refinery.v1.FilterService) so other pipelines can use them as "grpc"
filters. A pipeline without a source requires --serve.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runEngine(ctx, cfg, cat)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&cfg.PipelineYml, "pipeline", "p", "pipeline.yml", "pipeline file")
	f.BoolVar(&cfg.Serve, "serve", false, "serve local filters over gRPC")
	f.IntVar(&cfg.GRPCPort, "grpc-port", 7070, "gRPC port for --serve")
	f.IntVar(&cfg.MetricsPort, "metrics-port", 9100, "Prometheus /metrics port (0 disables)")
	return cmd
}

func runEngine(ctx context.Context, cfg engine.Config, cat filter.Catalog) error {
	e, err := engine.Bootstrap(ctx, cfg, cat)
	if err != nil {
		return err
	}
	return e.Run(ctx)
}
