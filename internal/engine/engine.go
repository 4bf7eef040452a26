package engine

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"refinery/internal/logging"
	"refinery/internal/pipeline"
	"refinery/internal/transport"
)

type Engine struct {
	transport *transport.Server
	runner    *pipeline.Runner
	metrics   *http.Server
}

// Run serves until ctx is done or a component stops, then shuts everything
// down. A source reaching the end of its input ends Run without error.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	running := 0
	if e.transport != nil {
		running++
		go func() { errc <- e.transport.Serve() }()
	}
	if e.runner.HasSource() {
		running++
		go func() { errc <- e.runner.Run(ctx) }()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
		running--
	}
	cancel()

	if e.transport != nil {
		e.transport.Stop()
	}
	for ; running > 0; running-- {
		if rerr := <-errc; rerr != nil && err == nil {
			err = rerr
		}
	}
	if e.metrics != nil {
		sctx, done := context.WithTimeout(context.Background(), 5*time.Second)
		_ = e.metrics.Shutdown(sctx)
		done()
	}
	if cerr := e.runner.Close(); cerr != nil {
		logging.L().Warn("engine: close", "err", cerr)
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Addr is the gRPC listen address, or nil when not serving.
func (e *Engine) Addr() net.Addr {
	if e.transport == nil {
		return nil
	}
	return e.transport.Addr()
}
