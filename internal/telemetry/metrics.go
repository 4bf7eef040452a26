package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refinery/internal/logging"
)

// Outcomes recorded per filter invocation.
const (
	OutcomeOK      = "ok"
	OutcomeDropped = "dropped"
	OutcomeError   = "error"
)

var (
	FilterRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_filter_records_total",
		Help: "Records handled per filter stage, by outcome.",
	}, []string{"filter", "outcome"})

	FilterDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "refinery_filter_duration_seconds",
		Help:    "Wall time of one filter stage, retries included.",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"filter"})

	// LLMCalls counts llm_generate calls by result: ok, timeout or error.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_llm_calls_total",
		Help: "LLM generation calls, by result.",
	}, []string{"filter", "result"})

	TranscodedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refinery_transcode_output_bytes_total",
		Help: "Bytes produced by audio transcodes.",
	}, []string{"filter"})
)

// ObserveFilter records one finished filter stage.
func ObserveFilter(filter, outcome string, took time.Duration) {
	FilterRecords.WithLabelValues(filter, outcome).Inc()
	FilterDuration.WithLabelValues(filter).Observe(took.Seconds())
}

// Expose serves /metrics on port in the background. The returned server can
// be shut down by the caller.
func Expose(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server stopped", "port", port, "err", err)
		}
	}()
	return srv
}
