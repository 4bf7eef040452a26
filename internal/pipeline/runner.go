package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	pb "refinery/api/v1"
	"refinery/internal/filter"
	"refinery/internal/logging"
	"refinery/internal/record"
	"refinery/internal/telemetry"
	"refinery/sink"
)

// OnError selects what happens to a record whose filter stage failed.
type OnError string

const (
	DropOnError OnError = "drop"
	HaltOnError OnError = "halt"
)

// Source produces frames until its input ends or ctx is done.
type Source interface {
	Run(context.Context, pb.EmitFunc) error
	Close() error
}

type stage struct {
	f        filter.Filter
	timeout  time.Duration
	attempts int // retries after the first try
	backoff  time.Duration
}

type Runner struct {
	source  Source
	stages  []stage
	sinks   []sink.Adapter
	onError OnError
}

func NewRunner() *Runner { return &Runner{onError: DropOnError} }

func (r *Runner) AddSink(s sink.Adapter)  { r.sinks = append(r.sinks, s) }
func (r *Runner) SetSource(s Source)      { r.source = s }
func (r *Runner) SetOnError(mode OnError) { r.onError = mode }
func (r *Runner) HasSource() bool         { return r.source != nil }

// AddFilter appends a stage. timeout bounds each try (0 = none); a failed try
// is retried attempts times, sleeping backoff in between.
func (r *Runner) AddFilter(f filter.Filter, timeout time.Duration, attempts int, backoff time.Duration) {
	r.stages = append(r.stages, stage{f: f, timeout: timeout, attempts: attempts, backoff: backoff})
}

// Filters returns the stage filters in order.
func (r *Runner) Filters() []filter.Filter {
	out := make([]filter.Filter, len(r.stages))
	for i, st := range r.stages {
		out[i] = st.f
	}
	return out
}

// Apply runs rec through every stage. A nil record without error means a
// stage dropped it; errors name the failing stage.
func (r *Runner) Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	for _, st := range r.stages {
		out, err := r.runStage(ctx, st, tag, rec)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", st.f.Name(), err)
		}
		if out == nil {
			return nil, nil
		}
		rec = out
	}
	return rec, nil
}

/*──────── frame routing ───────*/
func (r *Runner) pushFrame(ctx context.Context, f *pb.Frame) error {
	out, err := r.Apply(ctx, f.Tag, f.Record)
	if err != nil {
		if r.onError == HaltOnError || ctx.Err() != nil {
			return err
		}
		logging.L().Warn("record dropped", "tag", f.Tag, "err", err)
		return nil
	}
	if out == nil {
		return nil
	}
	f.Record = out
	for _, s := range r.sinks {
		if err := s.Push(f); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runStage(ctx context.Context, st stage, tag string, rec *record.Record) (*record.Record, error) {
	name := st.f.Name()
	start := time.Now()
	var (
		out *record.Record
		err error
	)
	for try := 0; try <= st.attempts; try++ {
		if try > 0 {
			logging.For(name).Debug("retrying filter", "tag", tag, "try", try, "err", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(st.backoff):
			}
		}
		in := rec
		if st.attempts > 0 {
			in = rec.Clone()
		}
		out, err = st.apply(ctx, tag, in)
		if err == nil || errors.Is(err, filter.ErrConfig) || ctx.Err() != nil {
			break
		}
	}

	outcome := telemetry.OutcomeOK
	switch {
	case err != nil:
		outcome = telemetry.OutcomeError
	case out == nil:
		outcome = telemetry.OutcomeDropped
	}
	telemetry.ObserveFilter(name, outcome, time.Since(start))
	return out, err
}

func (st stage) apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	if st.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.timeout)
		defer cancel()
	}
	return st.f.Apply(ctx, tag, rec)
}

// Run blocks until the source ends or ctx is done. Cancellation is not an
// error.
func (r *Runner) Run(ctx context.Context) error {
	if r.source == nil {
		return errors.New("runner: no source configured")
	}
	err := r.source.Run(ctx, func(f *pb.Frame) error { return r.pushFrame(ctx, f) })
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Close releases the source, the sinks and every stage holding resources.
func (r *Runner) Close() error {
	var errs []error
	if r.source != nil {
		errs = append(errs, r.source.Close())
	}
	for _, s := range r.sinks {
		errs = append(errs, s.Close())
	}
	for _, st := range r.stages {
		if c, ok := st.f.(filter.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
