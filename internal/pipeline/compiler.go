package pipeline

import (
	"errors"
	"fmt"
	"time"

	"refinery/internal/config"
	"refinery/internal/filter"
	"refinery/internal/logging"
	"refinery/internal/record"
	"refinery/internal/spec"
	"refinery/internal/transform"
	"refinery/sink"
	sinkkafka "refinery/sink/kafka"
	"refinery/sink/stdout"
	"refinery/source/kafka"
	"refinery/source/stdin"
)

// Compile builds a runner from the pipeline file at path. Filters are built
// first, so a configuration error fails before any broker is contacted.
func Compile(path string, catalog filter.Catalog) (*Runner, error) {
	cfg, confPath, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	r := NewRunner()
	r.SetOnError(OnError(cfg.OnError))
	if err := build(r, cfg, confPath, catalog); err != nil {
		_ = r.Close()
		return nil, err
	}
	logging.L().Info("pipeline compiled",
		"path", path, "source", cfg.Source.Kind, "filters", len(r.stages), "sinks", cfg.Sinks, "on_error", cfg.OnError)
	return r, nil
}

// CompileFilters builds only the filter chain of the pipeline at path; the
// source and sinks are ignored.
func CompileFilters(path string, catalog filter.Catalog) (*Runner, error) {
	cfg, _, err := config.LoadPipelineSpec(path)
	if err != nil {
		return nil, err
	}
	r := NewRunner()
	r.SetOnError(OnError(cfg.OnError))
	if err := addFilters(r, cfg.Filters, catalog); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func addFilters(r *Runner, specs []spec.FilterSpec, catalog filter.Catalog) error {
	for _, fs := range specs {
		f, err := newFilter(fs, catalog)
		if err != nil {
			return err
		}
		r.AddFilter(f, ms(fs.TimeoutMS), fs.RetryPolicy.Attempts, ms(fs.RetryPolicy.BackoffMS))
	}
	return nil
}

func build(r *Runner, cfg spec.File, confPath string, catalog filter.Catalog) error {
	if err := addFilters(r, cfg.Filters, catalog); err != nil {
		return err
	}

	for _, name := range cfg.Sinks {
		sDrv, err := sink.NewAdapter(name)
		if err != nil {
			return err
		}

		switch name {
		case "stdout":
			err = sDrv.Configure(stdout.Config{Format: cfg.SinkConfigs.Stdout.Format})
		case "kafka":
			kc := cfg.SinkConfigs.Kafka
			err = sDrv.Configure(sinkkafka.Config{
				Brokers: kc.Brokers,
				Topic:   kc.Topic,
				Acks:    kc.RequiredAcks,
				Version: kc.Version,
				Format:  kc.Format,
			})
		default:
			err = fmt.Errorf("no config block for sink %q", name)
		}
		if err != nil {
			return err
		}
		r.AddSink(sDrv)
	}

	src, err := newSource(cfg.Source, confPath)
	if err != nil {
		return err
	}
	if src != nil {
		r.SetSource(src)
	}
	return nil
}

func newFilter(fs spec.FilterSpec, catalog filter.Catalog) (filter.Filter, error) {
	if !fs.Remote() {
		return catalog.New(fs.Type, fs.Name, fs.Params)
	}
	cli, err := transform.NewGRPCClient(fs.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", filter.ErrConfig, fs.Name, err)
	}
	return transform.NewRemote(fs.Name, fs.RemoteName, cli), nil
}

// newSource returns nil for a pipeline without a source; such a pipeline only
// serves its filters.
func newSource(ss spec.SourceSpec, confPath string) (Source, error) {
	switch ss.Kind {
	case "":
		return nil, nil
	case "stdin":
		if f, err := record.ParseFormat(ss.Format); err != nil || f != record.FormatJSON {
			return nil, errors.New("stdin source reads JSON lines only")
		}
		return stdin.New(stdin.Config{Tag: ss.Tag}), nil
	case "kafka":
		kc, err := config.LoadKafkaConfig(confPath, ss)
		if err != nil {
			return nil, err
		}
		src, err := kafka.NewAdapter(ss.Driver)
		if err != nil {
			return nil, err
		}
		if err := src.Configure(kc); err != nil {
			return nil, err
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported source %q", ss.Kind)
	}
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
