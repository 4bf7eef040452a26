// Package llmgen implements the llm_generate filter: one record field is
// sent to a language model as context and the generated text is written
// back under another field.
package llmgen

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"refinery/internal/config"
	"refinery/internal/filter"
	"refinery/internal/llm"
	"refinery/internal/logging"
	"refinery/internal/record"
	"refinery/internal/telemetry"
)

const Type = "llm_generate"

// TimeoutText replaces the output when a call exceeds its deadline.
const TimeoutText = "Error: LLM processing timed out"

type Config struct {
	Backend     string `koanf:"backend"`
	ModelName   string `koanf:"model_name"`
	APIURL      string `koanf:"api_url"`
	APIKey      string `koanf:"api_key"`
	Prompt      string `koanf:"prompt"`
	InputField  string `koanf:"input_field"`
	OutputField string `koanf:"output_field"`
	OptionsJSON string `koanf:"options_json"`
	Timeout     int    `koanf:"timeout"` // seconds
}

func DefaultConfig() Config {
	return Config{
		Backend:     string(llm.BackendOllama),
		ModelName:   llm.DefaultModel,
		InputField:  "message",
		OutputField: "llm_output",
		OptionsJSON: "{}",
		Timeout:     30,
	}
}

// ClientFactory builds the inference client; replaced in tests.
type ClientFactory func(llm.Config) (llm.Client, error)

type Option func(*Filter)

func WithClientFactory(f ClientFactory) Option {
	return func(g *Filter) { g.newClient = f }
}

type Filter struct {
	name      string
	cfg       Config
	options   map[string]any
	timeout   time.Duration
	client    llm.Client
	newClient ClientFactory
	log       *slog.Logger
}

// Factory adapts New to filter.Factory.
func Factory(name string, params filter.Params) (filter.Filter, error) {
	return New(name, params)
}

// New decodes params over DefaultConfig, validates them and builds the
// client. Every failure wraps filter.ErrConfig.
func New(name string, params filter.Params, opts ...Option) (*Filter, error) {
	cfg := DefaultConfig()
	if err := config.DecodeParams(name, params, &cfg); err != nil {
		return nil, filter.Configf(name, "%v", err)
	}

	f := &Filter{name: name, cfg: cfg, newClient: llm.New, log: logging.For(name)}
	for _, o := range opts {
		o(f)
	}

	if strings.TrimSpace(cfg.Prompt) == "" {
		return nil, filter.Configf(name, "prompt is required")
	}
	if cfg.InputField == "" || cfg.OutputField == "" {
		return nil, filter.Configf(name, "input_field and output_field must not be empty")
	}
	if cfg.Timeout <= 0 {
		return nil, filter.Configf(name, "timeout must be > 0 seconds, got %d", cfg.Timeout)
	}
	f.timeout = time.Duration(cfg.Timeout) * time.Second

	if s := strings.TrimSpace(cfg.OptionsJSON); s != "" {
		if err := json.Unmarshal([]byte(s), &f.options); err != nil {
			return nil, filter.Configf(name, "options_json is not a JSON object: %v", err)
		}
	}

	client, err := f.newClient(llm.Config{
		Backend: llm.Backend(cfg.Backend),
		Model:   cfg.ModelName,
		APIURL:  cfg.APIURL,
		APIKey:  expandKey(cfg.APIKey),
	})
	if err != nil {
		return nil, filter.Configf(name, "%v", err)
	}
	f.client = client
	f.log.Info("llm_generate configured",
		"backend", cfg.Backend, "model", cfg.ModelName,
		"input_field", cfg.InputField, "output_field", cfg.OutputField,
		"timeout", f.timeout)
	return f, nil
}

// expandKey resolves "$VAR" / "${VAR}" references so keys stay out of YAML.
func expandKey(k string) string {
	if strings.HasPrefix(k, "$") {
		return os.ExpandEnv(k)
	}
	return k
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Config() Config { return f.cfg }

type result struct {
	text string
	err  error
}

// Apply never fails: timeouts and call errors are written into the output
// field as text and the record moves on.
func (f *Filter) Apply(ctx context.Context, tag string, rec *record.Record) (*record.Record, error) {
	v, ok := rec.Get(f.cfg.InputField)
	if !ok {
		f.log.Debug("input field absent, skipping", "tag", tag, "field", f.cfg.InputField)
		return rec, nil
	}
	input := record.Text(v)

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		text, err := f.client.Process(callCtx, f.cfg.Prompt, input, f.options)
		done <- result{text: text, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-callCtx.Done():
		res.err = callCtx.Err()
	}

	switch {
	case res.err == nil:
		rec.Set(f.cfg.OutputField, res.text)
		telemetry.LLMCalls.WithLabelValues(f.name, "ok").Inc()
	case errors.Is(res.err, context.DeadlineExceeded):
		// A caller deadline shorter than f.timeout lands here as well.
		rec.Set(f.cfg.OutputField, TimeoutText)
		telemetry.LLMCalls.WithLabelValues(f.name, "timeout").Inc()
		f.log.Warn("llm call timed out", "tag", tag, "timeout", f.timeout)
	default:
		rec.Set(f.cfg.OutputField, "Error: "+res.err.Error())
		telemetry.LLMCalls.WithLabelValues(f.name, "error").Inc()
		f.log.Error("llm call failed", "tag", tag, "err", res.err)
	}
	return rec, nil
}
