package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"refinery/internal/spec"
)

const SupportedSchema = "v1"

// LoadPipelineSpec parses a pipeline YAML, validates schema_version and the
// filter list, and returns the parsed spec and an absolute path to the
// source config (if set).
func LoadPipelineSpec(path string) (spec.File, string, error) {
	var cfg spec.File
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, "", err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, "", fmt.Errorf("pipeline %s: %w", path, err)
	}
	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = SupportedSchema
	}
	if cfg.SchemaVersion != SupportedSchema {
		return cfg, "", fmt.Errorf("pipeline schema_version %q not supported (want %q)", cfg.SchemaVersion, SupportedSchema)
	}
	if err := validate(&cfg); err != nil {
		return cfg, "", fmt.Errorf("pipeline %s: %w", path, err)
	}
	confPath := cfg.Source.Config
	if confPath != "" && !filepath.IsAbs(confPath) {
		confPath = filepath.Join(filepath.Dir(path), confPath)
	}
	return cfg, confPath, nil
}

func validate(cfg *spec.File) error {
	switch cfg.OnError {
	case "":
		cfg.OnError = "drop"
	case "drop", "halt":
	default:
		return fmt.Errorf("on_error %q not supported (want drop or halt)", cfg.OnError)
	}

	seen := make(map[string]bool, len(cfg.Filters))
	for i := range cfg.Filters {
		f := &cfg.Filters[i]
		if f.Type == "" {
			return fmt.Errorf("filters[%d]: type is required", i)
		}
		if f.Name == "" {
			f.Name = f.Type
		}
		if seen[f.Name] {
			return fmt.Errorf("filters[%d]: duplicate filter name %q", i, f.Name)
		}
		seen[f.Name] = true
		if f.Remote() && f.Address == "" {
			return fmt.Errorf("filter %s: address is required for grpc filters", f.Name)
		}
		if f.TimeoutMS < 0 || f.RetryPolicy.Attempts < 0 || f.RetryPolicy.BackoffMS < 0 {
			return fmt.Errorf("filter %s: timeout_ms and retry_policy must be >= 0", f.Name)
		}
	}
	return nil
}
