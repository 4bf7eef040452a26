// Package llm is the inference client used by the llm_generate filter. A
// Client sends one instruction plus one piece of context to a model and
// returns the generated text.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Client is safe for concurrent use by multiple goroutines.
type Client interface {
	Process(ctx context.Context, prompt, input string, options map[string]any) (string, error)
}

type Backend string

const (
	BackendOllama Backend = "ollama"
	BackendOpenAI Backend = "openai"
	BackendGemini Backend = "gemini"
)

const (
	DefaultModel     = "hf.co/elyza/Llama-3-ELYZA-JP-8B-GGUF:latest"
	DefaultOllamaURL = "http://localhost:11434/api"
)

type Config struct {
	Backend Backend
	Model   string
	// APIURL is the service base. Ollama expects the "/api" root; OpenAI and
	// Gemini use their public endpoints when empty.
	APIURL     string
	APIKey     string
	HTTPClient *http.Client
}

var modelPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:/@+-]*$`)

// New validates cfg and builds the client for its backend.
func New(cfg Config) (Client, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendOllama
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model name is required")
	}
	if !modelPattern.MatchString(cfg.Model) {
		return nil, fmt.Errorf("llm: invalid model name %q", cfg.Model)
	}
	if cfg.APIURL != "" {
		u, err := url.Parse(cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("llm: api url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("llm: api url %q must be an absolute http(s) URL", cfg.APIURL)
		}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	var (
		c   Client
		err error
	)
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendOllama:
		c, err = newOllama(cfg)
	case BackendOpenAI:
		c, err = newOpenAI(cfg)
	case BackendGemini:
		c, err = newGemini(cfg)
	default:
		return nil, fmt.Errorf("llm: unsupported backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int64:
		return x, true
	case float64:
		if x != float64(int64(x)) {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		i, err := x.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
