package llm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama calls the native generate endpoint through the Ollama API client.
type Ollama struct {
	base   *url.URL
	model  string
	client *api.Client
}

// newOllama accepts the "/api" root the filter has always been configured
// with; the client adds "/api/generate" itself.
func newOllama(cfg Config) (*Ollama, error) {
	raw := cfg.APIURL
	if raw == "" {
		raw = DefaultOllamaURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("llm: ollama url: %w", err)
	}
	base.Path = strings.TrimSuffix(strings.TrimRight(base.Path, "/"), "/api")
	return &Ollama{base: base, model: cfg.Model, client: api.NewClient(base, cfg.HTTPClient)}, nil
}

// Process sends prompt as the system instruction and input as the user
// prompt. options become the request's model options verbatim.
func (o *Ollama) Process(ctx context.Context, prompt, input string, options map[string]any) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:   o.model,
		Prompt:  input,
		System:  prompt,
		Stream:  &stream,
		Options: options,
	}
	var sb strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("llm: ollama generate: %w", err)
	}
	return sb.String(), nil
}
