package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"
)

type Gemini struct {
	client *genai.Client
	model  string
}

func newGemini(cfg Config) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api_key is required for the gemini backend")
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.APIURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.APIURL}
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		return nil, fmt.Errorf("llm: genai client: %w", err)
	}
	return &Gemini{client: client, model: strings.TrimPrefix(cfg.Model, "models/")}, nil
}

func (g *Gemini) Process(ctx context.Context, prompt, input string, options map[string]any) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(prompt)}},
	}
	if f, ok := toFloat(options["temperature"]); ok {
		t := float32(f)
		cfg.Temperature = &t
	}
	if f, ok := toFloat(options["top_p"]); ok {
		p := float32(f)
		cfg.TopP = &p
	}
	if f, ok := toFloat(options["top_k"]); ok {
		k := float32(f)
		cfg.TopK = &k
	}
	if v, set := options["max_tokens"]; set {
		n, ok := toInt(v)
		if !ok || n <= 0 || n > math.MaxInt32 {
			return "", fmt.Errorf("llm: gemini max_tokens %v is not a positive 32-bit integer", v)
		}
		cfg.MaxOutputTokens = int32(n)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(input), cfg)
	if err != nil {
		return "", fmt.Errorf("llm: gemini generate: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("llm: gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}
