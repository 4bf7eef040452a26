package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI uses the chat completions API; it also serves OpenAI-compatible
// servers (vLLM, llama.cpp, Ollama's /v1) through APIURL.
type OpenAI struct {
	client *openai.Client
	model  string
}

func newOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" && cfg.APIURL == "" {
		return nil, errors.New("llm: api_key is required for the openai backend")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.HTTPClient),
	}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIURL))
	}
	client := openai.NewClient(opts...)
	return &OpenAI{client: &client, model: cfg.Model}, nil
}

// Process maps the common sampling options onto typed request fields and
// forwards the rest as raw JSON body fields.
func (o *OpenAI) Process(ctx context.Context, prompt, input string, options map[string]any) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt),
			openai.UserMessage(input),
		},
	}
	var extra []option.RequestOption
	for k, v := range options {
		switch k {
		case "temperature":
			if f, ok := toFloat(v); ok {
				params.Temperature = openai.Float(f)
				continue
			}
		case "top_p":
			if f, ok := toFloat(v); ok {
				params.TopP = openai.Float(f)
				continue
			}
		case "max_tokens", "num_predict":
			if n, ok := toInt(v); ok {
				params.MaxCompletionTokens = openai.Int(n)
				continue
			}
		case "seed":
			if n, ok := toInt(v); ok {
				params.Seed = openai.Int(n)
				continue
			}
		}
		extra = append(extra, option.WithJSONSet(k, v))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params, extra...)
	if err != nil {
		return "", fmt.Errorf("llm: openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: openai returned no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", fmt.Errorf("llm: openai refused: %s", choice.Message.Refusal)
	}
	return choice.Message.Content, nil
}
