package detectors

import (
	"context"
	"strings"

	"github.com/spboyer/veracity/internal/models"
)

const (
	DefaultOpenAIEndpoint = "https://api.openai.com"
	DefaultOpenAIModel    = "gpt-4o-mini"
)

// OpenAIArgs holds the provider-specific settings for an OpenAI detector.
type OpenAIArgs struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

type openAIDetector struct {
	base
	args   OpenAIArgs
	caller *httpCaller
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// NewOpenAIDetector creates a detector backed by the Chat Completions API in
// JSON mode.
func NewOpenAIDetector(cfg Config, args OpenAIArgs) (*openAIDetector, error) {
	if err := requireAPIKey(cfg); err != nil {
		return nil, err
	}

	cfg.Endpoint = strings.TrimRight(withDefault(cfg.Endpoint, DefaultOpenAIEndpoint), "/")
	cfg.Model = withDefault(cfg.Model, DefaultOpenAIModel)

	if args.MaxTokens <= 0 {
		args.MaxTokens = 256
	}

	return &openAIDetector{
		base:   base{cfg: cfg},
		args:   args,
		caller: newHTTPCaller(cfg),
	}, nil
}

func (d *openAIDetector) Detect(ctx context.Context, text string) (*models.Opinion, error) {
	return d.run(ctx, text, func(ctx context.Context) (*models.Opinion, error) {
		body := map[string]any{
			"model":           d.cfg.Model,
			"temperature":     d.args.Temperature,
			"max_tokens":      d.args.MaxTokens,
			"response_format": map[string]string{"type": "json_object"},
			"messages": []map[string]string{
				{"role": "system", "content": systemPrompt},
				{"role": "user", "content": userPrompt(text)},
			},
		}

		var resp openAIResponse
		err := d.caller.postJSON(ctx, d.cfg.Endpoint+"/v1/chat/completions", map[string]string{
			"Authorization": "Bearer " + d.cfg.APIKey,
		}, body, &resp)
		if err != nil {
			return nil, err
		}

		if len(resp.Choices) == 0 {
			return nil, malformed("response has no choices")
		}

		opinion, err := parseVerdictText(resp.Choices[0].Message.Content)
		if err != nil {
			return nil, err
		}

		opinion.ModelID = withDefault(resp.Model, d.cfg.Model)
		return opinion, nil
	})
}
