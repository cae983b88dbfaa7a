package detectors

import (
	"context"
	"strings"

	"github.com/spboyer/veracity/internal/models"
)

const (
	DefaultAnthropicEndpoint = "https://api.anthropic.com"
	DefaultAnthropicModel    = "claude-3-5-haiku-latest"
	anthropicVersion         = "2023-06-01"
)

// AnthropicArgs holds the provider-specific settings for an Anthropic detector.
type AnthropicArgs struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

type anthropicDetector struct {
	base
	args   AnthropicArgs
	caller *httpCaller
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// NewAnthropicDetector creates a detector backed by the Messages API.
func NewAnthropicDetector(cfg Config, args AnthropicArgs) (*anthropicDetector, error) {
	if err := requireAPIKey(cfg); err != nil {
		return nil, err
	}

	cfg.Endpoint = strings.TrimRight(withDefault(cfg.Endpoint, DefaultAnthropicEndpoint), "/")
	cfg.Model = withDefault(cfg.Model, DefaultAnthropicModel)

	if args.MaxTokens <= 0 {
		args.MaxTokens = 256
	}

	return &anthropicDetector{
		base:   base{cfg: cfg},
		args:   args,
		caller: newHTTPCaller(cfg),
	}, nil
}

func (d *anthropicDetector) Detect(ctx context.Context, text string) (*models.Opinion, error) {
	return d.run(ctx, text, func(ctx context.Context) (*models.Opinion, error) {
		body := map[string]any{
			"model":      d.cfg.Model,
			"max_tokens": d.args.MaxTokens,
			"system":     systemPrompt,
			"messages": []map[string]string{
				{"role": "user", "content": userPrompt(text)},
			},
		}

		var resp anthropicResponse
		err := d.caller.postJSON(ctx, d.cfg.Endpoint+"/v1/messages", map[string]string{
			"x-api-key":         d.cfg.APIKey,
			"anthropic-version": anthropicVersion,
		}, body, &resp)
		if err != nil {
			return nil, err
		}

		for _, block := range resp.Content {
			if block.Type != "text" {
				continue
			}

			opinion, err := parseVerdictText(block.Text)
			if err != nil {
				return nil, err
			}

			opinion.ModelID = withDefault(resp.Model, d.cfg.Model)
			return opinion, nil
		}

		return nil, malformed("response has no text content")
	})
}
