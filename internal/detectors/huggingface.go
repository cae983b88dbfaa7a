package detectors

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/spboyer/veracity/internal/models"
)

const (
	DefaultHuggingFaceEndpoint = "https://api-inference.huggingface.co"
	DefaultHuggingFaceModel    = "openai-community/roberta-base-openai-detector"
)

// HuggingFaceArgs holds the provider-specific settings for a Hugging Face
// text-classification detector.
type HuggingFaceArgs struct {
	// AILabels are the classifier labels that mean "AI-generated" (case-insensitive).
	AILabels []string `mapstructure:"ai_labels"`
	// HumanLabels are the classifier labels that mean "human-written" (case-insensitive).
	HumanLabels []string `mapstructure:"human_labels"`
}

var (
	defaultAILabels    = []string{"fake", "label_1", "ai", "chatgpt", "machine"}
	defaultHumanLabels = []string{"real", "label_0", "human"}
)

type huggingFaceDetector struct {
	base
	aiLabels    []string
	humanLabels []string
	caller      *httpCaller
}

type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewHuggingFaceDetector creates a detector backed by a text-classification
// model on the Inference API. These models only report a probability, so the
// breakdown is synthesized from it.
func NewHuggingFaceDetector(cfg Config, args HuggingFaceArgs) (*huggingFaceDetector, error) {
	if err := requireAPIKey(cfg); err != nil {
		return nil, err
	}

	cfg.Endpoint = strings.TrimRight(withDefault(cfg.Endpoint, DefaultHuggingFaceEndpoint), "/")
	cfg.Model = withDefault(cfg.Model, DefaultHuggingFaceModel)

	d := &huggingFaceDetector{
		base:        base{cfg: cfg},
		aiLabels:    lowerAll(args.AILabels),
		humanLabels: lowerAll(args.HumanLabels),
		caller:      newHTTPCaller(cfg),
	}

	if len(d.aiLabels) == 0 {
		d.aiLabels = defaultAILabels
	}
	if len(d.humanLabels) == 0 {
		d.humanLabels = defaultHumanLabels
	}

	return d, nil
}

func (d *huggingFaceDetector) Detect(ctx context.Context, text string) (*models.Opinion, error) {
	return d.run(ctx, text, func(ctx context.Context) (*models.Opinion, error) {
		body := map[string]any{
			"inputs":  text,
			"options": map[string]bool{"wait_for_model": true},
		}

		var raw json.RawMessage
		err := d.caller.postJSON(ctx, d.cfg.Endpoint+"/models/"+d.cfg.Model, map[string]string{
			"Authorization": "Bearer " + d.cfg.APIKey,
		}, body, &raw)
		if err != nil {
			return nil, err
		}

		labels, err := decodeClassifications(raw)
		if err != nil {
			return nil, err
		}

		p, err := d.aiProbability(labels)
		if err != nil {
			return nil, err
		}

		breakdown := models.BreakdownFromProbability(p)

		return &models.Opinion{
			AIProbability: p,
			Breakdown:     &breakdown,
			Confidence:    confidenceFromProbability(p),
		}, nil
	})
}

// decodeClassifications accepts both the batched ([[...]]) and the flat
// ([...]) response shapes.
func decodeClassifications(raw json.RawMessage) ([]classification, error) {
	var batched [][]classification
	if err := json.Unmarshal(raw, &batched); err == nil {
		if len(batched) == 0 {
			return nil, malformed("classification response is empty")
		}
		return batched[0], nil
	}

	var flat []classification
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, malformed("unexpected classification response: %s", truncate(string(raw), 120))
	}

	return flat, nil
}

func (d *huggingFaceDetector) aiProbability(labels []classification) (float64, error) {
	for _, l := range labels {
		if slices.Contains(d.aiLabels, strings.ToLower(l.Label)) {
			return clampPercent(l.Score * 100), nil
		}
	}

	for _, l := range labels {
		if slices.Contains(d.humanLabels, strings.ToLower(l.Label)) {
			return clampPercent(100 - l.Score*100), nil
		}
	}

	return 0, malformed("no recognized label in classification response")
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
