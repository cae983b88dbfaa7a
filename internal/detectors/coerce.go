package detectors

import (
	"encoding/json"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/veracity/internal/models"
)

// rawVerdict is the shape LLM-backed detectors are asked to return. Fields
// are pointers so that "missing" and "zero" can be told apart.
type rawVerdict struct {
	AIProbability *float64 `mapstructure:"ai_probability"`
	Breakdown     *struct {
		AIGenerated float64 `mapstructure:"ai_generated"`
		Mixed       float64 `mapstructure:"mixed"`
		Human       float64 `mapstructure:"human"`
	} `mapstructure:"breakdown"`
	Confidence string `mapstructure:"confidence"`
}

// parseVerdictText extracts the JSON object from an LLM reply. Replies are
// often wrapped in a ```json fence or surrounded by prose.
func parseVerdictText(content string) (*models.Opinion, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return nil, malformed("no JSON object in model reply %q", truncate(content, 120))
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &doc); err != nil {
		return nil, malformed("model reply is not valid JSON: %v", err)
	}

	return opinionFromMap(doc)
}

// opinionFromMap coerces a decoded provider payload into an Opinion.
// Numbers may arrive as strings, and fractions in [0,1] are scaled to
// percentages when every field is a fraction.
func opinionFromMap(doc map[string]any) (*models.Opinion, error) {
	var raw rawVerdict

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(doc); err != nil {
		return nil, malformed("unexpected verdict shape: %v", err)
	}

	if raw.AIProbability == nil {
		return nil, malformed("verdict is missing ai_probability")
	}

	p := *raw.AIProbability
	var breakdown models.Breakdown

	if raw.Breakdown != nil {
		breakdown = models.Breakdown{
			AIGenerated: raw.Breakdown.AIGenerated,
			Mixed:       raw.Breakdown.Mixed,
			Human:       raw.Breakdown.Human,
		}

		if p <= 1 && math.Abs(breakdown.Sum()-1) <= 0.01 {
			p *= 100
			breakdown = models.Breakdown{
				AIGenerated: breakdown.AIGenerated * 100,
				Mixed:       breakdown.Mixed * 100,
				Human:       breakdown.Human * 100,
			}
		}
	} else {
		// without a breakdown only values strictly below 1 read as
		// fractions; exactly 1 is taken as 1%
		if p < 1 {
			p *= 100
		}
		breakdown = models.BreakdownFromProbability(p)
	}

	confidence := confidenceFromProbability(p)
	if raw.Confidence != "" {
		c, err := models.ParseConfidence(raw.Confidence)
		if err != nil {
			return nil, malformed("%v", err)
		}
		confidence = c
	}

	return &models.Opinion{
		AIProbability: p,
		Breakdown:     &breakdown,
		Confidence:    confidence,
	}, nil
}

// confidenceFromProbability derives a confidence for models that do not
// report one: the further from a coin flip, the more certain.
func confidenceFromProbability(p float64) models.Confidence {
	switch d := math.Abs(p - 50); {
	case d >= 35:
		return models.ConfidenceHigh
	case d >= 15:
		return models.ConfidenceModerate
	default:
		return models.ConfidenceLow
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return cutUTF8(s, n) + "..."
}

// cutUTF8 returns at most the first n bytes of s without splitting a
// multi-byte character.
func cutUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
