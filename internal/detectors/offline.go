package detectors

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/spboyer/veracity/internal/models"
)

const OfflineModelID = "offline-heuristic"

// offlineDetector produces a repeatable opinion without any network call.
// The score is a hash of the detector name and the normalized text, nudged
// by sentence-length uniformity ("burstiness"): human prose tends to vary
// sentence length more than model output does.
type offlineDetector struct {
	base
}

// NewOfflineDetector creates a deterministic stand-in detector.
func NewOfflineDetector(cfg Config) *offlineDetector {
	cfg.Type = TypeOffline
	cfg.Model = OfflineModelID
	return &offlineDetector{base: base{cfg: cfg}}
}

func (d *offlineDetector) Detect(ctx context.Context, text string) (*models.Opinion, error) {
	return d.run(ctx, text, func(ctx context.Context) (*models.Opinion, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")

		h := fnv.New64a()
		_, _ = h.Write([]byte(d.cfg.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(normalized))
		seed := h.Sum64()

		p := float64(seed%61) + 20 // 20..80

		switch cv := sentenceLengthVariation(text); {
		case cv == 0:
			// a single sentence says nothing about burstiness
		case cv < 0.3:
			p += 10
		case cv > 0.6:
			p -= 10
		}

		p = clampPercent(p)
		mixed := float64((seed >> 8) % 21) // 0..20
		ai := math.Round(p*(100-mixed)) / 100

		return &models.Opinion{
			ModelID:       OfflineModelID,
			AIProbability: p,
			Breakdown: &models.Breakdown{
				AIGenerated: ai,
				Mixed:       mixed,
				Human:       100 - mixed - ai,
			},
			Confidence: confidenceFromProbability(p),
		}, nil
	})
}

// sentenceLengthVariation returns the coefficient of variation of sentence
// lengths in words, or 0 when there are fewer than two sentences.
func sentenceLengthVariation(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	var lengths []float64
	for _, s := range sentences {
		words := strings.FieldsFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.IsPunct(r)
		})
		if len(words) > 0 {
			lengths = append(lengths, float64(len(words)))
		}
	}

	if len(lengths) < 2 {
		return 0
	}

	var sum float64
	for _, l := range lengths {
		sum += l
	}
	mean := sum / float64(len(lengths))

	var sq float64
	for _, l := range lengths {
		sq += (l - mean) * (l - mean)
	}

	return math.Sqrt(sq/float64(len(lengths))) / mean
}
