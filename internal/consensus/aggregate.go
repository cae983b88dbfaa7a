package consensus

import (
	"fmt"
	"math"

	"github.com/spboyer/veracity/internal/detectors"
	"github.com/spboyer/veracity/internal/models"
	"github.com/spboyer/veracity/internal/verdict"
)

// Aggregate combines a settled set of opinions into a consensus. It is a
// pure function of its input: the same opinions in the same order always
// give an identical result.
//
// Opinions that claim success but break the numeric invariants are treated
// as malformed failures. If nothing usable remains, Aggregate returns an
// [*AllModelsFailedError].
func Aggregate(opinions []models.Opinion) (*models.ConsensusResult, error) {
	settled := make([]models.Opinion, len(opinions))
	copy(settled, opinions)

	var (
		successful []models.Opinion
		failures   []Failure
	)

	for i, o := range settled {
		if o.Succeeded {
			err := o.Validate()
			if err == nil && !detectors.ValidWeight(o.Weight) {
				err = fmt.Errorf("invalid weight %v", o.Weight)
			}

			if err == nil {
				successful = append(successful, o)
				continue
			}

			settled[i] = models.Opinion{
				Detector:  o.Detector,
				ModelID:   o.ModelID,
				Weight:    o.Weight,
				Error:     err.Error(),
				ErrorKind: string(detectors.KindMalformedResponse),
			}
			o = settled[i]
		}

		failures = append(failures, Failure{
			Detector: o.Detector,
			Kind:     detectors.ErrorKind(o.ErrorKind),
			Reason:   o.Error,
		})
	}

	if len(successful) == 0 {
		return nil, &AllModelsFailedError{Failures: failures}
	}

	var totalWeight float64
	for _, o := range successful {
		totalWeight += o.Weight
	}

	var score float64
	var ai, mixed, human float64

	for _, o := range successful {
		ew := o.Weight / totalWeight

		score += ew * o.AIProbability
		ai += ew * o.Breakdown.AIGenerated
		mixed += ew * o.Breakdown.Mixed
		human += ew * o.Breakdown.Human
	}

	result := &models.ConsensusResult{
		OverallScore: min(max(int(math.Round(score)), 0), 100),
		Breakdown:    normalizeBreakdown(ai, mixed, human),
		Confidence:   aggregateConfidence(successful),
		ContributingModels: models.ContributingModels{
			Succeeded: len(successful),
			Total:     len(settled),
		},
		Opinions: settled,
	}

	verdict.Classify(result)

	return result, nil
}

// normalizeBreakdown rescales the weighted components to 100 and rounds
// them. The rounding remainder goes to the largest component (ties: human,
// then mixed, then ai) so the integers always sum to exactly 100.
func normalizeBreakdown(ai, mixed, human float64) models.ScoreBreakdown {
	total := ai + mixed + human
	if total <= 0 {
		return models.ScoreBreakdown{Human: 100}
	}

	ai, mixed, human = ai/total*100, mixed/total*100, human/total*100

	b := models.ScoreBreakdown{
		AIGenerated: int(math.Round(ai)),
		Mixed:       int(math.Round(mixed)),
		Human:       int(math.Round(human)),
	}

	remainder := 100 - b.Sum()
	if remainder == 0 {
		return b
	}

	switch {
	case human >= mixed && human >= ai:
		b.Human += remainder
	case mixed >= ai:
		b.Mixed += remainder
	default:
		b.AIGenerated += remainder
	}

	return b
}

// aggregateConfidence is a plurality vote that falls back to moderate: high
// needs more highs than lows and at least half of the votes, low needs more
// lows than highs.
func aggregateConfidence(opinions []models.Opinion) models.Confidence {
	var high, low int
	for _, o := range opinions {
		switch o.Confidence {
		case models.ConfidenceHigh:
			high++
		case models.ConfidenceLow:
			low++
		}
	}

	switch {
	case high > low && 2*high >= len(opinions):
		return models.ConfidenceHigh
	case low > high:
		return models.ConfidenceLow
	default:
		return models.ConfidenceModerate
	}
}
