package models

import (
	"fmt"
	"math"
	"strings"
)

// BreakdownTolerance is how far a per-model breakdown may drift from 100
// before it is rejected as malformed.
const BreakdownTolerance = 1.0

// Confidence is a model's (or the ensemble's) self-reported certainty.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceHigh     Confidence = "high"
)

func (c Confidence) String() string {
	return string(c)
}

// ParseConfidence converts provider output to a Confidence. It is lenient
// about case and accepts "medium" as an alias for moderate.
func ParseConfidence(s string) (Confidence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ConfidenceLow, nil
	case "moderate", "medium":
		return ConfidenceModerate, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return ConfidenceModerate, fmt.Errorf("invalid confidence %q: must be low, moderate, or high", s)
	}
}

// Breakdown is one model's three-way split of the text, in percent.
type Breakdown struct {
	AIGenerated float64 `json:"ai_generated"`
	Mixed       float64 `json:"mixed"`
	Human       float64 `json:"human"`
}

// Sum returns the total of the three components.
func (b Breakdown) Sum() float64 {
	return b.AIGenerated + b.Mixed + b.Human
}

// Validate checks that each component is within [0,100] and that the total
// is 100 within tol.
func (b Breakdown) Validate(tol float64) error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"ai_generated", b.AIGenerated},
		{"mixed", b.Mixed},
		{"human", b.Human},
	} {
		if math.IsNaN(c.value) || c.value < 0 || c.value > 100 {
			return fmt.Errorf("breakdown %s is %v (must be within [0,100])", c.name, c.value)
		}
	}

	if sum := b.Sum(); math.Abs(sum-100) > tol {
		return fmt.Errorf("breakdown sums to %.2f (must be 100 ± %.1f)", sum, tol)
	}

	return nil
}

// BreakdownFromProbability synthesizes a breakdown for models that only
// report a single AI probability.
func BreakdownFromProbability(p float64) Breakdown {
	return Breakdown{
		AIGenerated: p,
		Mixed:       0,
		Human:       100 - p,
	}
}

// Opinion is one detector's scored result for a text. It lives only for the
// duration of a request.
type Opinion struct {
	Detector      string     `json:"detector"`
	ModelID       string     `json:"model_id"`
	AIProbability float64    `json:"ai_probability,omitempty"`
	Breakdown     *Breakdown `json:"breakdown,omitempty"`
	Confidence    Confidence `json:"confidence,omitempty"`
	Weight        float64    `json:"weight"`
	Succeeded     bool       `json:"succeeded"`

	// Error and ErrorKind are only set when Succeeded is false.
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Validate checks the numeric invariants of a successful opinion.
func (o *Opinion) Validate() error {
	if math.IsNaN(o.AIProbability) || o.AIProbability < 0 || o.AIProbability > 100 {
		return fmt.Errorf("ai_probability is %v (must be within [0,100])", o.AIProbability)
	}

	if o.Breakdown == nil {
		return fmt.Errorf("breakdown is missing")
	}

	return o.Breakdown.Validate(BreakdownTolerance)
}
