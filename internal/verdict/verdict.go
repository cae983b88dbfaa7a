// Package verdict maps the numeric part of a consensus result to the
// categorical fields shown to users. Everything here is a pure function.
package verdict

import (
	"github.com/spboyer/veracity/internal/models"
)

const (
	// HighRiskAbove is the exclusive lower bound of the High AI Risk band.
	HighRiskAbove = 70
	// MediumRiskAbove is the exclusive lower bound of the Medium Risk band.
	MediumRiskAbove = 30
)

// CategoryOf returns the argmax of the breakdown. Ties resolve in the order
// human, mixed, ai.
func CategoryOf(b models.ScoreBreakdown) models.Category {
	category, best := models.CategoryHuman, b.Human

	if b.Mixed > best {
		category, best = models.CategoryMixed, b.Mixed
	}

	if b.AIGenerated > best {
		category = models.CategoryAI
	}

	return category
}

// RiskLevelOf buckets an overall score. A score exactly on a boundary falls
// into the lower band (70 is Medium Risk, 30 is Human-like).
func RiskLevelOf(score int) models.RiskLevel {
	switch {
	case score > HighRiskAbove:
		return models.RiskHighAI
	case score > MediumRiskAbove:
		return models.RiskMedium
	default:
		return models.RiskHumanLike
	}
}

type labelRule struct {
	category models.Category
	matches  func(b models.ScoreBreakdown) bool
	label    string
}

func always(models.ScoreBreakdown) bool { return true }

// labelRules is evaluated top to bottom; the first rule for the category
// whose predicate matches wins. Each category ends with a catch-all.
var labelRules = []labelRule{
	{models.CategoryHuman, func(b models.ScoreBreakdown) bool { return b.Human >= 90 }, "Entirely human-written"},
	{models.CategoryHuman, func(b models.ScoreBreakdown) bool { return b.Mixed > 20 }, "Lightly edited by AI"},
	{models.CategoryHuman, func(b models.ScoreBreakdown) bool { return b.AIGenerated > 20 }, "Human-written with AI passages"},
	{models.CategoryHuman, always, "Mostly human-written"},

	{models.CategoryMixed, func(b models.ScoreBreakdown) bool { return b.Mixed > 60 }, "Heavily polished by AI"},
	{models.CategoryMixed, func(b models.ScoreBreakdown) bool { return b.AIGenerated >= b.Human }, "Blend of AI and human writing, leaning AI"},
	{models.CategoryMixed, always, "Blend of AI and human writing"},

	{models.CategoryAI, func(b models.ScoreBreakdown) bool { return b.AIGenerated > 80 }, "Mostly AI-generated"},
	{models.CategoryAI, always, "Likely AI-generated with human edits"},
}

// LabelOf returns the human-readable description for a category and its
// breakdown.
func LabelOf(category models.Category, b models.ScoreBreakdown) string {
	for _, r := range labelRules {
		if r.category == category && r.matches(b) {
			return r.label
		}
	}
	return "Unclassified"
}

// Classify fills in Category, RiskLevel and Label from the numeric fields.
func Classify(result *models.ConsensusResult) {
	result.Category = CategoryOf(result.Breakdown)
	result.RiskLevel = RiskLevelOf(result.OverallScore)
	result.Label = LabelOf(result.Category, result.Breakdown)
}
