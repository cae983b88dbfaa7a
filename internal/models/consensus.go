package models

// Category is the dominant class of a consensus breakdown.
type Category string

const (
	CategoryHuman Category = "human"
	CategoryMixed Category = "mixed"
	CategoryAI    Category = "ai"
)

// RiskLevel buckets the overall score for display.
type RiskLevel string

const (
	RiskHumanLike RiskLevel = "Human-like"
	RiskMedium    RiskLevel = "Medium Risk"
	RiskHighAI    RiskLevel = "High AI Risk"
)

// ScoreBreakdown is the ensemble breakdown, rounded so that the three
// components always add up to exactly 100.
type ScoreBreakdown struct {
	AIGenerated int `json:"ai_generated"`
	Mixed       int `json:"mixed"`
	Human       int `json:"human"`
}

// Sum returns the total of the three components.
func (s ScoreBreakdown) Sum() int {
	return s.AIGenerated + s.Mixed + s.Human
}

// ContributingModels counts how many of the queried models produced an opinion.
type ContributingModels struct {
	Succeeded int `json:"succeeded"`
	Total     int `json:"total"`
}

// ConsensusResult is the weighted verdict across every successful opinion.
type ConsensusResult struct {
	OverallScore       int                `json:"overall_score"`
	Breakdown          ScoreBreakdown     `json:"breakdown"`
	Category           Category           `json:"category"`
	Confidence         Confidence         `json:"confidence"`
	Label              string             `json:"label"`
	RiskLevel          RiskLevel          `json:"risk_level"`
	ContributingModels ContributingModels `json:"contributing_models"`

	// Opinions are listed in configured detector order, failures included.
	Opinions []Opinion `json:"opinions,omitempty"`
}
