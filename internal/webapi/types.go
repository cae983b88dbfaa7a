package webapi

import (
	"time"

	"github.com/spboyer/veracity/internal/consensus"
	"github.com/spboyer/veracity/internal/models"
)

// DetectRequest is the body of POST /api/detect.
type DetectRequest struct {
	Text string `json:"text"`

	// Markdown strips Markdown syntax and code before scoring.
	Markdown bool `json:"markdown,omitempty"`
}

// DetectResponse is a consensus result plus the history record it was saved as.
type DetectResponse struct {
	*models.ConsensusResult
	ID        string `json:"id,omitempty"`
	WordCount int    `json:"word_count"`
}

// HistoryItem is one entry of GET /api/history.
type HistoryItem struct {
	ID           string           `json:"id"`
	CreatedAt    time.Time        `json:"created_at"`
	Preview      string           `json:"preview"`
	WordCount    int              `json:"word_count"`
	OverallScore int              `json:"overall_score"`
	Category     models.Category  `json:"category"`
	RiskLevel    models.RiskLevel `json:"risk_level"`
	Label        string           `json:"label"`
}

// DetectorInfo describes one ensemble member in the health response.
type DetectorInfo struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status    string         `json:"status"`
	Version   string         `json:"version"`
	Ensemble  string         `json:"ensemble,omitempty"`
	Detectors []DetectorInfo `json:"detectors,omitempty"`
}

// ErrorResponse is returned for errors. Failures is only set when every
// detector failed.
type ErrorResponse struct {
	Error    string              `json:"error"`
	Code     int                 `json:"code"`
	Failures []consensus.Failure `json:"failures,omitempty"`
}
