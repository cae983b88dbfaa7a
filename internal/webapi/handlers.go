package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/spboyer/veracity/internal/consensus"
	"github.com/spboyer/veracity/internal/history"
	"github.com/spboyer/veracity/internal/models"
	"github.com/spboyer/veracity/internal/textprep"
)

// Version is set at build time or defaults to dev.
var Version = "0.1.0-dev"

const (
	maxBodyBytes     = 1 << 20
	defaultListLimit = 50
	maxListLimit     = 500
	previewRunes     = 120
)

// Detector produces a consensus verdict for a text.
type Detector interface {
	Detect(ctx context.Context, text string) (*models.ConsensusResult, error)
}

// Deps are the collaborators the handlers need. History may be nil, in which
// case nothing is saved and the history endpoints answer 404.
type Deps struct {
	Detector  Detector
	History   history.Store
	MaxWords  int
	Ensemble  string
	Detectors []DetectorInfo
}

// Handlers holds the HTTP handler methods for the web API.
type Handlers struct {
	deps Deps
}

// NewHandlers creates a new Handlers with the given dependencies.
func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Version:   Version,
		Ensemble:  h.deps.Ensemble,
		Detectors: h.deps.Detectors,
	})
}

// HandleDetect scores the submitted text and records it in history.
func (h *Handlers) HandleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Markdown {
		req.Text = textprep.MarkdownToPlain([]byte(req.Text))
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	words := len(strings.Fields(req.Text))
	if h.deps.MaxWords > 0 && words > h.deps.MaxWords {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text has %d words, the limit is %d", words, h.deps.MaxWords))
		return
	}

	result, err := h.deps.Detector.Detect(r.Context(), req.Text)
	if err != nil {
		var allFailed *consensus.AllModelsFailedError
		if errors.As(err, &allFailed) {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error:    allFailed.Error(),
				Code:     http.StatusServiceUnavailable,
				Failures: allFailed.Failures,
			})
			return
		}
		slog.ErrorContext(r.Context(), "detection failed", "error", err)
		writeError(w, http.StatusInternalServerError, "detection failed")
		return
	}

	resp := DetectResponse{ConsensusResult: result, WordCount: words}

	if h.deps.History != nil {
		rec := &history.Record{InputText: req.Text, WordCount: words, Result: result}
		if err := h.deps.History.Save(rec); err != nil {
			slog.WarnContext(r.Context(), "saving detection to history", "error", err)
		} else {
			resp.ID = rec.ID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleHistory lists past detections, newest first. ?limit= caps the count.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records, err := h.deps.History.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]HistoryItem, 0, len(records))
	for _, rec := range records {
		items = append(items, HistoryItem{
			ID:           rec.ID,
			CreatedAt:    rec.CreatedAt,
			Preview:      preview(rec.InputText),
			WordCount:    rec.WordCount,
			OverallScore: rec.Result.OverallScore,
			Category:     rec.Result.Category,
			RiskLevel:    rec.Result.RiskLevel,
			Label:        rec.Result.Label,
		})
	}
	writeJSON(w, http.StatusOK, items)
}

// HandleHistoryDetail returns one stored detection including its input text.
func (h *Handlers) HandleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "record id is required")
		return
	}

	rec, err := h.deps.History.Get(id)
	if err != nil {
		if errors.Is(err, history.ErrRecordNotFound) {
			writeError(w, http.StatusNotFound, "record not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleSummary returns aggregate counts across all stored detections.
func (h *Handlers) HandleSummary(w http.ResponseWriter, _ *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	summary, err := h.deps.History.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// RegisterRoutes registers all web API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	h := NewHandlers(deps)
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/detect", h.HandleDetect)
	mux.HandleFunc("GET /api/history", h.HandleHistory)
	mux.HandleFunc("GET /api/history/{id}", h.HandleHistoryDetail)
	mux.HandleFunc("GET /api/summary", h.HandleSummary)
}

// CORSMiddleware wraps a handler with CORS headers.
// If allowedOrigins is empty, no CORS header is set (same-origin only).
// Otherwise, the request Origin is checked against the allowed list.
func CORSMiddleware(next http.Handler, allowedOrigins ...string) http.Handler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= previewRunes {
		return text
	}
	return string(runes[:previewRunes]) + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
