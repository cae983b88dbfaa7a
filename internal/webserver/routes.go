package webserver

import (
	"net/http"
	"time"

	"github.com/spboyer/veracity/internal/webapi"
)

// newHandler builds the mux and wraps it, outermost first, in request
// logging, CORS and API key checks.
func newHandler(cfg Config) http.Handler {
	mux := http.NewServeMux()
	webapi.RegisterRoutes(mux, cfg.API)
	mux.HandleFunc("/", handleNotFound)

	var h http.Handler = mux
	h = webapi.APIKeyMiddleware(h, cfg.APIKeys...)
	h = webapi.CORSMiddleware(h, cfg.AllowedOrigins...)
	return logRequests(h, cfg)
}

// handleNotFound answers unknown paths with a JSON error instead of the
// mux's plain text one.
func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":"not found","code":404}` + "\n"))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler, cfg Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		cfg.Logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
