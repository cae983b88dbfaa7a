package webapi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ParseAPIKeys splits a comma separated key list, dropping blanks.
func ParseAPIKeys(s string) []string {
	var keys []string
	for k := range strings.SplitSeq(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// APIKeyMiddleware requires a known key on every /api/ request except the
// health check and CORS preflights. Keys are accepted as a bearer token or
// in X-API-Key. With no keys configured it does nothing.
func APIKeyMiddleware(next http.Handler, keys ...string) http.Handler {
	if len(keys) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions ||
			r.URL.Path == "/api/health" ||
			!strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		if !validKey(requestKey(r), keys) {
			w.Header().Set("WWW-Authenticate", `Bearer realm="veracity"`)
			writeError(w, http.StatusUnauthorized, "missing or invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func requestKey(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func validKey(got string, keys []string) bool {
	if got == "" {
		return false
	}

	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(got), []byte(k))
	}
	return ok == 1
}
