package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// Preflight answers OPTIONS on any path with 204, CORS headers and an empty
// body. Browsers send it before every cross-origin JSON POST.
func Preflight(allowedOrigins []string, allowAuthorization bool, maxAge int) http.HandlerFunc {
	originsMap := make(map[string]bool)
	allowAll := len(allowedOrigins) == 0
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
			break
		}
		originsMap[origin] = true
	}

	headers := "Content-Type"
	if allowAuthorization {
		headers += ", Authorization"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		case originsMap[origin]:
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodOptions}, ", "))
		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
		w.WriteHeader(http.StatusNoContent)
	}
}

// AnswerOptions serves every OPTIONS request with preflight before routing,
// so unknown paths still get CORS headers and other methods keep their
// 404 and 405 responses.
func AnswerOptions(preflight http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				preflight(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
