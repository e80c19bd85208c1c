package api

import (
	"net/http"
	"slices"
	"strings"
)

// corsPrefixes are the JSON surfaces a browser client on another origin may
// call. The HTML pages and their form posts are same-origin only, so the
// session cookie is never honoured for a cross-origin form submission.
var corsPrefixes = []string{"/api/", "/rpc/", "/v1/auth/"}

const (
	corsAllowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsAllowHeaders = "Authorization, Content-Type"
	corsMaxAge       = "600"
)

// CORSMiddleware answers CORS for the JSON routes. Allowed origins are
// echoed back (never "*") because credentials are allowed. With no origins
// configured it passes through without setting headers.
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.config.CORSAllowedOrigins) == 0 || !corsPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Origin")
		origin := r.Header.Get("Origin")
		if origin == "" || !s.originAllowed(origin) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
			h.Set("Access-Control-Allow-Methods", corsAllowMethods)
			h.Set("Access-Control-Max-Age", corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	return slices.Contains(s.config.CORSAllowedOrigins, "*") || slices.Contains(s.config.CORSAllowedOrigins, origin)
}

func corsPath(path string) bool {
	for _, p := range corsPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
