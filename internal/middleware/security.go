// internal/middleware/security.go
//
// Security-header middleware.  An API surface needs fewer headers than a
// rendered site, but HSTS, sniffing, and framing defences still apply to
// every response, including error bodies.
//
// Headers are set before next.ServeHTTP runs; a handler that needs a
// different value can overwrite its own copy before writing the body.
package middleware

import "net/http"

// Security sets baseline security headers on every response.
func Security(next http.Handler) http.Handler {
	const (
		hsts  = "max-age=63072000; includeSubDomains"
		nosn  = "nosniff"
		xfo   = "DENY"
		refer = "no-referrer"
	)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Strict-Transport-Security", hsts)
		h.Set("X-Content-Type-Options", nosn)
		h.Set("X-Frame-Options", xfo)
		h.Set("Referrer-Policy", refer)

		next.ServeHTTP(w, r)
	})
}
