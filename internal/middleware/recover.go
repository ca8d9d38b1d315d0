// internal/middleware/recover.go
//
// Panic recovery.  A handler panic must surface as a clean 500 rejection
// and never take the process down or leak a half-written body; the tenant
// binding unwinds with the request context, so no tenant state needs
// explicit cleanup here.
package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/harborlane/strata/internal/httperr"
)

// Recover converts downstream panics into structured 500 responses.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				zap.S().Errorw("handler panic",
					"panic", rec,
					"path", r.URL.Path,
					"request_id", RequestIDFrom(r.Context()),
					"stack", string(debug.Stack()),
				)
				httperr.RejectWith(w, http.StatusInternalServerError,
					httperr.CategoryInternal, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
