package middleware

import (
	"net/http"

	"github.com/syncora/syncora/infrastructure/http/response"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// RecoveryMiddleware converts handler panics into a 500 instead of tearing
// down the connection.
func RecoveryMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if recovered := recover(); recovered != nil {
					log.Error(r.Context(), "Handler panicked", nil, map[string]interface{}{
						"panic":  recovered,
						"path":   r.URL.Path,
						"method": r.Method,
					})
					response.InternalServerError(w, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
