package middleware

import (
	"net/http"

	"github.com/lijuniwawanah-jpg/docvault/internal/httpjson"
	"github.com/lijuniwawanah-jpg/docvault/internal/logger"
)

// NotFoundHandler writes the JSON 404 body for unmatched routes.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	httpjson.Error(w, http.StatusNotFound, "not found")
}

// RecoverMiddleware catches panics and converts them to JSON 500 responses.
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				httpjson.Error(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
