package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"yearn-vaults/internal/logger"
)

// Recovery ловить паніки та повертає 500 помилку
func Recovery(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("❌ PANIC on %s %s: %v\n%s", r.Method, r.URL.Path, err, debug.Stack())
					writeError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
