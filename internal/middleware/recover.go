package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/convo/convo-api/internal/pkg/errorhandler"
)

// Recover is a middleware that recovers from panics
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				errorhandler.HandlePanic(w, r, err, string(debug.Stack()))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
