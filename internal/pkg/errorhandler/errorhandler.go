package errorhandler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/convo/convo-api/internal/pkg/logger"
	"github.com/convo/convo-api/internal/pkg/response"
)

// HandleError logs an unexpected error with request context and sends a
// formatted error response
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	logger.LogError(ctx, err, "Request error",
		"error_code", code,
		"status_code", status,
	)
	response.Error(w, status, code, message)
}

// HandlePanic logs a recovered panic with its stack trace and sends a 500
func HandlePanic(w http.ResponseWriter, r *http.Request, panicErr interface{}, stackTrace string) {
	log.Error().
		Str("request_id", r.Header.Get("X-Request-ID")).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Interface("error", panicErr).
		Str("stack", stackTrace).
		Msg("Panic recovered")

	response.Error(w, http.StatusInternalServerError, "PANIC_ERROR", "An unexpected error occurred")
}
