// Package logging configures structured logging with log/slog.
//
// Request-scoped loggers pick up chi's request ID, so every log line written
// during a validation run or scan can be correlated with the HTTP request
// that started it.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
)

// Setup configures the global slog logger writing to stdout.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
func Setup(level, format string) {
	SetupWriter(os.Stdout, level, format)
}

// SetupWriter configures the global slog logger writing to w.
// The CLI uses it to keep stdout free for command output.
func SetupWriter(w io.Writer, level, format string) {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FromContext returns a logger enriched with request context.
//
// When ctx comes from a request that passed chi's RequestID middleware, the
// returned logger adds request_id to every entry, so all lines written while
// validating one import or running one scan share an ID. Outside a request
// (CLI runs, background work) it returns the default logger unchanged.
//
// Usage:
//
//	func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
//	    logger := logging.FromContext(r.Context())
//	    logger.Info("scan requested")
//	}
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()

	if reqID := middleware.GetReqID(ctx); reqID != "" {
		logger = logger.With("request_id", reqID)
	}

	return logger
}

// WithFields returns a request-scoped logger with additional structured fields.
//
// Use it for operation loggers that carry the same context through a
// multi-step run, such as the run ID and sheet sizes of a validation.
//
// Usage:
//
//	runLogger := logging.WithFields(ctx,
//	    "run_id", runID,
//	    "customers", len(batch.Customers),
//	)
//	runLogger.Debug("validation started")
//	// ... later ...
//	runLogger.Info("validation finished", "can_import", ok)
func WithFields(ctx context.Context, args ...any) *slog.Logger {
	return FromContext(ctx).With(args...)
}
