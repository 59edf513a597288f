package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// L is the global logger. It falls back to slog's default until InitLogger runs.
var L = slog.Default()

// InitLogger initializes the global logger.
// Call this once at application startup, after loading config.
func InitLogger(logLevelStr string) {
	initLogger(os.Stdout, logLevelStr)
}

func initLogger(w io.Writer, logLevelStr string) {
	level, ok := parseLevel(logLevelStr)
	if !ok {
		// L might not be initialized yet for this warning.
		slog.Warn("Invalid LOG_LEVEL specified, defaulting to INFO", "configuredLevel", logLevelStr)
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	L = slog.New(slog.NewJSONHandler(w, opts))
	slog.SetDefault(L)
	L.Info("Logger initialized", "level", level.String())
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// FromContext returns the global logger tagged with the request ID that the
// router middleware stored in ctx, if any.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return L.With("requestID", reqID)
	}
	return L
}
