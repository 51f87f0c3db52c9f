package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs the default slog logger. LOG_LEVEL overrides defaultLevel and
// LOG_FORMAT selects "text" (default) or "json" output.
func Init(defaultLevel slog.Level) *slog.Logger {
	logger := New(os.Stderr, defaultLevel)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w using the environment settings.
func New(w io.Writer, defaultLevel slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(os.Getenv("LOG_LEVEL"), defaultLevel)}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, falling back to def.
func ParseLevel(v string, def slog.Level) slog.Level {
	switch strings.ToLower(v) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return def
}
