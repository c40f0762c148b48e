package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tarot-payment-ledger/internal/config"
)

// NewLogger creates the process logger writing JSON to stdout
func NewLogger(cfg *config.Config) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a JSON slog.Logger tagged with the service and component names
func NewLoggerWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts))
	if cfg.Application.Name != "" {
		logger = logger.With("service", cfg.Application.Name)
	}
	if cfg.Application.Component != "" {
		logger = logger.With("component", cfg.Application.Component)
	}

	logger.Info("logger initialized", "level", level)

	return logger
}

// ParseLevel maps a textual level to slog, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
