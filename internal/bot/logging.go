package bot

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process-wide structured logger and installs it as the
// slog default.
func NewLogger(level string) *slog.Logger {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:     parseLogLevel(level),
		AddSource: true,
	}))
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
