package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the structured logger used across the engine: colored output on
// stderr with source locations, at the given minimum level.
func New(level slog.Level) *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
		AddSource:  true,
	})
	return slog.New(handler)
}

// Default is the process-wide fallback logger for callers that do not inject
// their own.
var Default = New(slog.LevelInfo)
