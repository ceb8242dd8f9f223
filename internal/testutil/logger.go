package testutil

import (
	"io"
	"log/slog"
)

// NewNullLogger creates a logger that discards all output.
func NewNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
