package testutil

import (
	"io"
	"log/slog"
)

// QuietLogger returns a logger that discards everything.
// Scenario runs and command tests use it to keep output clean.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
