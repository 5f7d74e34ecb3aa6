// Package logging configures the process-wide zerolog logger. The TUI owns
// the terminal, so records go to a file instead of stdout.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup points the global logger at path and returns the file so the
// caller can close it on exit.
func Setup(path, level string) (io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	Use(f, level)
	return f, nil
}

// Use installs a logger writing JSON lines to w.
func Use(w io.Writer, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// Console installs a human-readable logger on stderr, used by commands
// that do not draw a UI.
func Console(level string) {
	ConsoleTo(os.Stderr, level)
}

// ConsoleTo installs a human-readable logger writing to w.
func ConsoleTo(w io.Writer, level string) {
	Use(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: "15:04:05"}, level)
}
