// Package logging builds the zerolog logger the client writes to. Logs go
// to a file because the terminal is owned by the UI; with no file
// configured, logging is disabled entirely.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// New returns a logger writing JSON lines to path at the given level.
// An empty path yields a no-op logger.
func New(path, level string) (zerolog.Logger, error) {
	if path == "" {
		return zerolog.Nop(), nil
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("open log file: %w", err)
	}

	return zerolog.New(file).Level(lvl).With().Timestamp().Logger(), nil
}
