// Package logging builds the structured logger reposync writes to.
//
// Records go to stderr or to a size-rotated file. The level is fixed at
// Debug: every record the sync engine emits is kept, one line per record.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures the log destination.
type Options struct {
	// File is the log file path; empty logs to Stderr
	File string

	// Format is FormatText (default) or FormatJSON
	Format string

	// Rotation settings for File, passed to lumberjack
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Stderr is used when File is empty (default os.Stderr)
	Stderr io.Writer
}

// New returns a logger for opts and a Closer releasing the log file. The
// Closer is a no-op when logging to Stderr.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		}
		w, closer = rotator, rotator
	} else {
		w = opts.Stderr
		if w == nil {
			w = os.Stderr
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var handler slog.Handler
	switch opts.Format {
	case "", FormatText:
		handler = slog.NewTextHandler(w, handlerOpts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		_ = closer.Close()
		return nil, nil, fmt.Errorf("unknown log format %q (want %s or %s)", opts.Format, FormatText, FormatJSON)
	}

	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
