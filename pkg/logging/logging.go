// Package logging builds the structured logger shared by the CLI, API and
// batch workers.
package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// New returns a logger at the named level writing to w (stderr when nil).
// Unknown levels fall back to info.
func New(level string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "midiroll",
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// WithContext attaches logger to ctx
func WithContext(ctx context.Context, logger *log.Logger) context.Context {
	return log.WithContext(ctx, logger)
}

// FromContext returns the logger carried by ctx, or the default logger
func FromContext(ctx context.Context) *log.Logger {
	return log.FromContext(ctx)
}
