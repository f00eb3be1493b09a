// Package logging sets up the process logger. It builds a log/slog handler
// and bridges it to logr, which is the logger type every corral component
// accepts.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-logr/logr"
)

// Options configures the logger behavior.
type Options struct {
	// Format is "text" or "json". Defaults to text.
	Format string

	// Level sets the minimum log level. Defaults to slog.LevelInfo.
	Level slog.Level

	// Output is where records are written. Defaults to os.Stderr so command
	// output on stdout stays clean.
	Output io.Writer
}

// DefaultOptions returns the default logging options.
func DefaultOptions() Options {
	return Options{
		Format: "text",
		Level:  slog.LevelInfo,
		Output: os.Stderr,
	}
}

// ParseLevel maps a level name to a slog level.
// "trace" enables logr V(1) lines such as engine invocations.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "trace":
		return slog.LevelDebug - 4, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (want trace, debug, info, warn or error)", s)
}

// Handler builds the slog handler described by opts.
func Handler(opts Options) (slog.Handler, error) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level}
	switch opts.Format {
	case "", "text":
		return slog.NewTextHandler(out, ho), nil
	case "json":
		return slog.NewJSONHandler(out, ho), nil
	}
	return nil, fmt.Errorf("unknown log format %q (want text or json)", opts.Format)
}

// Setup installs the handler as the slog default and returns a logr view of it.
func Setup(opts Options) (logr.Logger, error) {
	handler, err := Handler(opts)
	if err != nil {
		return logr.Discard(), err
	}
	slog.SetDefault(slog.New(handler))
	return logr.FromSlogHandler(handler), nil
}

// SetupDefault sets up logging with default options.
func SetupDefault() logr.Logger {
	logger, _ := Setup(DefaultOptions())
	return logger
}
