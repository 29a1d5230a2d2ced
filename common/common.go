// Package common holds shared identity constants and logger construction
// used across cryptagraph packages and binaries.
package common

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// PackageName identifies this module in metrics namespaces and log output.
const PackageName = "cryptagraph"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// LoggingOpts configures SetupLogger.
type LoggingOpts struct {
	// Debug lowers the log level to debug.
	Debug bool

	// JSON emits JSON log lines instead of text.
	JSON bool

	// Service is attached to every line as the "service" field.
	Service string

	// UID attaches a fresh per-process UUID when true, so lines from
	// restarts of the same service can be told apart.
	UID bool
}

// SetupLogger builds the process-wide slog logger the way all cryptagraph
// binaries do.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	log := slog.New(handler)
	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.UID {
		log = log.With("uid", uuid.New().String())
	}
	return log
}
