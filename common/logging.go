// Package common holds process-wide helpers shared by the commands.
package common

import (
	"io"
	"log/slog"
	"os"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

// PackageName is the service name used when none is configured.
const PackageName = "featgen"

// LoggingOpts configures SetupLogger.
type LoggingOpts struct {
	Debug   bool
	JSON    bool
	Service string
	Version string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// SetupLogger returns a text or JSON logger tagged with the service name
// and version.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, hopts)
	} else {
		handler = slog.NewTextHandler(out, hopts)
	}
	logger := slog.New(handler)
	service := opts.Service
	if service == "" {
		service = PackageName
	}
	logger = logger.With("service", service)
	if opts.Version != "" {
		logger = logger.With("version", opts.Version)
	}
	return logger
}
