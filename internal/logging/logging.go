// Package logging builds the component loggers used across svcdeps.
//
// Loggers are plain *log.Logger values with a bracketed component prefix,
// e.g. "[extract] ". Output goes to stderr, or to a size-rotated file when
// a log file is configured.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/svcdeps/svcdeps/internal/config"
)

// Factory hands out component loggers sharing one destination.
type Factory struct {
	out    io.Writer
	closer io.Closer
}

// New creates a Factory from the log settings.
//
// Informational logs are only emitted when Verbose is set or a log file is
// configured; otherwise component loggers discard their output.
func New(cfg config.LogConfig) *Factory {
	if cfg.File != "" {
		rot := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		var out io.Writer = rot
		if cfg.Verbose {
			out = io.MultiWriter(rot, os.Stderr)
		}
		return &Factory{out: out, closer: rot}
	}

	if cfg.Verbose {
		return &Factory{out: os.Stderr}
	}
	return &Factory{out: io.Discard}
}

// NewWriter creates a Factory writing to w.
func NewWriter(w io.Writer) *Factory {
	return &Factory{out: w}
}

// Logger returns a logger for the named component.
func (f *Factory) Logger(component string) *log.Logger {
	return log.New(f.out, "["+component+"] ", log.LstdFlags)
}

// Close releases the log file, if any.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
