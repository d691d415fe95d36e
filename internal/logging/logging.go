// Package logging builds the component loggers used across jobsheet.
//
// Loggers are plain *log.Logger values with a "[component] " prefix.
// When a log file is configured, every logger writes to one rotating file
// (lumberjack) instead of stderr.
package logging

import (
	"io"
	"log"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 28
)

// Config describes where logs go. An empty File means stderr.
type Config struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Quiet discards all output. Used by one-shot commands unless
	// verbose output was asked for.
	Quiet bool
}

// Logs hands out component loggers sharing one writer.
type Logs struct {
	out    io.Writer
	closer io.Closer
}

// New opens the destination described by c.
func New(c Config) *Logs {
	switch {
	case c.Quiet:
		return &Logs{out: io.Discard}
	case c.File != "":
		w := &lj.Logger{
			Filename:   c.File,
			MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   c.Compress,
		}
		return &Logs{out: w, closer: w}
	default:
		return &Logs{out: os.Stderr}
	}
}

// For returns a logger for component, e.g. For("sync") prefixes "[sync] ".
func (l *Logs) For(component string) *log.Logger {
	return log.New(l.out, "["+strings.TrimSpace(component)+"] ", log.LstdFlags)
}

// Writer returns the shared destination.
func (l *Logs) Writer() io.Writer {
	return l.out
}

// Close closes the log file, if any.
func (l *Logs) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
