// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet/log loggers used across kpmd.
package logging

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

const (
	// FormatText is the human-oriented colored output.
	FormatText Format = "text"
	// FormatJSON emits one JSON object per record.
	FormatJSON Format = "json"
	// FormatLogfmt emits logfmt key=value records.
	FormatLogfmt Format = "logfmt"

	// DefaultPrefix is prepended to every record of the root logger.
	DefaultPrefix = "kpmd"
)

// ErrInvalidFormat is returned when a Format value is not recognized.
var ErrInvalidFormat = errors.New("invalid log format")

type (
	// Format selects the log record encoding.
	Format string

	// Options configures New.
	Options struct {
		// Level is a level name accepted by log.ParseLevel ("debug", "info",
		// "warn", "error"). Empty means "info".
		Level string
		// Format is the record encoding. Empty means FormatText.
		Format Format
		// Prefix overrides DefaultPrefix. Use "-" for no prefix.
		Prefix string
		// Timestamps enables the time field on each record.
		Timestamps bool
	}
)

// New creates a logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	formatter, err := opts.Format.formatter()
	if err != nil {
		return nil, err
	}

	prefix := opts.Prefix
	switch prefix {
	case "":
		prefix = DefaultPrefix
	case "-":
		prefix = ""
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		Prefix:          prefix,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.RFC3339,
	}), nil
}

// Discard returns a logger that drops every record.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

func (f Format) formatter() (log.Formatter, error) {
	switch f {
	case "", FormatText:
		return log.TextFormatter, nil
	case FormatJSON:
		return log.JSONFormatter, nil
	case FormatLogfmt:
		return log.LogfmtFormatter, nil
	default:
		return 0, fmt.Errorf("%w: %q (must be text, json or logfmt)", ErrInvalidFormat, string(f))
	}
}
