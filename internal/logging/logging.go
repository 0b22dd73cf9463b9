// Package logging builds the process logger on charmbracelet/log and adapts
// it to core.Logger.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"

	"todoapi/internal/core"

	"github.com/charmbracelet/log"
)

// Options configures New. Zero values mean info level, text output to stderr.
type Options struct {
	Level      string // debug|info|warn|error
	Format     string // text|json|logfmt
	Timestamps bool
	Prefix     string
	Output     io.Writer
}

// ParseLevel maps a level name onto a charmbracelet/log level.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// ParseFormatter maps a format name onto a charmbracelet/log formatter.
func ParseFormatter(format string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("unknown log format %q", format)
	}
}

// Logger implements core.Logger.
type Logger struct {
	base *log.Logger
}

var _ core.Logger = (*Logger)(nil)

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	formatter, err := ParseFormatter(opts.Format)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return Wrap(log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: opts.Timestamps,
		Prefix:          opts.Prefix,
	})), nil
}

// Wrap adapts an existing charmbracelet logger.
func Wrap(base *log.Logger) *Logger {
	return &Logger{base: base}
}

func (l *Logger) Debug(msg string, args ...any) { l.base.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.base.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.base.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.base.Error(msg, args...) }

// With returns a child logger carrying the key/value pairs on every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{base: l.base.With(args...)}
}

// Std returns a standard library logger writing at error level, for
// net/http's ErrorLog.
func (l *Logger) Std() *stdlog.Logger {
	return l.base.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})
}
