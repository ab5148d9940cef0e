package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options configures a charmbracelet/log backed Logger.
type Options struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string
	// Format selects the formatter: text, json or logfmt.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	Prefix string
	// ReportTimestamp adds timestamps to entries.
	ReportTimestamp bool
}

type charmLogger struct {
	l *log.Logger
}

// NewCharmLogger returns a Logger writing through charmbracelet/log.
func NewCharmLogger(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level, err := log.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = log.InfoLevel
	}
	return charmLogger{l: log.NewWithOptions(out, log.Options{
		Level:           level,
		Prefix:          opts.Prefix,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: opts.ReportTimestamp,
		Formatter:       formatter(opts.Format),
	})}
}

func formatter(name string) log.Formatter {
	switch strings.ToLower(name) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

func (c charmLogger) Debug(msg string, fields ...Field) { c.l.Debug(msg, keyvals(fields)...) }
func (c charmLogger) Info(msg string, fields ...Field)  { c.l.Info(msg, keyvals(fields)...) }
func (c charmLogger) Warn(msg string, fields ...Field)  { c.l.Warn(msg, keyvals(fields)...) }
func (c charmLogger) Error(msg string, fields ...Field) { c.l.Error(msg, keyvals(fields)...) }
func (c charmLogger) With(fields ...Field) Logger {
	return charmLogger{l: c.l.With(keyvals(fields)...)}
}

func keyvals(fields []Field) []interface{} {
	kv := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		if f == nil {
			continue
		}
		kv = append(kv, f.Key(), f.Value())
	}
	return kv
}
