// Package logger carries a structured logger through context.Context for the
// CLI, the sampling driver and the HTTP server.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging surface the rest of the module depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
}

// Format selects how records are rendered.
type Format string

const (
	FormatPretty Format = "pretty"
	FormatJSON   Format = "json"
	FormatText   Format = "text"
)

// Options configures New. A nil Output writes to stderr and an empty Format
// means FormatPretty.
type Options struct {
	Format Format
	Level  slog.Level
	Output io.Writer
	Source bool
}

// New builds a Logger for opts.
func New(opts Options) (Logger, error) {
	w := opts.Output
	if w == nil {
		w = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: opts.Source}

	var h slog.Handler
	switch opts.Format {
	case "", FormatPretty:
		h = newConsoleHandler(w, ho)
	case FormatJSON:
		h = slog.NewJSONHandler(w, ho)
	case FormatText:
		h = slog.NewTextHandler(w, ho)
	default:
		return nil, fmt.Errorf("unknown log format %q (want pretty, json or text)", opts.Format)
	}
	return FromHandler(h), nil
}

// FromHandler wraps an arbitrary slog.Handler.
func FromHandler(h slog.Handler) Logger {
	return &slogLogger{l: slog.New(h)}
}

// Discard returns a Logger that drops every record.
func Discard() Logger {
	return FromHandler(slog.DiscardHandler)
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case,
// plus slog offsets such as "INFO+2".
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

type loggerKey struct{}

// FromContext returns the Logger stored in ctx, or an info level text logger
// on stderr when there is none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return FromHandler(slog.NewTextHandler(os.Stderr, nil))
}

func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}

func (s *slogLogger) WithGroup(name string) Logger {
	return &slogLogger{l: s.l.WithGroup(name)}
}
