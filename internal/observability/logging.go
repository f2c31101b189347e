// Package observability provides structured logging and Prometheus metrics
// for the orchestration pipeline.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Sink is the logging contract consumed by the engine and dispatch layer.
// Implementations accept a message plus key-value args; "guild_id" and
// "error" keys carry the tenant and failure detail. Multiple sinks can be
// combined with Fanout.
type Sink interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

// LogConfig configures the console logger. All fields are resolved by the
// owning process at construction; the logger performs no environment
// lookups of its own.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error".
	Level string

	// Format selects "json" (production) or "text" (development) output.
	Format string

	// Output is the log writer, defaulting to os.Stdout.
	Output io.Writer
}

// Logger is a slog-backed Sink with sensitive-data redaction for provider
// API keys and bot tokens.
type Logger struct {
	logger  *slog.Logger
	redacts []*regexp.Regexp
}

// redactPatterns covers the secrets this process handles: provider API
// keys and Discord bot tokens.
var redactPatterns = []string{
	`sk-ant-[a-zA-Z0-9_-]{16,}`,
	`sk-[a-zA-Z0-9]{32,}`,
	`(?i)(bot )?[MN][a-zA-Z0-9_-]{23}\.[a-zA-Z0-9_-]{6}\.[a-zA-Z0-9_-]{27,}`,
	`(?i)(token|secret|api[_-]?key)[\s:=]+["']?([^\s"']{16,})["']?`,
}

// NewLogger creates a console logger from the given configuration.
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: LevelFromString(config.Level)}
	var handler slog.Handler
	if strings.ToLower(config.Format) == "text" {
		handler = slog.NewTextHandler(config.Output, opts)
	} else {
		handler = slog.NewJSONHandler(config.Output, opts)
	}

	redacts := make([]*regexp.Regexp, 0, len(redactPatterns))
	for _, pattern := range redactPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{logger: slog.New(handler), redacts: redacts}
}

// WithFields returns a child logger with the given key-value pairs attached
// to every record.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...), redacts: l.redacts}
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	redacted := make([]any, len(args))
	for i, arg := range args {
		redacted[i] = l.redactValue(arg)
	}
	l.logger.Log(ctx, level, l.redactString(msg), redacted...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	default:
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

// LevelFromString converts a level name to a slog.Level, defaulting to
// info for unrecognized input.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NopSink is a Sink that discards everything.
type NopSink struct{}

// Debug discards the record.
func (NopSink) Debug(context.Context, string, ...any) {}

// Info discards the record.
func (NopSink) Info(context.Context, string, ...any) {}

// Warn discards the record.
func (NopSink) Warn(context.Context, string, ...any) {}

// Error discards the record.
func (NopSink) Error(context.Context, string, ...any) {}

// Fanout forwards every call to each member sink unconditionally.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a composite sink over the given members. Nil members
// are skipped.
func NewFanout(sinks ...Sink) *Fanout {
	members := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			members = append(members, s)
		}
	}
	return &Fanout{sinks: members}
}

// Debug forwards to every member.
func (f *Fanout) Debug(ctx context.Context, msg string, args ...any) {
	for _, s := range f.sinks {
		s.Debug(ctx, msg, args...)
	}
}

// Info forwards to every member.
func (f *Fanout) Info(ctx context.Context, msg string, args ...any) {
	for _, s := range f.sinks {
		s.Info(ctx, msg, args...)
	}
}

// Warn forwards to every member.
func (f *Fanout) Warn(ctx context.Context, msg string, args ...any) {
	for _, s := range f.sinks {
		s.Warn(ctx, msg, args...)
	}
}

// Error forwards to every member.
func (f *Fanout) Error(ctx context.Context, msg string, args ...any) {
	for _, s := range f.sinks {
		s.Error(ctx, msg, args...)
	}
}
