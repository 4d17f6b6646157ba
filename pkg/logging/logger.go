// Package logging provides structured logging for the host bridge.
// The Logger interface decouples components from the backend; New builds a
// zerolog-backed implementation writing JSON or console output.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
)

// Level represents the severity of a log message
type Level int

const (
	// DebugLevel is for detailed information useful for debugging
	DebugLevel Level = iota - 1
	// InfoLevel is for general informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
	// Disabled suppresses all output
	Disabled
)

// String returns the string representation of a log level
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// ParseLevel converts a level name into a Level. Unknown names yield InfoLevel
// and an error.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "trace":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "disabled", "off", "none":
		return Disabled, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}

func (l Level) toZerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case Disabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithFields returns a new logger with additional fields
	WithFields(fields ...Field) Logger
	// WithContext returns a new logger carrying the correlation id stored in ctx, if any
	WithContext(ctx context.Context) Logger
	// WithError returns a new logger with error context
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Format selects the output encoding
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

type zerologLogger struct {
	zl    zerolog.Logger
	level *atomic.Int32
}

// New creates a logger writing to output (stderr when nil) in the given format.
func New(output io.Writer, format Format, level Level) Logger {
	if output == nil {
		output = os.Stderr
	}
	if format == FormatConsole {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339, NoColor: true}
	}
	lvl := &atomic.Int32{}
	lvl.Store(int32(level))
	return &zerologLogger{
		zl:    zerolog.New(output).With().Timestamp().Logger(),
		level: lvl,
	}
}

// NewNop returns a logger that discards everything
func NewNop() Logger {
	lvl := &atomic.Int32{}
	lvl.Store(int32(Disabled))
	return &zerologLogger{zl: zerolog.Nop(), level: lvl}
}

func (l *zerologLogger) Debug(msg string, fields ...Field) { l.log(DebugLevel, msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...Field)  { l.log(InfoLevel, msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...Field)  { l.log(WarnLevel, msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...Field) { l.log(ErrorLevel, msg, fields) }

func (l *zerologLogger) log(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}
	ev := l.zl.WithLevel(level.toZerolog())
	if ev == nil {
		return
	}
	for _, f := range fields {
		ev = addField(ev, f)
	}
	ev.Msg(msg)
}

func addField(ev *zerolog.Event, f Field) *zerolog.Event {
	switch v := f.Value.(type) {
	case string:
		return ev.Str(f.Key, v)
	case int:
		return ev.Int(f.Key, v)
	case bool:
		return ev.Bool(f.Key, v)
	case time.Duration:
		return ev.Dur(f.Key, v)
	case error:
		return ev.AnErr(f.Key, v)
	default:
		return ev.Interface(f.Key, v)
	}
}

// WithFields returns a new logger with additional fields
func (l *zerologLogger) WithFields(fields ...Field) Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ctx = ctx.Str(f.Key, v)
		case int:
			ctx = ctx.Int(f.Key, v)
		case bool:
			ctx = ctx.Bool(f.Key, v)
		case time.Duration:
			ctx = ctx.Dur(f.Key, v)
		case error:
			ctx = ctx.AnErr(f.Key, v)
		default:
			ctx = ctx.Interface(f.Key, v)
		}
	}
	return &zerologLogger{zl: ctx.Logger(), level: l.level}
}

// WithContext returns a new logger with context fields
func (l *zerologLogger) WithContext(ctx context.Context) Logger {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return l.WithFields(String("correlation_id", id))
	}
	return l
}

// WithError returns a new logger with error context
func (l *zerologLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	fields := []Field{ErrorField(err)}

	if be, ok := bridgeerrors.AsBridgeError(err); ok {
		fields = append(fields,
			String("error_code", be.Name()),
			String("error_category", string(be.Category())),
			String("error_severity", string(be.Severity())),
		)
		if ctx := be.Context(); ctx != nil {
			if ctx.Operation != "" {
				fields = append(fields, String("operation", ctx.Operation))
			}
			if ctx.Environment != "" {
				fields = append(fields, String("environment", ctx.Environment))
			}
		}
	}

	return l.WithFields(fields...)
}

// SetLevel sets the minimum log level; it applies to every derived logger
func (l *zerologLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current log level
func (l *zerologLogger) GetLevel() Level {
	return Level(l.level.Load())
}

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// ContextWithCorrelationID returns a context carrying a request correlation id
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation id from a context
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}
