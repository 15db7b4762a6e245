package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
)

// ANSI color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorBold   = "\033[1m"
)

// Level represents log levels
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name such as "debug" or "WARN" to a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Fields represents structured logging fields
type Fields map[string]any

// Logger defines the interface that the library expects for logging
type Logger interface {
	Debug(msg string, fields ...Fields)
	Info(msg string, fields ...Fields)
	Warn(msg string, fields ...Fields)
	Error(err error, msg string, fields ...Fields)
	Fatal(err error, msg string, fields ...Fields)

	// WithFields returns a logger with preset fields
	WithFields(fields Fields) Logger

	// WithContext returns a logger carrying the fields stored in ctx
	WithContext(ctx context.Context) Logger

	// SetLevel sets the minimum log level
	SetLevel(level Level)
}

type fieldsKey struct{}

// ContextWithFields returns a copy of ctx carrying fields for WithContext.
// Fields already present in ctx are kept unless overridden.
func ContextWithFields(ctx context.Context, fields Fields) context.Context {
	merged := make(Fields)
	if existing, ok := ctx.Value(fieldsKey{}).(Fields); ok {
		maps.Copy(merged, existing)
	}
	maps.Copy(merged, fields)
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// FieldsFromContext returns the fields stored by ContextWithFields
func FieldsFromContext(ctx context.Context) (Fields, bool) {
	if ctx == nil {
		return nil, false
	}
	f, ok := ctx.Value(fieldsKey{}).(Fields)
	return f, ok
}

// mergeFields flattens base and extra into a new map
func mergeFields(base Fields, extra ...Fields) Fields {
	all := make(Fields, len(base))
	maps.Copy(all, base)
	for _, f := range extra {
		maps.Copy(all, f)
	}
	return all
}

// formatFields renders fields as sorted key=value pairs
func formatFields(fields Fields) string {
	keys := slices.Sorted(maps.Keys(fields))
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, fields[k])
	}
	return b.String()
}

var globalLogger Logger = NewDefaultLogger()

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger Logger) {
	if logger == nil {
		globalLogger = &NoOpLogger{}
	} else {
		globalLogger = logger
	}
}

// GetGlobalLogger returns the current global logger
func GetGlobalLogger() Logger {
	return globalLogger
}

// SlogAdapter forwards to a *slog.Logger so applications already built on
// log/slog can receive this module's logs.
//
//	logging.SetGlobalLogger(logging.FromSlog(slog.Default()))
type SlogAdapter struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// FromSlog wraps l. A nil l selects slog.Default().
func FromSlog(l *slog.Logger) *SlogAdapter {
	if l == nil {
		l = slog.Default()
	}
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelDebug)
	return &SlogAdapter{logger: l, level: lv}
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (a *SlogAdapter) log(level Level, err error, msg string, fields ...Fields) {
	sl := toSlogLevel(level)
	if sl < a.level.Level() {
		return
	}
	all := mergeFields(nil, fields...)
	args := make([]any, 0, 2*len(all)+2)
	for _, k := range slices.Sorted(maps.Keys(all)) {
		args = append(args, k, all[k])
	}
	if err != nil {
		args = append(args, "error", err)
	}
	a.logger.Log(context.Background(), sl, msg, args...)
}

func (a *SlogAdapter) Debug(msg string, fields ...Fields) { a.log(DebugLevel, nil, msg, fields...) }
func (a *SlogAdapter) Info(msg string, fields ...Fields)  { a.log(InfoLevel, nil, msg, fields...) }
func (a *SlogAdapter) Warn(msg string, fields ...Fields)  { a.log(WarnLevel, nil, msg, fields...) }

func (a *SlogAdapter) Error(err error, msg string, fields ...Fields) {
	a.log(ErrorLevel, err, msg, fields...)
}

// Fatal logs at error level; exiting is left to the application
func (a *SlogAdapter) Fatal(err error, msg string, fields ...Fields) {
	a.log(FatalLevel, err, "FATAL: "+msg, fields...)
}

func (a *SlogAdapter) WithFields(fields Fields) Logger {
	args := make([]any, 0, 2*len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, k, fields[k])
	}
	return &SlogAdapter{logger: a.logger.With(args...), level: a.level}
}

func (a *SlogAdapter) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return a.WithFields(fields)
	}
	return a
}

func (a *SlogAdapter) SetLevel(level Level) {
	a.level.Set(toSlogLevel(level))
}

// Package-level logging functions that use the global logger
func Debug(msg string, fields ...Fields) {
	globalLogger.Debug(msg, fields...)
}

func Info(msg string, fields ...Fields) {
	globalLogger.Info(msg, fields...)
}

func Warn(msg string, fields ...Fields) {
	globalLogger.Warn(msg, fields...)
}

func Error(err error, msg string, fields ...Fields) {
	globalLogger.Error(err, msg, fields...)
}

func Fatal(err error, msg string, fields ...Fields) {
	globalLogger.Fatal(err, msg, fields...)
}

func WithFields(fields Fields) Logger {
	return globalLogger.WithFields(fields)
}

func WithContext(ctx context.Context) Logger {
	return globalLogger.WithContext(ctx)
}

func SetLevel(level Level) {
	globalLogger.SetLevel(level)
}

// DisableColors globally disables color output for the default logger
func DisableColors() {
	if defaultLogger, ok := globalLogger.(*DefaultLogger); ok {
		defaultLogger.useColors = false
	}
}

// EnableColors globally enables color output for the default logger
func EnableColors() {
	if defaultLogger, ok := globalLogger.(*DefaultLogger); ok {
		defaultLogger.useColors = true
	}
}
