// Package logger is the structured sink every pipeline component writes to.
// Entries are JSON lines unless console rendering is requested.
package logger

import (
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ComponentKey is the field naming the subsystem that wrote an entry.
const ComponentKey = "component"

// Options configures New.
type Options struct {
	// Level is a zerolog level name. Empty means info.
	Level         string
	HumanReadable bool
	// Writer defaults to stderr.
	Writer    io.Writer
	Component string
}

// Logger is nil-safe: every method on a nil *Logger does nothing.
type Logger struct {
	zl zerolog.Logger
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}
	if opts.HumanReadable {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	zctx := zerolog.New(out).Level(level).With().Timestamp()
	if opts.Component != "" {
		zctx = zctx.Str(ComponentKey, opts.Component)
	}
	return &Logger{zl: zctx.Logger()}, nil
}

// ParseLevel accepts zerolog level names in any case.
func ParseLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(name)
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// WithFields returns a child logger carrying fields. Fields are written in
// key order.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	if l == nil || len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	zctx := l.zl.With()
	for _, key := range keys {
		zctx = zctx.Interface(key, fields[key])
	}
	return &Logger{zl: zctx.Logger()}
}

// With returns a child logger carrying one field.
func (l *Logger) With(key string, value any) *Logger {
	return l.WithFields(map[string]any{key: value})
}

func (l *Logger) Debug(msg string) { l.write(zerolog.DebugLevel, nil, msg) }
func (l *Logger) Info(msg string)  { l.write(zerolog.InfoLevel, nil, msg) }
func (l *Logger) Warn(msg string)  { l.write(zerolog.WarnLevel, nil, msg) }

// WarnErr records a failure the caller recovered from, such as a skipped
// plug-in or a failed event handler.
func (l *Logger) WarnErr(err error, msg string) { l.write(zerolog.WarnLevel, err, msg) }

func (l *Logger) Error(err error, msg string) { l.write(zerolog.ErrorLevel, err, msg) }

func (l *Logger) write(level zerolog.Level, err error, msg string) {
	if l == nil {
		return
	}
	event := l.zl.WithLevel(level)
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}
