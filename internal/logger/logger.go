// Package logger writes the run journal: a leveled, line-oriented record of
// what a run did, with key=value fields. It complements the terminal
// reporter, which is meant for people watching the run.
package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off":
		return LevelSilent, nil
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}

// Logger provides structured logging with configurable levels
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

// F is a convenience function for creating fields
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// sink is shared by a logger and everything derived from it.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	now   func() time.Time
	level Level
}

type standardLogger struct {
	sink   *sink
	fields []Field
}

// New creates a logger writing entries at or above level to out.
func New(level Level, out io.Writer) Logger {
	return newLogger(level, out, time.Now)
}

func newLogger(level Level, out io.Writer, now func() time.Time) *standardLogger {
	if out == nil {
		out = io.Discard
	}
	return &standardLogger{sink: &sink{out: out, now: now, level: level}}
}

// Nop returns a logger that writes nothing.
func Nop() Logger {
	return New(LevelSilent, io.Discard)
}

// WithFields returns a logger that adds fields to every entry
func (l *standardLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &standardLogger{sink: l.sink, fields: merged}
}

func (l *standardLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields) }

func (l *standardLogger) Info(msg string, fields ...Field) { l.log(LevelInfo, msg, fields) }

func (l *standardLogger) Warn(msg string, fields ...Field) { l.log(LevelWarn, msg, fields) }

func (l *standardLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields) }

func (l *standardLogger) log(level Level, msg string, fields []Field) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level || s.level == LevelSilent {
		return
	}

	var b strings.Builder
	b.WriteString(s.now().UTC().Format(time.RFC3339))
	b.WriteString(" ")
	fmt.Fprintf(&b, "%-5s", level.String())
	b.WriteString(" ")
	b.WriteString(msg)

	if len(l.fields)+len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range l.fields {
			writeField(&b, f)
		}
		for _, f := range fields {
			writeField(&b, f)
		}
	}
	b.WriteString("\n")

	_, _ = io.WriteString(s.out, b.String())
}

func writeField(b *strings.Builder, f Field) {
	v := fmt.Sprint(f.Value)
	if v == "" || strings.ContainsAny(v, " \t\n\"=") {
		v = fmt.Sprintf("%q", v)
	}
	fmt.Fprintf(b, " %s=%s", f.Key, v)
}
