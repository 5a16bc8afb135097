// Package logging provides leveled console logging for the plugin context
// layer. Output is one line per entry:
//
//	LEVEL TIMESTAMP [component] message key=value ...
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a case-insensitive level name. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[l]; ok {
		return l
	}
	return LevelInfo
}

// Fields are structured key/value pairs attached to an entry.
type Fields map[string]any

// sink is shared by a logger and all loggers derived from it.
type sink struct {
	mu       sync.Mutex
	output   io.Writer
	minLevel Level
}

// Logger writes leveled entries to a shared sink.
type Logger struct {
	sink      *sink
	component string
	pluginID  string
}

// New creates a Logger writing INFO and above to stdout.
func New() *Logger {
	return &Logger{sink: &sink{output: os.Stdout, minLevel: LevelInfo}}
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{sink: &sink{output: io.Discard, minLevel: LevelError}}
}

// WithComponent returns a logger tagged with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{sink: l.sink, component: component, pluginID: l.pluginID}
}

// WithPluginID returns a logger that adds plugin=<id> to every entry.
func (l *Logger) WithPluginID(id string) *Logger {
	return &Logger{sink: l.sink, component: l.component, pluginID: id}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.minLevel = level
	l.sink.mu.Unlock()
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.output = w
	l.sink.mu.Unlock()
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...Fields) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...Fields) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...Fields) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...Fields) {
	l.log(LevelError, msg, fields...)
}

// formatFields renders fields as key=value pairs sorted by key.
func formatFields(fields Fields) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) log(level Level, msg string, fields ...Fields) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if levelPriority[level] < levelPriority[l.sink.minLevel] {
		return
	}

	merged := Fields{}
	if l.pluginID != "" {
		merged["plugin"] = l.pluginID
	}
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	fieldStr := formatFields(merged)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}
	l.sink.output.Write([]byte(line))
}

// --- Boundary events ---

// AccessDenied logs a settings operation rejected by the namespace check.
func (l *Logger) AccessDenied(op, key, qualifiedKey string, err error) {
	l.Warn("access_denied", Fields{
		"op":            op,
		"key":           key,
		"qualified_key": qualifiedKey,
		"error":         err,
	})
}

// ListenerPanic logs a recovered panic from a plugin callback.
func (l *Logger) ListenerPanic(kind string, recovered any) {
	l.Error("listener_panic", Fields{
		"listener": kind,
		"panic":    recovered,
	})
}

// ShutdownComplete logs the outcome of a shutdown sequence.
func (l *Logger) ShutdownComplete(duration time.Duration, callbacks, abandoned int) {
	fields := Fields{
		"duration":  duration.String(),
		"callbacks": callbacks,
		"abandoned": abandoned,
	}
	if abandoned > 0 {
		l.Warn("shutdown_complete", fields)
		return
	}
	l.Info("shutdown_complete", fields)
}
