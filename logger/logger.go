// Package logger provides a thread-safe, levelled logger backed by the
// standard library's log package, plus single-line structured events for
// the relay's request trail.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a logging verbosity level.
type Level int

const (
	// LevelDebug emits all messages.
	LevelDebug Level = iota
	// LevelInfo emits INFO and ERROR messages.
	LevelInfo
	// LevelError emits only ERROR messages.
	LevelError
)

// EventPrefix starts every structured event line.
const EventPrefix = "[heytea-proxy]"

// ParseLevel maps "debug", "info" and "error" (any case) to a Level. Unknown
// names fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries the payload of a structured event.
type Fields map[string]any

// Logger is a levelled logger.
//
// log.Logger serialises writes to the underlying io.Writer with its own
// mutex; the extra RWMutex only guards the level field.
type Logger struct {
	infoLog  *log.Logger
	errorLog *log.Logger
	debugLog *log.Logger
	eventLog *log.Logger
	mu       sync.RWMutex
	level    Level
}

// New creates a Logger that writes to stderr at the given minimum level.
func New(level Level) *Logger {
	return NewWithWriter(os.Stderr, level)
}

// NewWithWriter creates a Logger writing to w. Tests use it to capture
// output.
func NewWithWriter(w io.Writer, level Level) *Logger {
	flags := log.Ldate | log.Ltime | log.Lmicroseconds
	return &Logger{
		infoLog:  log.New(w, "INFO  ", flags),
		errorLog: log.New(w, "ERROR ", flags),
		debugLog: log.New(w, "DEBUG ", flags),
		eventLog: log.New(w, "", 0),
		level:    level,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, LevelError)
}

// SetLevel changes the minimum log level at runtime.  Safe for concurrent use.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) enabled(level Level) bool {
	l.mu.RLock()
	lvl := l.level
	l.mu.RUnlock()
	return lvl <= level
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string) {
	if l.enabled(LevelInfo) {
		l.infoLog.Output(2, msg) //nolint:errcheck
	}
}

// Infof logs a formatted message at INFO level.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// Error logs a message at ERROR level.
func (l *Logger) Error(msg string) {
	if l.enabled(LevelError) {
		l.errorLog.Output(2, msg) //nolint:errcheck
	}
}

// Errorf logs a formatted message at ERROR level.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string) {
	if l.enabled(LevelDebug) {
		l.debugLog.Output(2, msg) //nolint:errcheck
	}
}

// Debugf logs a formatted message at DEBUG level.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.Debug(fmt.Sprintf(format, args...))
}

// Event writes one structured line at INFO level:
//
//	[heytea-proxy] 2025-01-02T03:04:05.678Z sms.send.request {"maskedMobile":"138****5678"}
//
// Callers are responsible for masking personal data before it reaches
// fields; Event never inspects values.
func (l *Logger) Event(event string, fields Fields) {
	if !l.enabled(LevelInfo) {
		return
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", fmt.Sprint(fields)))
	}
	ts := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	l.eventLog.Printf("%s %s %s %s", EventPrefix, ts, event, payload)
}
