package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level represents a log level
type Level int

const (
	// DebugLevel logs per-step detail of engine operations
	DebugLevel Level = iota
	// InfoLevel logs one summary line per operation
	InfoLevel
	// WarnLevel logs recoverable anomalies such as dangling references
	WarnLevel
	// ErrorLevel logs failed operations
	ErrorLevel
)

// String returns the string representation of a log level
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
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (case-insensitive) to a Level. Unknown
// names yield InfoLevel and an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DebugLevel, nil
	case "INFO", "":
		return InfoLevel, nil
	case "WARN", "WARNING":
		return WarnLevel, nil
	case "ERROR":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// Logger is the interface for structured logging
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Log writes at a runtime-selected level
	Log(level Level, msg string, fields ...Field)
	// With creates a child logger with the given fields pre-set
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// JSONLogger writes one JSON object per line
type JSONLogger struct {
	mu     *sync.Mutex // shared with child loggers writing to the same sink
	writer io.Writer
	level  Level
	fields []Field
}

// LogEntry represents a single log entry in JSON format
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(msg string, fields ...Field)            {}
func (NopLogger) Info(msg string, fields ...Field)             {}
func (NopLogger) Warn(msg string, fields ...Field)             {}
func (NopLogger) Error(msg string, fields ...Field)            {}
func (NopLogger) Log(level Level, msg string, fields ...Field) {}
func (n NopLogger) With(fields ...Field) Logger                { return n }
func (NopLogger) SetLevel(level Level)                         {}
func (NopLogger) GetLevel() Level                              { return ErrorLevel }

// NewNopLogger creates a logger that discards all output
func NewNopLogger() Logger {
	return NopLogger{}
}

// TimedOperation measures one engine operation
type TimedOperation struct {
	logger Logger
	op     string
	start  time.Time
	fields []Field
}
