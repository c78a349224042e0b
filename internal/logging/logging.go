package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	// DebugLevel for debug messages
	DebugLevel LogLevel = "debug"
	// InfoLevel for informational messages
	InfoLevel LogLevel = "info"
	// WarnLevel for warning messages
	WarnLevel LogLevel = "warn"
	// ErrorLevel for error messages
	ErrorLevel LogLevel = "error"
)

var logLevelPriority = map[LogLevel]int{
	DebugLevel: 0,
	InfoLevel:  1,
	WarnLevel:  2,
	ErrorLevel: 3,
}

// Format represents the output format for logs
type Format string

const (
	// JSONFormat outputs logs as JSON
	JSONFormat Format = "json"
	// HumanFormat outputs logs in human-readable format
	HumanFormat Format = "human"
)

// Config holds logger configuration
type Config struct {
	Format Format
	Level  LogLevel
	// ModuleLevels overrides Level per module name (see ParseEnvSpec)
	ModuleLevels map[string]LogLevel
	Output       io.Writer // Optional, defaults to stderr
}

// Logger provides structured logging
type Logger struct {
	config Config
	writer io.Writer
	module string
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config Config) *Logger {
	writer := config.Output
	if writer == nil {
		writer = os.Stderr
	}

	return &Logger{
		config: config,
		writer: writer,
	}
}

// NewFromEnv creates a logger configured from the DRIFT_LOG environment
// variable. An empty or unset variable yields an info-level human logger.
func NewFromEnv() *Logger {
	base, modules := ParseEnvSpec(os.Getenv("DRIFT_LOG"))
	return NewLogger(Config{
		Format:       HumanFormat,
		Level:        base,
		ModuleLevels: modules,
	})
}

// ParseEnvSpec parses a DRIFT_LOG value of the form "module=level,..." where
// a bare "level" entry sets the base level. Unknown levels are ignored.
func ParseEnvSpec(spec string) (LogLevel, map[string]LogLevel) {
	base := InfoLevel
	modules := map[string]LogLevel{}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, level, ok := strings.Cut(part, "="); ok {
			if _, known := logLevelPriority[LogLevel(level)]; known {
				modules[strings.TrimSpace(name)] = LogLevel(level)
			}
			continue
		}
		if _, known := logLevelPriority[LogLevel(part)]; known {
			base = LogLevel(part)
		}
	}

	return base, modules
}

// Module returns a logger scoped to the given module name. Module-level
// overrides from DRIFT_LOG apply to the scoped logger only.
func (l *Logger) Module(name string) *Logger {
	scoped := *l
	scoped.module = name
	return &scoped
}

// logEntry represents a single log entry
type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Module    string                 `json:"module,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) shouldLog(level LogLevel) bool {
	threshold := l.config.Level
	if l.module != "" {
		if override, ok := l.config.ModuleLevels[l.module]; ok {
			threshold = override
		}
	}
	return logLevelPriority[level] >= logLevelPriority[threshold]
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !l.shouldLog(level) {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Module:    l.module,
		Message:   message,
		Fields:    fields,
	}

	if l.config.Format == JSONFormat {
		l.logJSON(entry)
	} else {
		l.logHuman(entry)
	}
}

func (l *Logger) logJSON(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to marshal log entry: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(l.writer, string(data))
}

func (l *Logger) logHuman(entry logEntry) {
	levelStr := fmt.Sprintf("[%s]", entry.Level)
	if entry.Module != "" {
		levelStr += " " + entry.Module
	}
	_, _ = fmt.Fprintf(l.writer, "%s %s %s", entry.Timestamp, levelStr, entry.Message)

	if len(entry.Fields) > 0 {
		_, _ = fmt.Fprintf(l.writer, " | ")
		first := true
		for k, v := range entry.Fields {
			if !first {
				_, _ = fmt.Fprintf(l.writer, ", ")
			}
			_, _ = fmt.Fprintf(l.writer, "%s=%v", k, v)
			first = false
		}
	}
	_, _ = fmt.Fprintln(l.writer)
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DebugLevel, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(InfoLevel, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WarnLevel, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ErrorLevel, message, fields)
}
