package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrick/logrotate/rotator"
)

// Level represents a logging level
type Level int

const (
	// LevelDebug is the most verbose logging level
	LevelDebug Level = iota
	// LevelInfo logs informational messages
	LevelInfo
	// LevelWarn logs warnings
	LevelWarn
	// LevelError logs errors
	LevelError
	// LevelNone disables all logging
	LevelNone
)

// Log rotation defaults
const (
	DefaultRotateThresholdKB = 10 * 1024
	DefaultMaxRolls          = 3
)

// String returns string representation of log level
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
	case LevelNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a string into a Level
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "none", "NONE":
		return LevelNone
	default:
		return LevelInfo
	}
}

// Options configures a Logger.
type Options struct {
	Level  Level
	Prefix string

	// Path of the log file; empty disables file output.
	Path string

	// Console mirrors every line to stderr.
	Console bool

	// RotateThresholdKB is the file size that triggers a rotation.
	RotateThresholdKB int64

	// MaxRolls is the number of rotated files kept.
	MaxRolls int
}

// Logger provides leveled logging. Loggers derived with WithPrefix share the
// level and output of their parent.
type Logger struct {
	level   *atomic.Int32
	logger  *log.Logger
	prefix  string
	rotator *rotator.Rotator
	closed  *atomic.Bool
}

var (
	globalLogger *Logger
	globalMu     sync.RWMutex
)

// Init initializes the global logger. Calling it again replaces the
// previous global logger and closes it.
func Init(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}

	globalMu.Lock()
	previous := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if previous != nil {
		_ = previous.Close()
	}
	return nil
}

// New creates a new Logger instance
func New(opts Options) (*Logger, error) {
	l := &Logger{
		level:  new(atomic.Int32),
		prefix: opts.Prefix,
		closed: new(atomic.Bool),
	}
	l.level.Store(int32(opts.Level))

	var writers []io.Writer
	if opts.Console {
		writers = append(writers, os.Stderr)
	}

	if opts.Level != LevelNone && opts.Path != "" {
		// Ensure log directory exists
		logDir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		threshold := opts.RotateThresholdKB
		if threshold <= 0 {
			threshold = DefaultRotateThresholdKB
		}
		maxRolls := opts.MaxRolls
		if maxRolls <= 0 {
			maxRolls = DefaultMaxRolls
		}

		r, err := rotator.New(opts.Path, threshold, false, maxRolls)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.rotator = r
		writers = append(writers, r)
	}

	if len(writers) == 0 {
		l.logger = log.New(io.Discard, "", 0)
	} else {
		l.logger = log.New(io.MultiWriter(writers...), "", 0)
	}

	return l, nil
}

// Global returns the global logger instance
func Global() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		// Not initialized yet: swallow everything
		globalLogger, _ = New(Options{Level: LevelNone})
	}
	return globalLogger
}

// WithPrefix creates a new logger with an additional prefix
func (l *Logger) WithPrefix(prefix string) *Logger {
	newPrefix := prefix
	if l.prefix != "" {
		newPrefix = l.prefix + ":" + prefix
	}

	return &Logger{
		level:   l.level,
		logger:  l.logger,
		prefix:  newPrefix,
		rotator: l.rotator,
		closed:  l.closed,
	}
}

// SetLevel sets the logging level of this logger and every logger sharing it
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// log is the internal logging function
func (l *Logger) log(level Level, format string, args ...interface{}) {
	current := l.GetLevel()
	if current == LevelNone || level < current || l.closed.Load() {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	msg := fmt.Sprintf(format, args...)

	prefix := l.prefix
	if prefix != "" {
		prefix = "[" + prefix + "] "
	}

	l.logger.Printf("%s [%s] %s%s", timestamp, level.String(), prefix, msg)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Close flushes and closes the log file. Derived loggers stop writing too.
func (l *Logger) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// Global logging functions for convenience

// Debug logs a debug message using the global logger
func Debug(format string, args ...interface{}) {
	Global().Debug(format, args...)
}

// Info logs an informational message using the global logger
func Info(format string, args ...interface{}) {
	Global().Info(format, args...)
}

// Warn logs a warning message using the global logger
func Warn(format string, args ...interface{}) {
	Global().Warn(format, args...)
}

// Error logs an error message using the global logger
func Error(format string, args ...interface{}) {
	Global().Error(format, args...)
}
