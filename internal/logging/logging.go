package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// Level represents a log level
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
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
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level string, defaulting to info
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the application logger. It is safe for concurrent use; the
// network reader, the event loop and plugin hosts all log through it.
type Logger struct {
	level  atomic.Int32
	file   *os.File
	logger *log.Logger
	now    func() time.Time
}

// Config contains logger configuration
type Config struct {
	Level   string
	File    string
	Console bool
	// Writer receives output in addition to File and Console
	Writer io.Writer
}

// New creates a new logger
func New(cfg Config) (*Logger, error) {
	l := &Logger{now: time.Now}
	l.level.Store(int32(ParseLevel(cfg.Level)))

	var writers []io.Writer

	if cfg.File != "" {
		dir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = f
		writers = append(writers, f)
	}

	if cfg.Console {
		writers = append(writers, os.Stderr)
	}
	if cfg.Writer != nil {
		writers = append(writers, cfg.Writer)
	}

	// the TUI owns the terminal, so with no output configured logs go nowhere
	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	l.logger = log.New(writer, "", 0)

	return l, nil
}

// Writer returns the destination of the log lines, for libraries that
// format their own output
func (l *Logger) Writer() io.Writer {
	return l.logger.Writer()
}

// Close closes the logger
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.GetLevel() {
		return
	}

	timestamp := l.now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("%s [%s] %s", timestamp, level.String(), message)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an info message
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

// Printf logs at info level. Together with Fatalf it lets the logger stand
// in for libraries that expect a printf logger, such as goose.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.log(LevelInfo, strings.TrimSuffix(format, "\n"), args...)
}

// Fatalf logs at error level. It does not exit: a library failure must not
// take down the terminal session.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log(LevelError, strings.TrimSuffix(format, "\n"), args...)
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// GetLevel returns the current log level
func (l *Logger) GetLevel() Level {
	return Level(l.level.Load())
}

// Default logger for package-level functions
var defaultLogger atomic.Pointer[Logger]

// Init initializes the default logger
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}

// SetDefault replaces the default logger
func SetDefault(l *Logger) {
	defaultLogger.Store(l)
}

// Default returns the default logger, or nil before Init
func Default() *Logger {
	return defaultLogger.Load()
}

// Close closes the default logger
func Close() error {
	if l := Default(); l != nil {
		return l.Close()
	}
	return nil
}

// Debug logs a debug message to the default logger
func Debug(format string, args ...interface{}) {
	if l := Default(); l != nil {
		l.Debug(format, args...)
	}
}

// Info logs an info message to the default logger
func Info(format string, args ...interface{}) {
	if l := Default(); l != nil {
		l.Info(format, args...)
	}
}

// Warn logs a warning message to the default logger
func Warn(format string, args ...interface{}) {
	if l := Default(); l != nil {
		l.Warn(format, args...)
	}
}

// Error logs an error message to the default logger
func Error(format string, args ...interface{}) {
	if l := Default(); l != nil {
		l.Error(format, args...)
	}
}
