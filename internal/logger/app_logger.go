// internal/logger/app_logger.go

package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/orgoj/logchannel/internal/config"
)

// LogLevel defines the available logging levels
type LogLevel int

const (
	// Log levels
	TRACE LogLevel = 10
	DEBUG LogLevel = 20
	INFO  LogLevel = 30
	WARN  LogLevel = 40
	ERROR LogLevel = 50
	FATAL LogLevel = 60
)

// LogLevelNameToLevel maps string level names to level values
var LogLevelNameToLevel = map[string]LogLevel{
	"TRACE": TRACE,
	"DEBUG": DEBUG,
	"INFO":  INFO,
	"WARN":  WARN,
	"ERROR": ERROR,
	"FATAL": FATAL,
}

var logrusLevels = map[LogLevel]logrus.Level{
	TRACE: logrus.TraceLevel,
	DEBUG: logrus.DebugLevel,
	INFO:  logrus.InfoLevel,
	WARN:  logrus.WarnLevel,
	ERROR: logrus.ErrorLevel,
	FATAL: logrus.FatalLevel,
}

// AppLogger is the process logger. It keeps printf-style level methods on
// top of a logrus logger, which is also handed to the channel and resolver
// packages through FieldLogger.
type AppLogger struct {
	mu         sync.Mutex
	log        *logrus.Logger
	level      LogLevel
	showHealth bool
	output     io.Closer // non-nil when writing to a rotated file
}

// Global instance
var (
	defaultLogger *AppLogger
	once          sync.Once
)

// GetAppLogger returns the singleton instance of the application logger
func GetAppLogger() *AppLogger {
	once.Do(func() {
		defaultLogger = NewAppLogger(os.Stdout)
	})
	return defaultLogger
}

// NewAppLogger creates a logger writing to w at WARN level.
func NewAppLogger(w io.Writer) *AppLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
	l.SetLevel(logrus.WarnLevel)
	return &AppLogger{log: l, level: WARN}
}

// FieldLogger exposes the backing logrus logger for structured logging.
func (l *AppLogger) FieldLogger() logrus.FieldLogger {
	return l.log
}

// SetLogLevel sets the minimum log level
func (l *AppLogger) SetLogLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.log.SetLevel(logrusLevels[level])
}

// SetLogLevelFromString sets the log level from a string name
func (l *AppLogger) SetLogLevelFromString(levelName string) error {
	levelName = strings.ToUpper(levelName)
	level, ok := LogLevelNameToLevel[levelName]
	if !ok {
		return fmt.Errorf("invalid log level: %s", levelName)
	}
	l.SetLogLevel(level)
	return nil
}

// SetShowHealth configures whether health check logs should be shown
func (l *AppLogger) SetShowHealth(show bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.showHealth = show
}

// IsHealthLoggingEnabled returns whether health check logs are enabled
func (l *AppLogger) IsHealthLoggingEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.showHealth
}

// SetOutput redirects log output. A previously opened log file is closed.
func (l *AppLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closeOutputLocked()
	l.log.SetOutput(w)
	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		l.output = c
	}
}

// Configure applies the app_log section: level, health logging and an
// optional rotated log file.
func (l *AppLogger) Configure(cfg config.AppLogConfig) error {
	if err := l.SetLogLevelFromString(cfg.Level); err != nil {
		return err
	}
	l.SetShowHealth(cfg.ShowHealthLogs)

	if cfg.File == "" {
		return nil
	}
	writer, err := newRotatingWriter(cfg.File, cfg.Rotation)
	if err != nil {
		return err
	}
	l.SetOutput(writer)
	return nil
}

// Close closes the log file, if any. Output falls back to stdout.
func (l *AppLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.closeOutputLocked()
	l.log.SetOutput(os.Stdout)
	return err
}

func (l *AppLogger) closeOutputLocked() error {
	if l.output == nil {
		return nil
	}
	err := l.output.Close()
	l.output = nil
	return err
}

// newRotatingWriter builds a lumberjack writer. max_size is in MB unless it
// carries a unit; max_age is rounded up to whole days.
func newRotatingWriter(path string, rotation config.LogRotation) (*lumberjack.Logger, error) {
	var maxSizeMB, maxAgeDays int

	if rotation.MaxSize != "" {
		mb, err := strconv.Atoi(rotation.MaxSize)
		if err != nil {
			sizeBytes, err := config.ParseSize(rotation.MaxSize)
			if err != nil {
				return nil, fmt.Errorf("invalid rotation.max_size '%s': %w", rotation.MaxSize, err)
			}
			mb = int(sizeBytes / (1024 * 1024))
			if sizeBytes > 0 && mb == 0 {
				// lumberjack works in whole megabytes
				mb = 1
			}
		}
		if mb > 0 {
			maxSizeMB = mb
		}
	}

	if rotation.MaxAge != "" {
		age, err := config.ParseDuration(rotation.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid rotation.max_age '%s': %w", rotation.MaxAge, err)
		}
		maxAgeDays = int(age.Hours() / 24)
		if maxAgeDays == 0 {
			maxAgeDays = 1
		}
	}

	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxAge:     maxAgeDays,
		MaxBackups: rotation.MaxBackups,
		Compress:   rotation.Compress,
	}, nil
}

// logf formats and logs a message if the level is sufficient
func (l *AppLogger) logf(level LogLevel, isHealth bool, format string, args ...interface{}) {
	l.mu.Lock()
	skip := (isHealth && !l.showHealth) || level < l.level
	l.mu.Unlock()
	if skip {
		return
	}

	entry := logrus.NewEntry(l.log)
	if isHealth {
		entry = entry.WithField("health", true)
	}
	entry.Logf(logrusLevels[level], format, args...)

	if level == FATAL {
		l.log.Exit(1)
	}
}

// Trace logs a message at TRACE level
func (l *AppLogger) Trace(format string, args ...interface{}) {
	l.logf(TRACE, false, format, args...)
}

// Debug logs a message at DEBUG level
func (l *AppLogger) Debug(format string, args ...interface{}) {
	l.logf(DEBUG, false, format, args...)
}

// Info logs a message at INFO level
func (l *AppLogger) Info(format string, args ...interface{}) {
	l.logf(INFO, false, format, args...)
}

// Warn logs a message at WARN level
func (l *AppLogger) Warn(format string, args ...interface{}) {
	l.logf(WARN, false, format, args...)
}

// Error logs a message at ERROR level
func (l *AppLogger) Error(format string, args ...interface{}) {
	l.logf(ERROR, false, format, args...)
}

// Fatal logs a message at FATAL level and exits the program
func (l *AppLogger) Fatal(format string, args ...interface{}) {
	l.logf(FATAL, false, format, args...)
}

// Health logs a health check message (only shown if showHealth is true)
func (l *AppLogger) Health(format string, args ...interface{}) {
	l.logf(INFO, true, format, args...)
}
