package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging for the engine
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level   LogLevel
	Output  io.Writer
	Format  string // "text" or "json"
	LogFile string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stdout)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stdout, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stdout,
		Format: "text",
	})
	return logger
}

// WithFields returns an entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns an entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// Info logs an informational message
func (l *Logger) Info(args ...interface{}) { l.logger.Info(args...) }

// Infof logs a formatted informational message
func (l *Logger) Infof(format string, args ...interface{}) { l.logger.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(args ...interface{}) { l.logger.Warn(args...) }

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(args ...interface{}) { l.logger.Error(args...) }

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }

// Debug logs a debug message
func (l *Logger) Debug(args ...interface{}) { l.logger.Debug(args...) }

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }

// GetLevel returns the configured log level
func (l *Logger) GetLevel() LogLevel { return l.level }

// SetOutput redirects logger output
func (l *Logger) SetOutput(w io.Writer) { l.logger.SetOutput(w) }

// LogTableRead records the outcome of reading one table
func (l *Logger) LogTableRead(table string, rows int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"table":       table,
		"rows":        rows,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		l.WithFields(fields).WithField("error", err.Error()).
			Warn("Table read failed, returning partial result")
		return
	}
	l.WithFields(fields).Debug("Table read complete")
}

// LogJobTransition records a job lifecycle transition
func (l *Logger) LogJobTransition(jobID, from, to string) {
	l.WithFields(map[string]interface{}{
		"job_id": jobID,
		"from":   from,
		"to":     to,
	}).Info("Job state transition")
}

// LogStorageOperation records a blob storage read or write
func (l *Logger) LogStorageOperation(op, path string, size int64, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"operation":   op,
		"path":        path,
		"size_bytes":  size,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		l.WithFields(fields).WithField("error", err.Error()).Error("Storage operation failed")
		return
	}
	l.WithFields(fields).Info("Storage operation complete")
}
