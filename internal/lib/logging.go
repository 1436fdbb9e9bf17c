package lib

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// LogLevel defines the severity of log messages
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Logger provides structured logging for the application
type Logger struct {
	level  *slog.LevelVar
	logger *slog.Logger
}

// NewLogger creates a new logger instance writing JSON lines to stderr
func NewLogger(level LogLevel) *Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo creates a logger writing JSON lines to w
func NewLoggerTo(w io.Writer, level LogLevel) *Logger {
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lv})
	return &Logger{
		level:  lv,
		logger: slog.New(handler),
	}
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields ...any) {
	l.logger.Debug(message, fields...)
}

// Info logs an informational message
func (l *Logger) Info(message string, fields ...any) {
	l.logger.Info(message, fields...)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields ...any) {
	l.logger.Warn(message, fields...)
}

// Error logs an error message
func (l *Logger) Error(message string, fields ...any) {
	l.logger.Error(message, fields...)
}

// With returns a logger that adds fields to every message
func (l *Logger) With(fields ...any) *Logger {
	return &Logger{
		level:  l.level,
		logger: l.logger.With(fields...),
	}
}

// Enabled reports whether messages at level are written
func (l *Logger) Enabled(level LogLevel) bool {
	return l.logger.Enabled(context.Background(), level.slogLevel())
}

// LogOperation logs the start and completion of an operation
func LogOperation(logger *Logger, operation string, fn func() error) error {
	logger.Debug(fmt.Sprintf("Starting: %s", operation))
	start := time.Now()

	err := fn()

	duration := time.Since(start)
	if err != nil {
		logger.Error(fmt.Sprintf("Failed: %s", operation), "duration", duration, "error", err)
		return err
	}

	logger.Info(fmt.Sprintf("Completed: %s", operation), "duration", duration)
	return nil
}

// LogRetry logs retry attempts
func LogRetry(logger *Logger, operation string, attempt int, maxAttempts int, err error) {
	// Remove line breaks from operation to prevent log spoofing
	safeOperation := strings.ReplaceAll(operation, "\n", "")
	safeOperation = strings.ReplaceAll(safeOperation, "\r", "")
	logger.Warn(
		fmt.Sprintf("Retry attempt %d/%d for: %s", attempt+1, maxAttempts, safeOperation),
		"error", err,
	)
}

// LogJobCreated logs job creation
func LogJobCreated(logger *Logger, jobID string, jobType string, layerName string) {
	logger.Info(
		"Job created",
		"job_id", jobID,
		"job_type", jobType,
		"layer", layerName,
	)
}

// LogRetryDecision logs which reset a retry performed
func LogRetryDecision(logger *Logger, jobID string, taskID string, mode string, added int) {
	logger.Info(
		"Job retry accepted",
		"job_id", jobID,
		"task_id", taskID,
		"mode", mode,
		"new_checksums", added,
	)
}

// LogValidationFailed logs a rejected source set
func LogValidationFailed(logger *Logger, files int, err error) {
	logger.Warn(
		"Source validation failed",
		"files", files,
		"error", err,
	)
}

// LogServiceCall logs HTTP service calls
func LogServiceCall(logger *Logger, service string, endpoint string, method string) {
	logger.Debug(
		"Service call",
		"service", service,
		"endpoint", endpoint,
		"method", method,
	)
}

// LogServiceResponse logs HTTP service responses
func LogServiceResponse(logger *Logger, service string, statusCode int, duration time.Duration) {
	if statusCode >= 400 {
		logger.Warn(
			"Service response",
			"service", service,
			"status", statusCode,
			"duration", duration,
		)
	} else {
		logger.Debug(
			"Service response",
			"service", service,
			"status", statusCode,
			"duration", duration,
		)
	}
}

// SetLevel changes the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level.Set(level.slogLevel())
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel converts a string to LogLevel
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(levelStr) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}
