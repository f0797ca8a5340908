package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// ErrorType represents different categories of engine errors
type ErrorType string

const (
	// ErrorTypeUnauthorized represents access-control rejections
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeNotFound represents missing tenants, jobs, or files
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInvalidState represents operations against records in the wrong lifecycle state
	ErrorTypeInvalidState ErrorType = "invalid_state"
	// ErrorTypeStorage represents blob storage read/write failures (fatal for the job)
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypePartialTable represents a single table's read/write failure (non-fatal)
	ErrorTypePartialTable ErrorType = "partial_table"
	// ErrorTypeDatabase represents relational store failures
	ErrorTypeDatabase ErrorType = "database"
	// ErrorTypeValidation represents invalid caller input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeConnection represents database connection errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeInterruption represents context cancellation
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeUnknown represents unclassified errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// EngineError represents an engine-specific error with context
type EngineError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns whether the error is worth retrying
func (e *EngineError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new engine error
func New(errorType ErrorType, message string, cause error) *EngineError {
	return &EngineError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverable creates a new recoverable engine error
func NewRecoverable(errorType ErrorType, message string, cause error) *EngineError {
	err := New(errorType, message, cause)
	err.Recoverable = true
	return err
}

// NewUnauthorized creates an access-control rejection error
func NewUnauthorized(message string) *EngineError {
	return New(ErrorTypeUnauthorized, message, nil)
}

// NewNotFound creates a missing-entity error
func NewNotFound(message string, cause error) *EngineError {
	return New(ErrorTypeNotFound, message, cause)
}

// NewInvalidState creates a lifecycle-state error
func NewInvalidState(message string) *EngineError {
	return New(ErrorTypeInvalidState, message, nil)
}

// NewStorageError creates a blob storage error
func NewStorageError(message string, cause error) *EngineError {
	return New(ErrorTypeStorage, message, cause)
}

// NewPartialTableError creates a per-table failure error. These are logged
// and recovered locally; jobs continue with the remaining tables.
func NewPartialTableError(table string, cause error) *EngineError {
	return New(ErrorTypePartialTable, fmt.Sprintf("table %s failed", table), cause).
		WithContext("table", table)
}

// NewDatabaseError creates a relational store error
func NewDatabaseError(message string, cause error) *EngineError {
	return New(ErrorTypeDatabase, message, cause)
}

// NewValidationError creates an invalid-input error
func NewValidationError(message string, cause error) *EngineError {
	return New(ErrorTypeValidation, message, cause)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string, cause error) *EngineError {
	return New(ErrorTypeConfiguration, message, cause)
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown for foreign errors
func TypeOf(err error) ErrorType {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Type
	}
	return ErrorTypeUnknown
}

// IsUnauthorized reports whether err is an access-control rejection
func IsUnauthorized(err error) bool { return TypeOf(err) == ErrorTypeUnauthorized }

// IsNotFound reports whether err is a missing-entity error
func IsNotFound(err error) bool { return TypeOf(err) == ErrorTypeNotFound }

// IsInvalidState reports whether err is a lifecycle-state error
func IsInvalidState(err error) bool { return TypeOf(err) == ErrorTypeInvalidState }

// IsStorageFailure reports whether err is a blob storage failure
func IsStorageFailure(err error) bool { return TypeOf(err) == ErrorTypeStorage }

// Classifier analyzes foreign errors and maps them onto the engine taxonomy
type Classifier struct{}

// NewClassifier creates a new error classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify analyzes an error and returns an EngineError with appropriate classification
func (c *Classifier) Classify(err error) *EngineError {
	if err == nil {
		return nil
	}

	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr
	}

	if mysqlErr := c.classifyMySQLError(err); mysqlErr != nil {
		return mysqlErr
	}
	if netErr := c.classifyNetworkError(err); netErr != nil {
		return netErr
	}
	if ctxErr := c.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	return New(ErrorTypeUnknown, "an unexpected error occurred", err)
}

func (c *Classifier) classifyMySQLError(err error) *EngineError {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1045: // access denied
			return New(ErrorTypeUnauthorized, "database access denied", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1146: // table doesn't exist
			return New(ErrorTypeDatabase, "table does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 1054: // unknown column
			return New(ErrorTypeDatabase, "column does not exist", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2003: // can't connect
			return NewRecoverable(ErrorTypeConnection,
				"cannot connect to database server", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		case 2006: // server has gone away
			return NewRecoverable(ErrorTypeConnection,
				"database server connection lost", err).
				WithContext("mysql_error_code", mysqlErr.Number)
		default:
			return New(ErrorTypeDatabase,
				fmt.Sprintf("database error: %s", mysqlErr.Message), err).
				WithContext("mysql_error_code", mysqlErr.Number)
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(ErrorTypeNotFound, "no rows found", err)
	}
	return nil
}

func (c *Classifier) classifyNetworkError(err error) *EngineError {
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewRecoverable(ErrorTypeConnection, "network operation timed out", err)
		}
		return NewRecoverable(ErrorTypeConnection, "network error", err)
	}
	return nil
}

func (c *Classifier) classifyContextError(err error) *EngineError {
	if errors.Is(err, context.Canceled) {
		return New(ErrorTypeInterruption, "operation canceled", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverable(ErrorTypeInterruption, "operation deadline exceeded", err)
	}
	return nil
}

// RetryConfig holds configuration for retry operations
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryHandler provides retry functionality for recoverable operations
type RetryHandler struct {
	config     RetryConfig
	classifier *Classifier
}

// NewRetryHandler creates a new retry handler
func NewRetryHandler(config RetryConfig) *RetryHandler {
	return &RetryHandler{
		config:     config,
		classifier: NewClassifier(),
	}
}

// NewDefaultRetryHandler creates a retry handler with default configuration
func NewDefaultRetryHandler() *RetryHandler {
	return NewRetryHandler(DefaultRetryConfig())
}

// Retry executes operation, retrying recoverable failures with exponential backoff
func (rh *RetryHandler) Retry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 1; attempt <= rh.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return New(ErrorTypeInterruption, "operation canceled", ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err
		engErr := rh.classifier.Classify(err)
		if !engErr.IsRecoverable() {
			return engErr
		}
		if attempt == rh.config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return New(ErrorTypeInterruption, "operation canceled during retry", ctx.Err())
		case <-time.After(rh.calculateDelay(attempt)):
		}
	}

	return rh.classifier.Classify(lastErr).
		WithContext("attempts", rh.config.MaxAttempts)
}

func (rh *RetryHandler) calculateDelay(attempt int) time.Duration {
	delay := rh.config.BaseDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * rh.config.Multiplier)
		if delay > rh.config.MaxDelay {
			return rh.config.MaxDelay
		}
	}
	return delay
}

// WrapError wraps an error with additional message context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CreateContextWithTimeout creates a context with the given timeout
func CreateContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}
