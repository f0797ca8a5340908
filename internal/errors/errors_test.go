package errors

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := NewInvalidState("backup job is not completed")
		assert.Equal(t, "invalid_state: backup job is not completed", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := fmt.Errorf("disk full")
		err := NewStorageError("failed to write backup object", cause)
		assert.Contains(t, err.Error(), "storage: failed to write backup object")
		assert.Contains(t, err.Error(), "disk full")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestTypePredicates(t *testing.T) {
	assert.True(t, IsUnauthorized(NewUnauthorized("admin role required")))
	assert.True(t, IsNotFound(NewNotFound("tenant not found", nil)))
	assert.True(t, IsInvalidState(NewInvalidState("job still running")))
	assert.True(t, IsStorageFailure(NewStorageError("upload rejected", nil)))

	assert.False(t, IsNotFound(NewUnauthorized("nope")))
	assert.False(t, IsStorageFailure(fmt.Errorf("plain error")))
}

func TestTypePredicates_Wrapped(t *testing.T) {
	wrapped := WrapError(NewNotFound("backup job missing", nil), "restore failed")
	assert.True(t, IsNotFound(wrapped))
}

func TestNewPartialTableError(t *testing.T) {
	err := NewPartialTableError("key_results", fmt.Errorf("connection reset"))
	assert.Equal(t, ErrorTypePartialTable, err.Type)
	assert.Equal(t, "key_results", err.Context["table"])
}

func TestClassifier_Classify(t *testing.T) {
	classifier := NewClassifier()

	tests := []struct {
		name        string
		err         error
		wantType    ErrorType
		recoverable bool
	}{
		{
			name:     "nil error",
			err:      nil,
			wantType: "",
		},
		{
			name:     "already classified",
			err:      NewInvalidState("bad state"),
			wantType: ErrorTypeInvalidState,
		},
		{
			name:     "mysql access denied",
			err:      &mysql.MySQLError{Number: 1045, Message: "access denied"},
			wantType: ErrorTypeUnauthorized,
		},
		{
			name:        "mysql server gone away",
			err:         &mysql.MySQLError{Number: 2006, Message: "gone away"},
			wantType:    ErrorTypeConnection,
			recoverable: true,
		},
		{
			name:     "sql no rows",
			err:      sql.ErrNoRows,
			wantType: ErrorTypeNotFound,
		},
		{
			name:     "context canceled",
			err:      context.Canceled,
			wantType: ErrorTypeInterruption,
		},
		{
			name:     "unknown error",
			err:      fmt.Errorf("something odd"),
			wantType: ErrorTypeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.err)
			if tt.err == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.recoverable, got.IsRecoverable())
		})
	}
}

func TestRetryHandler_Retry(t *testing.T) {
	t.Run("succeeds after recoverable failures", func(t *testing.T) {
		rh := NewRetryHandler(RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    5 * time.Millisecond,
			Multiplier:  2.0,
		})

		attempts := 0
		err := rh.Retry(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return NewRecoverable(ErrorTypeConnection, "flaky", nil)
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		rh := NewDefaultRetryHandler()

		attempts := 0
		err := rh.Retry(context.Background(), func() error {
			attempts++
			return NewValidationError("bad input", nil)
		})

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		rh := NewDefaultRetryHandler()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := rh.Retry(ctx, func() error { return nil })
		require.Error(t, err)
		assert.Equal(t, ErrorTypeInterruption, TypeOf(err))
	})
}
