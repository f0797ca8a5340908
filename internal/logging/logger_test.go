package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level      LogLevel
		debugShown bool
	}{
		{LogLevelQuiet, false},
		{LogLevelNormal, false},
		{LogLevelVerbose, true},
		{LogLevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(Config{Level: tt.level, Output: &buf, Format: "text"})
			require.NoError(t, err)

			logger.Debug("debug message")
			assert.Equal(t, tt.debugShown, bytes.Contains(buf.Bytes(), []byte("debug message")))
		})
	}
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, Format: "json"})
	require.NoError(t, err)

	logger.WithField("table", "companies").Info("reading table")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "companies", entry["table"])
	assert.Equal(t, "reading table", entry["msg"])
}

func TestLogTableRead(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelDebug, Output: &buf, Format: "json"})
	require.NoError(t, err)

	t.Run("successful read is debug", func(t *testing.T) {
		buf.Reset()
		logger.LogTableRead("objectives", 42, 15*time.Millisecond, nil)

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "objectives", entry["table"])
		assert.Equal(t, float64(42), entry["rows"])
		assert.Equal(t, "debug", entry["level"])
	})

	t.Run("failed read is warning", func(t *testing.T) {
		buf.Reset()
		logger.LogTableRead("objectives", 10, time.Millisecond, fmt.Errorf("connection reset"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "warning", entry["level"])
		assert.Equal(t, "connection reset", entry["error"])
	})
}

func TestLogJobTransition(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, Format: "json"})
	require.NoError(t, err)

	logger.LogJobTransition("backup-20250101-abc123", "pending", "running")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pending", entry["from"])
	assert.Equal(t, "running", entry["to"])
}

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	require.NotNil(t, logger)
	assert.Equal(t, LogLevelNormal, logger.GetLevel())
}
