package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug", "json", "")
	require.NoError(t, err)
	logger.Debug("started")
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	logger, err := NewLogger("info", "console", "")
	require.NoError(t, err)
	logger.Info("started")
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	_, err := NewLogger("chatty", "json", "")
	require.Error(t, err)
}

func TestNewLoggerRejectsBadFormat(t *testing.T) {
	_, err := NewLogger("info", "xml", "")
	require.Error(t, err)
}

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "petmem.log")

	logger, err := NewLogger("info", "json", path)
	require.NoError(t, err)

	logger.Info("hello from the test")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")
}

func TestLoggerContext(t *testing.T) {
	logger := zap.NewNop()
	ctx := ContextWithLogger(context.Background(), logger)

	assert.Same(t, logger, LoggerFromContext(ctx))
	assert.NotNil(t, LoggerFromContext(context.Background()))
}
