package utils

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{Level: "debug", OutputPath: path, Format: "json"})
	require.NoError(t, err)
	logger.Info("hello")
	_ = logger.Sync()

	assert.FileExists(t, path)
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "loud", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestKVLogger_FieldsPassThrough(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("document advanced", "document_id", "doc-1", "status", "EXTRACTED")
	kv.Error("booking failed", "attempt", 3)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "document advanced", entries[0].Message)
	assert.Equal(t, "doc-1", entries[0].ContextMap()["document_id"])
	assert.Equal(t, int64(3), entries[1].ContextMap()["attempt"])
}

func TestNewKVLogger_NilIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewKVLogger(nil).Warn("ignored", "k", "v")
	})
}
