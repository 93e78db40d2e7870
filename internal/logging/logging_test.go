package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_LevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "warn", Format: FormatJSON}, &buf)
	l = ComponentLogger(l, "engine")

	l.Info().Msg("hidden")
	assert.Empty(t, buf.String())

	l.Warn().Str("crop", "wheat").Msg("visible")
	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "engine", event["component"])
	assert.Equal(t, "wheat", event["crop"])
	assert.Equal(t, "visible", event["message"])
}

func TestNewLogger_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(Config{Level: "loud"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestFromContext_AttachesTraceID(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Config{Level: "debug"}, &buf)

	ctx := base.WithContext(context.Background())
	ctx = ContextWithTraceID(ctx, "trace-123")

	FromContext(ctx).Info().Msg("hello")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "trace-123", event["trace_id"])
}

func TestGetOrGenerateTraceID(t *testing.T) {
	ctx := context.Background()
	generated := GetOrGenerateTraceID(ctx)
	assert.Len(t, generated, 26, "ULIDs are 26 characters")

	ctx = ContextWithTraceID(ctx, "fixed")
	assert.Equal(t, "fixed", GetOrGenerateTraceID(ctx))
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestNewLoggerWithPath(t *testing.T) {
	t.Run("stderr output", func(t *testing.T) {
		result := NewLoggerWithPath(Config{Level: "info", Output: OutputStderr})
		assert.False(t, result.UsingFile)
		assert.False(t, result.FallbackUsed)
		assert.NoError(t, result.Close())
	})

	t.Run("file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "cropadvisor.log")
		result := NewLoggerWithPath(Config{Level: "info", Output: OutputFile, File: path})
		require.True(t, result.UsingFile)
		result.Logger.Info().Msg("to file")
		require.NoError(t, result.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("unwritable file falls back", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

		result := NewLoggerWithPath(Config{Output: OutputFile, File: filepath.Join(blocker, "x.log")})
		assert.True(t, result.FallbackUsed)
		assert.NotEmpty(t, result.FallbackReason)
	})
}
