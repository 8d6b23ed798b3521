package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvirtanen/galleria/internal/conf"
)

func TestSetOutputCapturesStructuredLogs(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)

	Structured().Info("gallery reloaded", "records", 20)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &entry))
	assert.Equal(t, "gallery reloaded", entry["msg"])
	assert.Equal(t, float64(20), entry["records"])
	assert.Equal(t, "INFO", entry["level"])

	HumanReadable().Warn("page load failed")
	assert.Contains(t, human.String(), "page load failed")
	assert.Contains(t, human.String(), "WARN")
}

func TestForService(t *testing.T) {
	var structured, human bytes.Buffer
	SetOutput(&structured, &human)

	ForService("backend").Info("client initialized")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(structured.Bytes(), &entry))
	assert.Equal(t, "backend", entry["service"])
}

func TestReplaceLevelNames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level:       LevelTrace,
		ReplaceAttr: replaceLevelNames,
	}))

	logger.Log(context.Background(), LevelTrace, "tracing")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "TRACE", entry["level"])

	buf.Reset()
	logger.Log(context.Background(), LevelFatal, "dying")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "FATAL", entry["level"])
}

func TestServiceLogger(t *testing.T) {
	t.Run("disabled file logging falls back to the shared logger", func(t *testing.T) {
		Init(conf.LogConfig{Enabled: false}, slog.LevelInfo)

		var structured, human bytes.Buffer
		SetOutput(&structured, &human)

		logger, closer := ServiceLogger("backend")
		logger.Info("shared logger in use")
		require.NoError(t, closer())

		var entry map[string]any
		require.NoError(t, json.Unmarshal(structured.Bytes(), &entry))
		assert.Equal(t, "backend", entry["service"])
	})

	t.Run("enabled file logging writes a per-service file", func(t *testing.T) {
		dir := t.TempDir()
		Init(conf.LogConfig{Enabled: true, Path: dir, Rotation: conf.RotationSize}, slog.LevelDebug)

		logger, closer := ServiceLogger("backend")
		logger.Info("file logger in use", "key", "value")
		require.NoError(t, closer())

		data, err := os.ReadFile(filepath.Join(dir, "backend.log"))
		require.NoError(t, err)

		var entry map[string]any
		require.NoError(t, json.Unmarshal(data, &entry))
		assert.Equal(t, "file logger in use", entry["msg"])
		assert.Equal(t, "backend", entry["service"])
		assert.Equal(t, "value", entry["key"])
	})

	t.Run("debug level from Init applies to file loggers", func(t *testing.T) {
		dir := t.TempDir()
		Init(conf.LogConfig{Enabled: true, Path: dir}, slog.LevelDebug)

		logger, closer := ServiceLogger("gallery")
		logger.Debug("debug entry kept")
		require.NoError(t, closer())

		data, err := os.ReadFile(filepath.Join(dir, "gallery.log"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "debug entry kept")
	})
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "backend.log")

	logger, closer, err := NewFileLogger(path, "backend", slog.LevelDebug)
	require.NoError(t, err)

	logger.Info("file logger works", "key", "value")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "file logger works", entry["msg"])
	assert.Equal(t, "backend", entry["service"])
	assert.Equal(t, "value", entry["key"])
}
