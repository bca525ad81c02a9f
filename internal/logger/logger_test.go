package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelInfo, AddSource: true})
	log.Debug("hidden")
	log.Info("armed", "threshold_db", -35.0)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "armed", rec["msg"])
	assert.Equal(t, -35.0, rec["threshold_db"])

	src, ok := rec["source"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "logger_test.go", src["file"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Level: slog.LevelWarn})
	log.Info("dropped")
	log.Warn("capture failed", "kind", "device_lost")
	assert.Contains(t, buf.String(), `msg="capture failed" kind=device_lost`)
	assert.NotContains(t, buf.String(), "dropped")
}
