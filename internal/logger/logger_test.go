package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/jwebster45206/gm-engine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_ProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)

	WithError(WithSession(WithRequestID(log, "req-1"), "abc"), errors.New("boom")).Info("turn failed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "turn failed", entry["msg"])
	assert.Equal(t, "gm-engine", entry["service"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "abc", entry["gamestate_id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestSetup_DevelopmentUsesTextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := setup(&config.Config{Environment: "development", LogLevel: slog.LevelWarn}, &buf)

	log.Info("hidden")
	log.Warn("shown", "hp", 70)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "hp=70")
}
