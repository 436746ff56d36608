package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestDispatcherLogger_Levels(t *testing.T) {
	tests := []struct {
		name  string
		call  func(*DispatcherLogger)
		level string
		msg   string
	}{
		{"debug", func(l *DispatcherLogger) { l.Debug("handling event", "command", ":CCTV:MENU:") }, "DEBUG", "handling event"},
		{"info", func(l *DispatcherLogger) { l.Info("registered", "command", ":CCTV:MENU:") }, "INFO", "registered"},
		{"error", func(l *DispatcherLogger) { l.Error("event failed", "command", ":CCTV:MENU:") }, "ERROR", "event failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			tt.call(NewDispatcherLogger(logger))

			entry := decodeLine(t, &buf)
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, tt.msg, entry["msg"])
			assert.Equal(t, ":CCTV:MENU:", entry["command"])
			assert.Equal(t, "dispatcher", entry["component"])
		})
	}
}

func TestDispatcherLogger_NoKeyValues(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	NewDispatcherLogger(logger).Debug("simple message")

	assert.Equal(t, "simple message", decodeLine(t, &buf)["msg"])
}
