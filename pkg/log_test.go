package pkg

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swapLogger(t *testing.T, l *slog.Logger) {
	t.Helper()
	original := DefaultLogger
	SetLogger(l)
	t.Cleanup(func() { SetLogger(original) })
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	for _, level := range []slog.Level{LevelTrace, slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		t.Run(level.String(), func(t *testing.T) {
			SetLogLevel(level)
			assert.Equal(t, level, GetLogLevel())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"trace", LevelTrace},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("json")
	require.NoError(t, err)
	assert.Equal(t, LogFormatJSON, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, LogFormatText, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)
	require.NotNil(t, logger)

	logger.Warn("test message")
	assert.Contains(t, buf.String(), `"msg":"test message"`)
}

func TestLogComponent(t *testing.T) {
	var buf bytes.Buffer
	swapLogger(t, NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogDebug(ComponentFilter, "debug message", "key", "00")
	out := buf.String()
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "component=filter")
	assert.Contains(t, out, "key=00")
}

func TestLogTraceFiltered(t *testing.T) {
	var buf bytes.Buffer
	swapLogger(t, NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogTrace(ComponentScan, "sample")
	assert.Empty(t, buf.String())
}

func TestLogTraceRendered(t *testing.T) {
	var buf bytes.Buffer
	swapLogger(t, NewJSONLogger(&buf, &slog.HandlerOptions{Level: LevelTrace, ReplaceAttr: replaceLevel}))

	LogTrace(ComponentScan, "sample", "name", 21)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "TRACE", rec["level"])
	assert.Equal(t, "scan", rec["component"])
	assert.EqualValues(t, 21, rec["name"])
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	swapLogger(t, NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	LogInfo(ComponentHID, "info message")
	LogWarn(ComponentBus, "warn message")
	LogError(ComponentUSB, "error message")
	out := buf.String()
	assert.Contains(t, out, "component=hid")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "level=ERROR")
}

func TestSetLogFormat(t *testing.T) {
	var buf bytes.Buffer
	original := DefaultLogger
	SetLogOutput(&buf)
	t.Cleanup(func() {
		SetLogOutput(os.Stderr)
		SetLogger(original)
	})

	SetLogFormat(LogFormatJSON)
	LogError(ComponentBoard, "boot failed")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "boot failed", rec["msg"])
	assert.Equal(t, "board", rec["component"])
}
