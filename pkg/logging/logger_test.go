package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bridgeerrors "github.com/ajitpratap0/hostbridge-go/pkg/errors"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, DebugLevel)

	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warn message", Bool("flag", true), Duration("took", time.Second))
	logger.Error("error message", ErrorField(errors.New("test error")))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "value", lines[0]["key"])
	assert.Equal(t, float64(42), lines[1]["count"])
	assert.Equal(t, true, lines[2]["flag"])
	assert.Equal(t, "test error", lines[3]["error"])
	assert.Equal(t, "error message", lines[3]["message"])
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, WarnLevel)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	child := logger.WithFields(String("component", "bus"))
	logger.SetLevel(ErrorLevel)
	child.Warn("hidden after level change")
	child.Error("shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "bus", lines[1]["component"])
	assert.Equal(t, ErrorLevel, child.GetLevel())
}

func TestWithErrorExtractsBridgeFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, InfoLevel)

	err := bridgeerrors.MinimumRosterSizeViolation("3", 2, 2).
		WithContext(&bridgeerrors.Context{Operation: "reportRemoval", Environment: "browser-only"})
	logger.WithError(err).Warn("removal rejected")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "MINIMUM_ROSTER_SIZE", lines[0]["error_code"])
	assert.Equal(t, "policy", lines[0]["error_category"])
	assert.Equal(t, "reportRemoval", lines[0]["operation"])
	assert.Equal(t, "browser-only", lines[0]["environment"])
}

func TestWithContextCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, FormatJSON, InfoLevel)

	ctx := ContextWithCorrelationID(context.Background(), "ab12_3")
	logger.WithContext(ctx).Info("sent")
	logger.WithContext(context.Background()).Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "ab12_3", lines[0]["correlation_id"])
	assert.NotContains(t, lines[1], "correlation_id")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, FormatConsole, InfoLevel).Info("hello", String("env", "browser-only"))
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "env=browser-only")
}

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]Level{"debug": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, "error": ErrorLevel, "off": Disabled, "": InfoLevel} {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing")
	assert.Equal(t, Disabled, logger.GetLevel())
	assert.NotNil(t, logger.WithFields(String("a", "b")))
}
