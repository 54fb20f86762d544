package common

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger("info", "json", &buf).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger("warn", "text", &buf).Info("dropped")
	assert.Empty(t, buf.String())
}

func TestLoggerMixinFallsBackToDefault(t *testing.T) {
	var m LoggerMixin
	assert.Same(t, slog.Default(), m.GetLogger())

	l := DiscardLogger()
	m.SetLogger(l)
	m.SetLogger(nil)
	assert.Same(t, l, m.GetLogger())
}
