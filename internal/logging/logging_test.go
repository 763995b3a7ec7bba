package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Out: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("could not resolve link", zap.String("guid", "g1"))
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, `"guid": "g1"`)
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "error", Debug: true, Out: &buf})
	require.NoError(t, err)

	logger.Debug("resolved link")
	assert.Contains(t, buf.String(), "resolved link")
}

func TestNew_Color(t *testing.T) {
	var plain, color bytes.Buffer
	logger, err := New(Options{Out: &plain})
	require.NoError(t, err)
	logger.Warn("could not resolve link")

	logger, err = New(Options{Color: true, Out: &color})
	require.NoError(t, err)
	logger.Warn("could not resolve link")

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, color.String(), "\x1b[")
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, IsTerminal(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "log")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
