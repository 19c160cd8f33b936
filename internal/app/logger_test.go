package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerHonorsLevelAndFormat(t *testing.T) {
	var buf strings.Builder
	logger := newLogger("warn", "json", &buf)

	logger.Info("below threshold")
	logger.Warn("visible")

	out := buf.String()
	require.NotContains(t, out, "below threshold")
	require.Contains(t, out, `"msg":"visible"`)
}

func TestNewLoggerUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf strings.Builder
	logger := newLogger("chatty", "text", &buf)

	logger.Debug("below threshold")
	logger.Info("visible")

	out := buf.String()
	require.NotContains(t, out, "below threshold")
	require.Contains(t, out, "visible")
}
