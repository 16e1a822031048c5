package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.log")
	zl, err := NewLogger(WithLogLevel("warn"), WithOutputPaths(out), WithFields(zap.String("app", "test")))
	require.NoError(t, err)

	zl.Info("dropped")
	zl.Warn("kept")
	require.NoError(t, zl.Sync())

	b, err := os.ReadFile(out)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	require.Equal(t, "kept", m["msg"])
	require.Equal(t, "warn", m["level"])
	require.Equal(t, "test", m["app"])
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger(WithLogLevel("loud"))
	require.Error(t, err)
	require.Panics(t, func() { Must(NewLogger(WithLogLevel("loud"))) })
}
