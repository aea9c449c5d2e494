package logger_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jengzang/machine-efficiency-go/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestNewAppendsToDatedFile(t *testing.T) {
	dir := t.TempDir()
	day := func() time.Time { return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC) }

	var console bytes.Buffer
	l, err := logger.New(logger.Config{Dir: dir, Level: "info", Now: day, Stderr: &console})
	require.NoError(t, err)
	l.Info("data loaded", slog.Int("rows", 12))
	l.Debug("hidden")
	require.NoError(t, l.Close())

	// a second logger on the same day appends instead of truncating
	l, err = logger.New(logger.Config{Dir: dir, Now: day, Stderr: &console})
	require.NoError(t, err)
	l.Warn("second run")
	require.NoError(t, l.Close())

	require.Equal(t, filepath.Join(dir, "log_2026-03-14.log"), l.Path())
	content, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	require.Contains(t, string(content), "data loaded")
	require.Contains(t, string(content), "rows=12")
	require.Contains(t, string(content), "second run")
	require.NotContains(t, string(content), "hidden")
	require.Contains(t, console.String(), "data loaded")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, logger.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, logger.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, logger.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, logger.ParseLevel("verbose"))
}
