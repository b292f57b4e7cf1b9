package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSub_DiscardsBeforeInit(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	assert.False(t, Enabled(slog.LevelInfo))
	Sub("store").Info("nobody hears this")
	assert.Empty(t, RecentErrors())
}

func TestInit_ConsoleRouting(t *testing.T) {
	t.Cleanup(Reset)
	var stdout, stderr bytes.Buffer
	Init(Options{Level: slog.LevelInfo, Stdout: &stdout, Stderr: &stderr})

	Sub("engine").Info("batch done", "succeeded", 2)
	Sub("engine").Warn("item failed", "id", "x")
	Sub("engine").Debug("hidden")

	assert.Contains(t, stdout.String(), "batch done")
	assert.Contains(t, stdout.String(), "comp=engine")
	assert.NotContains(t, stdout.String(), "item failed")
	assert.Contains(t, stderr.String(), "item failed")
	assert.NotContains(t, stdout.String(), "hidden")
	assert.False(t, Enabled(slog.LevelDebug))
}

func TestInit_DebugLevel(t *testing.T) {
	t.Cleanup(Reset)
	var stdout bytes.Buffer
	Init(Options{Level: slog.LevelDebug, Stdout: &stdout, Stderr: &bytes.Buffer{}})

	assert.True(t, Enabled(slog.LevelDebug))
	Sub("store").Debug("staged", "kind", "delete")
	assert.Contains(t, stdout.String(), "staged")
}

func TestInit_WritesLogFiles(t *testing.T) {
	t.Cleanup(Reset)
	dir := t.TempDir()
	Init(Options{Dir: dir, Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})

	Sub("engine").Info("info line")
	Sub("engine").Warn("warn line")

	info, err := os.ReadFile(filepath.Join(dir, "pendingfs_info.log"))
	require.NoError(t, err)
	assert.Contains(t, string(info), "info line")
	assert.NotContains(t, string(info), "warn line")

	warn, err := os.ReadFile(filepath.Join(dir, "pendingfs_warn.log"))
	require.NoError(t, err)
	assert.Contains(t, string(warn), "warn line")
}

func TestRecentErrors_NewestFirst(t *testing.T) {
	t.Cleanup(Reset)
	Init(Options{Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}})

	for _, msg := range []string{"one", "two", "three", "four", "five"} {
		Sub("engine").Error(msg, "err", errors.New("boom "+msg))
	}

	recent := RecentErrors()
	require.Len(t, recent, errorRingSize)
	assert.Equal(t, "five", recent[0].Message)
	assert.Equal(t, "engine", recent[0].Comp)
	assert.Equal(t, "boom five", recent[0].Error)
	assert.Equal(t, "two", recent[3].Message)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("e"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
