package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "devgraph.log")

	l, err := New(Config{Level: "info", OutputFile: path})
	require.NoError(t, err)
	defer l.Close()

	l.Slog().Info("hello", "k", "v")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.Contains(t, string(data), "k=v")
}

func TestNewInstallsDefault(t *testing.T) {
	l, err := New(Config{Level: "info"})
	require.NoError(t, err)
	defer l.Close()

	assert.Same(t, l.Slog(), slog.Default())
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devgraph.log")

	l, err := New(Config{Level: "warn", OutputFile: path})
	require.NoError(t, err)
	defer l.Close()

	l.Slog().Info("quiet")
	l.Slog().Warn("loud")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devgraph.log")

	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 128)), 0o644))

	l, err := New(Config{Level: "info", OutputFile: path, MaxSize: 64})
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "oversized file should have been rotated")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
