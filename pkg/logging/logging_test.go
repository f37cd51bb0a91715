package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"info":    zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warn":    zerolog.WarnLevel,
		"Warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewWritesConsoleAndFile(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "sync.log")

	logger, closer, err := New(Options{Level: "info", File: file, Console: &console})
	require.NoError(t, err)

	engineLogger := Component(logger, "engine")
	engineLogger.Info().Str("path", "x.txt").Msg("applied")
	logger.Debug().Msg("hidden")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "applied")
	assert.Contains(t, console.String(), "x.txt")
	assert.NotContains(t, console.String(), "hidden")
	// Buffers are not terminals, so no escape codes.
	assert.NotContains(t, console.String(), "\x1b[")

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "info", record["level"])
	assert.Equal(t, "engine", record["component"])
	assert.Equal(t, "applied", record["message"])
	assert.Contains(t, record, "time")
}

func TestNewAppendsToExistingFile(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "sync.log")
	require.NoError(t, os.WriteFile(file, []byte("previous\n"), 0o644))

	logger, closer, err := New(Options{File: file})
	require.NoError(t, err)
	logger.Warn().Msg("second")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "previous\n"))
	assert.Contains(t, string(data), "second")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestResolveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, ".folders_sync.log"), ResolveFile(dir))
	assert.Equal(t, filepath.Join(dir, "custom.log"), ResolveFile(filepath.Join(dir, "custom.log")))
	assert.Equal(t, DefaultFile(), ResolveFile(""))
	assert.Equal(t, "sync.log", filepath.Base(DefaultFile()))
}
