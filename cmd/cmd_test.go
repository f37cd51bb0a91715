package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/olimci/foldersync/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	dir     string
	config  string
	logFile string
	src     string
	dst     string
}

// newTestEnv isolates config, history and log files under a temp dir. It
// uses t.Setenv, so callers cannot run in parallel.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dir := t.TempDir()
	env := testEnv{
		dir:     dir,
		config:  filepath.Join(dir, "config.toml"),
		logFile: filepath.Join(dir, "logs", "sync.log"),
		src:     filepath.Join(dir, "src"),
		dst:     filepath.Join(dir, "dst"),
	}
	t.Setenv("FOLDERSYNC_HISTORY_FILE", filepath.Join(dir, "history.json"))
	t.Setenv("FOLDERSYNC_CONFIG", "")

	require.NoError(t, os.MkdirAll(filepath.Join(env.src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.src, "x.txt"), []byte("hi"), 0o644))
	return env
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut

	full := append([]string{"foldersync", "--config", e.config, "--log-file", e.logFile}, args...)
	err := app.Run(context.Background(), full)
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "foldersync version")
}

func TestRunCommandMirrorsAndRecordsHistory(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "--verbose", "run", "--src", env.src, "--dst", env.dst)
	require.NoError(t, err)

	assert.Contains(t, out, "Logging to "+env.logFile)
	assert.Contains(t, out, "sync successful")
	assert.Contains(t, out, "created 2")
	assert.Contains(t, out, "changed paths:")

	data, err := os.ReadFile(filepath.Join(env.dst, "x.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
	assert.DirExists(t, filepath.Join(env.dst, "sub"))

	logData, err := os.ReadFile(env.logFile)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "sync successful")

	status, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, status, env.src)
	assert.Contains(t, status, "ok")
}

func TestRunCommandDryRun(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "run", "--src", env.src, "--dst", env.dst, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "dry run")
	assert.NoDirExists(t, env.dst)
}

func TestPlanCommand(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.MkdirAll(env.dst, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.dst, "old.txt"), []byte("o"), 0o644))

	out, err := env.run(t, "plan", "--src", env.src, "--dst", env.dst)
	require.NoError(t, err)

	assert.Contains(t, out, "+ sub")
	assert.Contains(t, out, "+ x.txt")
	assert.Contains(t, out, "- old.txt")
	assert.FileExists(t, filepath.Join(env.dst, "old.txt"))
	assert.NoFileExists(t, filepath.Join(env.dst, "x.txt"))
}

func TestRunCommandRequiresRoots(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "run")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRunCommandRejectsInvalidFlags(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "run", "--src", env.src, "--dst", env.dst, "--algorithm", "md5")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestConfigInitAndShow(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "config", "init", "--src", env.src, "--dst", env.dst)
	require.NoError(t, err)
	assert.Contains(t, out, env.config)

	_, err = env.run(t, "config", "init")
	assert.Error(t, err)

	shown, err := env.run(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, shown, env.src)
	assert.Contains(t, shown, `algorithm = "xxh64"`)

	// Roots now come from the config file.
	_, err = env.run(t, "run")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(env.dst, "x.txt"))

	_, err = env.run(t, "config", "init", "--force")
	require.NoError(t, err)
	cfg, err := config.Load(env.config)
	require.NoError(t, err)
	assert.Empty(t, cfg.Sync.Source)
}

func TestStatusWithoutHistory(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded")
}
