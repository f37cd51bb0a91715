package history

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/olimci/foldersync/pkg/digest"
	"github.com/olimci/foldersync/pkg/engine"
	"github.com/olimci/foldersync/pkg/plan"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	store := NewStore(afero.NewMemMapFs(), "/state/history.json")
	records, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	_, ok, err := store.Last("/a", "/b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveReplacesRecordForPair(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/state/history.json")
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(Record{Source: "/a", Destination: "/b", StartedAt: t0, Created: 3}))
	require.NoError(t, store.Save(Record{Source: "/c", Destination: "/d", StartedAt: t0.Add(time.Minute)}))
	require.NoError(t, store.Save(Record{Source: "/a", Destination: "/b", StartedAt: t0.Add(time.Hour), Updated: 1, Success: true}))

	records, err := store.Load()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "/a", records[0].Source, "most recent first")
	assert.Equal(t, 1, records[0].Updated)
	assert.Zero(t, records[0].Created)

	rec, ok, err := store.Last("/c", "/d")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Minute), rec.StartedAt)

	matches, err := afero.Glob(fs, filepath.Join("/state", ".history.json.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/h.json", []byte("{not json"), 0o644))

	_, err := NewStore(fs, "/h.json").Load()
	assert.Error(t, err)
}

func TestFromResult(t *testing.T) {
	t.Parallel()

	sum, err := digest.New(digest.KindDir, digest.AlgorithmXXH64, "0102030405060708")
	require.NoError(t, err)
	res := engine.Result{
		Source:      "/src",
		Destination: "/dst",
		Success:     true,
		Plan: plan.Plan{
			Create:  []string{"a", "b"},
			Remove:  []string{"c"},
			Update:  []string{"d"},
			Replace: []string{"e"},
		},
		SourceDigest: sum,
		Skipped:      []engine.Failure{{Path: "b", Op: engine.PhaseCreate, Err: errors.New("boom")}},
		Duration:     time.Second,
	}

	rec := FromResult(res, nil)
	assert.True(t, rec.Success)
	assert.Equal(t, 2, rec.Created)
	assert.Equal(t, 1, rec.Removed)
	assert.Equal(t, 1, rec.Updated)
	assert.Equal(t, 1, rec.Replaced)
	assert.Equal(t, 1, rec.Skipped)
	assert.Equal(t, sum.String(), rec.SourceDigest)
	assert.Empty(t, rec.Error)

	failed := FromResult(res, errors.New("invalid root"))
	assert.False(t, failed.Success)
	assert.Equal(t, "invalid root", failed.Error)
}
