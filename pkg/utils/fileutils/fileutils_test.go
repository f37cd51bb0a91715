package fileutils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathDepth(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":         0,
		".":        0,
		"a":        1,
		"a/b":      2,
		"a/b/c/":   3,
		"./a/../b": 1,
	}
	for in, want := range cases {
		assert.Equal(t, want, PathDepth(in), in)
	}
}

func TestAbsPath(t *testing.T) {
	t.Parallel()

	_, err := AbsPath("   ")
	assert.Error(t, err)

	abs, err := AbsPath("relative/dir/")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
	assert.Equal(t, "dir", filepath.Base(abs))
}

func TestCopyEntryFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.sh")
	dst := filepath.Join(dir, "dst.sh")
	require.NoError(t, os.WriteFile(src, []byte("#!/bin/sh\n"), 0o750))
	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(src, old, old))

	require.NoError(t, CopyEntry(afero.NewOsFs(), src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\n", string(data))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o750), info.Mode().Perm())
	assert.True(t, info.ModTime().After(old))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temporary file left behind")
}

func TestCopyEntryOverwritesFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/f", []byte("new"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/dst/f", []byte("old and longer"), 0o644))

	require.NoError(t, CopyEntry(fs, "/src/f", "/dst/f"))

	data, err := afero.ReadFile(fs, "/dst/f")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestCopyEntryDirectory(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/src/d/child", []byte("c"), 0o644))
	require.NoError(t, fs.MkdirAll("/dst", 0o755))

	require.NoError(t, CopyEntry(fs, "/src/d", "/dst/d"))

	info, err := fs.Stat("/dst/d")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Non-recursive: the child is copied separately.
	_, err = fs.Stat("/dst/d/child")
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = CopyEntry(fs, "/src/d", "/dst/d")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCopyEntryDirectoryOverFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dst"), []byte("x"), 0o644))

	err := CopyEntry(afero.NewOsFs(), filepath.Join(dir, "src"), filepath.Join(dir, "dst"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyExists)
}

func TestCopyEntrySymlink(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "link")
	dst := filepath.Join(dir, "copy")
	require.NoError(t, os.Symlink("does/not/exist", src))

	require.NoError(t, CopyEntry(afero.NewOsFs(), src, dst))

	target, err := os.Readlink(dst)
	require.NoError(t, err)
	assert.Equal(t, "does/not/exist", target)
}

func TestCopyEntryErrors(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/f", []byte("x"), 0o644))

	assert.ErrorIs(t, CopyEntry(fs, "/f", "/f"), ErrSamePath)
	assert.ErrorIs(t, CopyEntry(fs, "/missing", "/dst"), ErrEntryVanished)
}

func TestRemoveEntryFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/d/f", []byte("x"), 0o644))

	require.NoError(t, RemoveEntry(fs, "/d/f"))
	exists, err := afero.Exists(fs, "/d/f")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, RemoveEntry(fs, "/d/f"), ErrEntryVanished)
}

func TestRemoveEntryNonEmptyDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	target := filepath.Join(root, "d")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(target, "a", "b", "f"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(target, ".hidden"), []byte("x"), 0o644))

	require.NoError(t, RemoveEntry(afero.NewOsFs(), target))
	assert.NoDirExists(t, target)
}

func TestRemoveEntrySymlinkToDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	realDir := filepath.Join(root, "real")
	require.NoError(t, os.MkdirAll(realDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(realDir, "keep"), []byte("x"), 0o644))
	link := filepath.Join(root, "link")
	require.NoError(t, os.Symlink(realDir, link))

	require.NoError(t, RemoveEntry(afero.NewOsFs(), link))

	_, err := os.Lstat(link)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.FileExists(t, filepath.Join(realDir, "keep"))
}

func TestRemoveEntryRefusesRoot(t *testing.T) {
	t.Parallel()

	assert.Error(t, RemoveEntry(afero.NewMemMapFs(), "/"))
	assert.Error(t, RemoveEntry(afero.NewMemMapFs(), "."))
}

func TestCopyEntryReadOnlyDirectoryStaysWritable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "ro")
	require.NoError(t, os.Mkdir(src, 0o555))
	t.Cleanup(func() { _ = os.Chmod(src, 0o755) })

	dst := filepath.Join(dir, "copy")
	require.NoError(t, CopyEntry(afero.NewOsFs(), src, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm()&0o700)
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	realDir := filepath.Join(root, "real")
	require.NoError(t, os.MkdirAll(filepath.Join(realDir, "sub"), 0o755))
	require.NoError(t, os.Symlink(realDir, filepath.Join(root, "abs")))
	require.NoError(t, os.Symlink("real/sub", filepath.Join(root, "rel")))
	require.NoError(t, os.Symlink("loop", filepath.Join(root, "loop")))

	fs := afero.NewOsFs()
	cases := map[string]string{
		filepath.Join(root, "real"):                realDir,
		filepath.Join(root, "abs"):                 realDir,
		filepath.Join(root, "abs", "sub"):          filepath.Join(realDir, "sub"),
		filepath.Join(root, "rel"):                 filepath.Join(realDir, "sub"),
		filepath.Join(root, "abs", "missing", "x"): filepath.Join(realDir, "missing", "x"),
		filepath.Join(root, "nothing"):             filepath.Join(root, "nothing"),
	}
	for in, want := range cases {
		got, err := ResolvePath(fs, in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err = ResolvePath(fs, filepath.Join(root, "loop"))
	assert.Error(t, err)
}

func TestResolvePathWithoutSymlinkSupport(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/a/b", 0o755))

	got, err := ResolvePath(fs, "/a/b/c")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/a/b/c"), got)
}
