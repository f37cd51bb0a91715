package fileutils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
)

var (
	// ErrEntryVanished reports a path that was listed in a snapshot but no longer exists.
	ErrEntryVanished = errors.New("entry vanished")
	// ErrAlreadyExists reports a directory that was already present at the destination.
	ErrAlreadyExists = errors.New("already exists")
	// ErrSamePath reports a copy whose source and destination resolve to the same path.
	ErrSamePath = errors.New("source and destination are the same path")
	// ErrUnsupportedType reports an entry that is neither a file, a directory nor a symlink.
	ErrUnsupportedType = errors.New("unsupported file type")
)

func ExpandHome(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

func AbsPath(path string) (string, error) {
	expanded := ExpandHome(strings.TrimSpace(path))
	if expanded == "" {
		return "", fmt.Errorf("path is empty")
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", path, err)
	}

	return filepath.Clean(abs), nil
}

const maxSymlinks = 255

// ResolvePath follows symlinks in every existing component of the absolute
// path p. Components that do not exist yet are appended unchanged.
func ResolvePath(fs afero.Fs, p string) (string, error) {
	sep := string(filepath.Separator)
	vol := filepath.VolumeName(p)
	root := vol + sep

	rest := splitPath(p)
	resolved := root
	links := 0
	for len(rest) > 0 {
		part := rest[0]
		rest = rest[1:]

		next := filepath.Join(resolved, part)
		info, err := Lstat(fs, next)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.Join(append([]string{next}, rest...)...), nil
			}
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		if !IsSymlink(info) {
			resolved = next
			continue
		}

		links++
		if links > maxSymlinks {
			return "", fmt.Errorf("resolve %s: too many levels of symbolic links", p)
		}
		target, err := Readlink(fs, next)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", p, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(resolved, target)
		}
		resolved = root
		rest = append(splitPath(target), rest...)
	}
	return resolved, nil
}

func splitPath(p string) []string {
	clean := filepath.Clean(p)
	clean = clean[len(filepath.VolumeName(clean)):]

	var parts []string
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// PathDepth counts the segments of a slash or OS separated relative path.
func PathDepth(p string) int {
	clean := path.Clean(filepath.ToSlash(p))
	if clean == "." || clean == "/" {
		return 0
	}

	depth := 0
	for _, part := range strings.Split(clean, "/") {
		if part != "" {
			depth++
		}
	}
	return depth
}

// Lstat stats path without following a trailing symlink when fs supports it.
func Lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if lfs, ok := fs.(afero.Lstater); ok {
		info, _, err := lfs.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}

func Readlink(fs afero.Fs, path string) (string, error) {
	lr, ok := fs.(afero.LinkReader)
	if !ok {
		return "", fmt.Errorf("read symlink %s: filesystem does not support symlinks", path)
	}
	return lr.ReadlinkIfPossible(path)
}

func Symlink(fs afero.Fs, target, link string) error {
	l, ok := fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("create symlink %s: filesystem does not support symlinks", link)
	}
	return l.SymlinkIfPossible(target, link)
}

func IsSymlink(info os.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}

// CopyEntry copies a single entry from src to dst.
// Directories are created empty and non-recursively, symlinks are recreated
// with the same target, and files are copied without their timestamps.
func CopyEntry(fs afero.Fs, src, dst string) error {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return fmt.Errorf("copy %s: %w", src, ErrSamePath)
	}

	info, err := Lstat(fs, src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("copy %s: %w", src, ErrEntryVanished)
		}
		return fmt.Errorf("stat source path %s: %w", src, err)
	}

	switch {
	case IsSymlink(info):
		target, err := Readlink(fs, src)
		if err != nil {
			return fmt.Errorf("read symlink %s: %w", src, err)
		}
		if err := Symlink(fs, target, dst); err != nil {
			return fmt.Errorf("create symlink %s -> %s: %w", dst, target, err)
		}
		return nil
	case info.IsDir():
		// The owner keeps full access so children can still be copied in.
		return makeDir(fs, dst, info.Mode().Perm()|0o700)
	case info.Mode().IsRegular():
		return copyFile(fs, src, dst, info)
	default:
		return fmt.Errorf("copy %s (%s): %w", src, info.Mode().String(), ErrUnsupportedType)
	}
}

// RemoveEntry removes a single entry. Directories are expected to be empty;
// when they are not, their contents are removed deepest first and the
// directory removal is retried.
func RemoveEntry(fs afero.Fs, path string) error {
	clean := filepath.Clean(path)
	if clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to remove unsafe path: %s", path)
	}

	info, err := Lstat(fs, clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", clean, ErrEntryVanished)
		}
		return fmt.Errorf("stat %s: %w", clean, err)
	}

	if !info.IsDir() || IsSymlink(info) {
		if err := fs.Remove(clean); err != nil {
			return fmt.Errorf("remove %s: %w", clean, err)
		}
		return nil
	}

	if err := fs.Remove(clean); err == nil {
		return nil
	}

	if err := removeContents(fs, clean); err != nil {
		return err
	}
	if err := fs.Remove(clean); err != nil {
		return fmt.Errorf("remove directory %s: %w", clean, err)
	}
	return nil
}

func removeContents(fs afero.Fs, dir string) error {
	var descendants []string

	stack := []string{dir}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		infos, err := afero.ReadDir(fs, cur)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read directory %s: %w", cur, err)
		}
		for _, info := range infos {
			child := filepath.Join(cur, info.Name())
			descendants = append(descendants, child)
			if info.IsDir() && !IsSymlink(info) {
				stack = append(stack, child)
			}
		}
	}

	sort.Slice(descendants, func(i, j int) bool {
		di := PathDepth(descendants[i])
		dj := PathDepth(descendants[j])
		if di == dj {
			return descendants[i] > descendants[j]
		}
		return di > dj
	})

	var errs []error
	for _, p := range descendants {
		if err := fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func makeDir(fs afero.Fs, dst string, perm os.FileMode) error {
	err := fs.Mkdir(dst, perm)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("create directory %s: %w", dst, err)
	}

	info, statErr := Lstat(fs, dst)
	if statErr == nil && info.IsDir() && !IsSymlink(info) {
		return fmt.Errorf("create directory %s: %w", dst, ErrAlreadyExists)
	}
	return fmt.Errorf("path exists and is not a directory: %s", dst)
}

func copyFile(fs afero.Fs, src, dst string, srcInfo os.FileInfo) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("copy %s: %w", src, ErrEntryVanished)
		}
		return fmt.Errorf("open source file %s: %w", src, err)
	}
	defer srcFile.Close()

	dstFile, err := afero.TempFile(fs, filepath.Dir(dst), "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", dst, err)
	}
	tmpDest := dstFile.Name()

	_, copyErr := io.Copy(dstFile, srcFile)
	closeErr := dstFile.Close()
	if copyErr != nil {
		_ = fs.Remove(tmpDest)
		return fmt.Errorf("copy %s to %s: %w", src, tmpDest, copyErr)
	}
	if closeErr != nil {
		_ = fs.Remove(tmpDest)
		return fmt.Errorf("close temporary file %s: %w", tmpDest, closeErr)
	}

	if err := fs.Chmod(tmpDest, srcInfo.Mode().Perm()); err != nil {
		_ = fs.Remove(tmpDest)
		return fmt.Errorf("set mode on %s: %w", tmpDest, err)
	}

	if err := fs.Rename(tmpDest, dst); err != nil {
		_ = fs.Remove(tmpDest)
		return fmt.Errorf("replace %s with %s: %w", dst, tmpDest, err)
	}

	return nil
}
