// Package snapshot captures the set of entries under a directory root.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/olimci/foldersync/pkg/utils/fileutils"
	"github.com/spf13/afero"
)

// ErrInvalidRoot is matched by every *InvalidRootError.
var ErrInvalidRoot = errors.New("invalid root")

// InvalidRootError reports a root that does not exist or is not a directory.
type InvalidRootError struct {
	Root   string
	Reason string
}

func (e *InvalidRootError) Error() string {
	return fmt.Sprintf("invalid root %s: %s", e.Root, e.Reason)
}

func (e *InvalidRootError) Is(target error) bool {
	return target == ErrInvalidRoot
}

// Kind is the type of a filesystem entry.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
	KindOther   Kind = "other" // devices, sockets, pipes
)

// Entry is a single root-relative path and its metadata.
type Entry struct {
	Path    string // slash separated, relative to the snapshot root
	Kind    Kind
	ModTime time.Time
	Size    int64
	Mode    os.FileMode
}

// Snapshot is an immutable view of every entry under a root.
type Snapshot struct {
	root    string
	entries map[string]Entry
}

// New builds a snapshot from explicit entries.
func New(root string, entries ...Entry) Snapshot {
	m := make(map[string]Entry, len(entries))
	for _, e := range entries {
		e.Path = Normalize(e.Path)
		m[e.Path] = e
	}
	return Snapshot{root: root, entries: m}
}

func (s Snapshot) Root() string {
	return s.root
}

func (s Snapshot) Len() int {
	return len(s.entries)
}

func (s Snapshot) Get(rel string) (Entry, bool) {
	e, ok := s.entries[rel]
	return e, ok
}

func (s Snapshot) Has(rel string) bool {
	_, ok := s.entries[rel]
	return ok
}

// Paths returns every relative path in lexical order.
func (s Snapshot) Paths() []string {
	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Abs joins a relative snapshot path onto the root.
func (s Snapshot) Abs(rel string) string {
	return Join(s.root, rel)
}

// Join joins a slash separated relative path onto root.
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

// Normalize converts a relative path to its canonical slash separated form.
func Normalize(rel string) string {
	return path.Clean(filepath.ToSlash(rel))
}

func KindOf(info os.FileInfo) Kind {
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsDir():
		return KindDir
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}

// Capture lists every file, directory and symlink strictly under root.
// Hidden entries are included. Symlinks are recorded as themselves and never
// followed. The traversal uses an explicit stack so tree depth is bounded
// only by memory.
func Capture(fs afero.Fs, root string) (Snapshot, error) {
	root = filepath.Clean(root)

	info, err := fs.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, &InvalidRootError{Root: root, Reason: "does not exist"}
		}
		return Snapshot{}, &InvalidRootError{Root: root, Reason: err.Error()}
	}
	if !info.IsDir() {
		return Snapshot{}, &InvalidRootError{Root: root, Reason: "not a directory"}
	}

	entries := make(map[string]Entry, 64)
	stack := []string{"."}

	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		infos, err := afero.ReadDir(fs, Join(root, rel))
		if err != nil {
			if rel != "." && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return Snapshot{}, fmt.Errorf("read directory %s: %w", Join(root, rel), err)
		}

		for _, child := range infos {
			childRel := path.Join(rel, child.Name())
			kind := KindOf(child)
			entries[childRel] = Entry{
				Path:    childRel,
				Kind:    kind,
				ModTime: child.ModTime(),
				Size:    child.Size(),
				Mode:    child.Mode(),
			}
			if kind == KindDir {
				stack = append(stack, childRel)
			}
		}
	}

	return Snapshot{root: root, entries: entries}, nil
}

// CaptureIfExists behaves like Capture but returns an empty snapshot when
// root does not exist yet.
func CaptureIfExists(fs afero.Fs, root string) (Snapshot, error) {
	if _, err := fileutils.Lstat(fs, root); errors.Is(err, os.ErrNotExist) {
		return New(filepath.Clean(root)), nil
	}
	return Capture(fs, root)
}
