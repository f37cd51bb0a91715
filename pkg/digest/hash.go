package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/olimci/foldersync/pkg/utils/fileutils"
	"github.com/spf13/afero"
)

// ErrNotHashable is returned for paths that are not a file, directory or symlink.
var ErrNotHashable = errors.New("path is not hashable")

// Record tags written ahead of every entry in the digest stream.
const (
	tagFile    byte = 'f'
	tagDir     byte = 'd'
	tagSymlink byte = 'l'
)

// Hasher computes content digests over an afero filesystem.
//
// A file contributes its base name followed by its bytes. A directory
// contributes its base name followed by the contributions of its children,
// ordered by case-insensitive name. Symlinks contribute their base name and
// link target and are never followed. Every record is framed with a tag, a
// NUL-terminated name and a length or child count, so renaming any entry
// changes the digest.
type Hasher struct {
	fs        afero.Fs
	algorithm string
}

func NewHasher(fs afero.Fs, algorithm string) (Hasher, error) {
	if algorithm == "" {
		algorithm = AlgorithmXXH64
	}
	if err := ValidateAlgorithm(algorithm); err != nil {
		return Hasher{}, err
	}
	return Hasher{fs: fs, algorithm: algorithm}, nil
}

func (h Hasher) Algorithm() string {
	return h.algorithm
}

// ForPath computes the digest of the object at path, including its base name.
func (h Hasher) ForPath(path string) (Digest, error) {
	info, err := fileutils.Lstat(h.fs, path)
	if err != nil {
		return Digest{}, err
	}

	kind, err := kindOf(path, info)
	if err != nil {
		return Digest{}, err
	}

	sum := h.newHash()
	if err := h.writeEntries(sum, []entry{{path: path, info: info}}); err != nil {
		return Digest{}, err
	}

	return New(kind, h.algorithm, hex.EncodeToString(sum.Sum(nil)))
}

// ForTree computes the digest of the contents of root. The name of root
// itself is not part of the digest, so two roots with identical contents
// produce the same digest.
func (h Hasher) ForTree(root string) (Digest, error) {
	info, err := h.fs.Stat(root)
	if err != nil {
		return Digest{}, err
	}
	if !info.IsDir() {
		return Digest{}, fmt.Errorf("hash tree %s: %w", root, ErrNotHashable)
	}

	children, err := h.children(root)
	if err != nil {
		return Digest{}, err
	}

	sum := h.newHash()
	if err := writeCount(sum, len(children)); err != nil {
		return Digest{}, err
	}
	if err := h.writeEntries(sum, children); err != nil {
		return Digest{}, err
	}

	return New(KindDir, h.algorithm, hex.EncodeToString(sum.Sum(nil)))
}

func (h Hasher) newHash() hash.Hash {
	if h.algorithm == AlgorithmSHA256 {
		return sha256.New()
	}
	return xxhash.New()
}

type entry struct {
	path string
	info os.FileInfo
}

// writeEntries emits entries and their descendants in depth-first pre-order
// using an explicit stack.
func (h Hasher) writeEntries(w io.Writer, top []entry) error {
	stack := make([]entry, 0, len(top))
	for i := len(top) - 1; i >= 0; i-- {
		stack = append(stack, top[i])
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		name := cur.info.Name()
		mode := cur.info.Mode()

		switch {
		case mode&os.ModeSymlink != 0:
			target, err := fileutils.Readlink(h.fs, cur.path)
			if err != nil {
				return fmt.Errorf("read symlink %s: %w", cur.path, err)
			}
			if err := writeHeader(w, tagSymlink, name); err != nil {
				return err
			}
			if err := writeCount(w, len(target)); err != nil {
				return err
			}
			if _, err := io.WriteString(w, target); err != nil {
				return err
			}
		case mode.IsRegular():
			if err := writeHeader(w, tagFile, name); err != nil {
				return err
			}
			if err := h.writeFile(w, cur.path, cur.info.Size()); err != nil {
				return err
			}
		case mode.IsDir():
			children, err := h.children(cur.path)
			if err != nil {
				return err
			}
			if err := writeHeader(w, tagDir, name); err != nil {
				return err
			}
			if err := writeCount(w, len(children)); err != nil {
				return err
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, children[i])
			}
		default:
			return fmt.Errorf("hash %s (%s): %w", cur.path, mode.String(), ErrNotHashable)
		}
	}

	return nil
}

func (h Hasher) writeFile(w io.Writer, path string, size int64) error {
	f, err := h.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open file %s: %w", path, err)
	}
	defer f.Close()

	if err := writeCount(w, int(size)); err != nil {
		return err
	}
	if _, err := io.CopyN(w, f, size); err != nil {
		return fmt.Errorf("hash file %s: %w", path, err)
	}
	return nil
}

// children lists dir sorted by case-insensitive name, exact name breaking ties.
func (h Hasher) children(dir string) ([]entry, error) {
	infos, err := afero.ReadDir(h.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	sort.Slice(infos, func(i, j int) bool {
		a, b := strings.ToLower(infos[i].Name()), strings.ToLower(infos[j].Name())
		if a == b {
			return infos[i].Name() < infos[j].Name()
		}
		return a < b
	})

	out := make([]entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, entry{path: filepath.Join(dir, info.Name()), info: info})
	}
	return out, nil
}

func kindOf(path string, info os.FileInfo) (Kind, error) {
	mode := info.Mode()
	switch {
	case mode&os.ModeSymlink != 0:
		return KindSymlink, nil
	case mode.IsRegular():
		return KindFile, nil
	case mode.IsDir():
		return KindDir, nil
	default:
		return "", fmt.Errorf("hash %s (%s): %w", path, mode.String(), ErrNotHashable)
	}
}

func writeHeader(w io.Writer, tag byte, name string) error {
	if _, err := w.Write([]byte{tag}); err != nil {
		return err
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	_, err := w.Write([]byte{0})
	return err
}

func writeCount(w io.Writer, n int) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(n))
	_, err := w.Write(buf[:])
	return err
}
