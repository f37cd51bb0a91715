// Package plan classifies the differences between a source and a destination
// snapshot into the set of operations that turns the destination into a
// mirror of the source.
package plan

import (
	"fmt"
	"sort"

	"github.com/olimci/foldersync/pkg/snapshot"
	"github.com/olimci/foldersync/pkg/utils/fileutils"
)

// Plan is a partition of relative paths into the operations to apply.
// The four sets are pairwise disjoint.
type Plan struct {
	Create  []string `json:"create"`  // in source only
	Remove  []string `json:"remove"`  // in destination only
	Update  []string `json:"update"`  // files in both, source newer and content differs
	Replace []string `json:"replace"` // in both, with a different kind on each side
}

// Comparer reports whether the content at a shared relative path differs
// between source and destination.
type Comparer interface {
	Differs(rel string) bool
}

// ComparerFunc adapts a function to a Comparer.
type ComparerFunc func(rel string) bool

func (f ComparerFunc) Differs(rel string) bool {
	return f(rel)
}

// Compute diffs two snapshots. It performs no I/O itself; content comparison
// is delegated to cmp, which is only consulted for files present on both
// sides whose source copy is strictly newer.
func Compute(src, dst snapshot.Snapshot, cmp Comparer) Plan {
	var p Plan

	for _, rel := range src.Paths() {
		se, _ := src.Get(rel)
		de, ok := dst.Get(rel)
		if !ok {
			p.Create = append(p.Create, rel)
			continue
		}

		switch {
		case se.Kind != de.Kind:
			p.Replace = append(p.Replace, rel)
		case se.Kind != snapshot.KindFile:
			// directories, symlinks and special files are never updated in place
		case se.ModTime.After(de.ModTime) && cmp != nil && cmp.Differs(rel):
			p.Update = append(p.Update, rel)
		}
	}

	for _, rel := range dst.Paths() {
		if !src.Has(rel) {
			p.Remove = append(p.Remove, rel)
		}
	}

	return p
}

// Candidates returns the shared file paths whose content Compute will ask a
// Comparer about.
func Candidates(src, dst snapshot.Snapshot) []string {
	var out []string
	for _, rel := range src.Paths() {
		se, _ := src.Get(rel)
		de, ok := dst.Get(rel)
		if !ok || se.Kind != snapshot.KindFile || de.Kind != snapshot.KindFile {
			continue
		}
		if se.ModTime.After(de.ModTime) {
			out = append(out, rel)
		}
	}
	return out
}

func (p Plan) Len() int {
	return len(p.Create) + len(p.Remove) + len(p.Update) + len(p.Replace)
}

func (p Plan) Empty() bool {
	return p.Len() == 0
}

// RemoveOrder lists every destination path to delete, deepest first so
// children go before their parent directory.
func (p Plan) RemoveOrder() []string {
	out := append(append([]string(nil), p.Remove...), p.Replace...)
	sort.Slice(out, func(i, j int) bool {
		di := fileutils.PathDepth(out[i])
		dj := fileutils.PathDepth(out[j])
		if di == dj {
			return out[i] > out[j]
		}
		return di > dj
	})
	return out
}

// CreateOrder lists every path to copy from the source, shallowest first so
// parent directories exist before their children.
func (p Plan) CreateOrder() []string {
	out := append(append([]string(nil), p.Create...), p.Replace...)
	sort.Slice(out, func(i, j int) bool {
		di := fileutils.PathDepth(out[i])
		dj := fileutils.PathDepth(out[j])
		if di == dj {
			return out[i] < out[j]
		}
		return di < dj
	})
	return out
}

func (p Plan) UpdateOrder() []string {
	out := append([]string(nil), p.Update...)
	sort.Strings(out)
	return out
}

// Validate checks that no path appears in more than one set.
func (p Plan) Validate() error {
	seen := make(map[string]string, p.Len())
	sets := []struct {
		name  string
		paths []string
	}{
		{"create", p.Create},
		{"remove", p.Remove},
		{"update", p.Update},
		{"replace", p.Replace},
	}
	for _, set := range sets {
		for _, rel := range set.paths {
			if prev, ok := seen[rel]; ok {
				return fmt.Errorf("path %s is in both %s and %s", rel, prev, set.name)
			}
			seen[rel] = set.name
		}
	}
	return nil
}
