// Package history keeps the outcome of the most recent run for every
// source and destination pair.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/olimci/foldersync/pkg/engine"
	"github.com/spf13/afero"
)

const (
	appDir      = "foldersync"
	historyFile = "history.json"
	envFile     = "FOLDERSYNC_HISTORY_FILE"
)

type Record struct {
	Source       string        `json:"source"`
	Destination  string        `json:"destination"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	DryRun       bool          `json:"dry_run"`
	Created      int           `json:"created"`
	Removed      int           `json:"removed"`
	Updated      int           `json:"updated"`
	Replaced     int           `json:"replaced"`
	Skipped      int           `json:"skipped"`
	SourceDigest string        `json:"source_digest,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// FromResult summarises an engine result. runErr is the error returned
// alongside it, if any.
func FromResult(res engine.Result, runErr error) Record {
	rec := Record{
		Source:      res.Source,
		Destination: res.Destination,
		StartedAt:   res.StartedAt,
		Duration:    res.Duration,
		Success:     res.Success && runErr == nil,
		DryRun:      res.DryRun,
		Created:     len(res.Plan.Create),
		Removed:     len(res.Plan.Remove),
		Updated:     len(res.Plan.Update),
		Replaced:    len(res.Plan.Replace),
		Skipped:     len(res.Skipped),
	}
	if !res.SourceDigest.IsZero() {
		rec.SourceDigest = res.SourceDigest.String()
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// Key identifies a source and destination pair.
func Key(source, destination string) string {
	return source + " -> " + destination
}

type file struct {
	Runs map[string]Record `json:"runs"`
}

// Store reads and writes the history file.
type Store struct {
	fs   afero.Fs
	Path string
}

func NewStore(fs afero.Fs, path string) Store {
	return Store{fs: fs, Path: path}
}

// DefaultStore uses $FOLDERSYNC_HISTORY_FILE when set, otherwise
// $XDG_STATE_HOME/foldersync/history.json.
func DefaultStore() (Store, error) {
	if custom := strings.TrimSpace(os.Getenv(envFile)); custom != "" {
		abs, err := filepath.Abs(custom)
		if err != nil {
			return Store{}, fmt.Errorf("resolve %s: %w", envFile, err)
		}
		return NewStore(afero.NewOsFs(), abs), nil
	}
	return NewStore(afero.NewOsFs(), filepath.Join(xdg.StateHome, appDir, historyFile)), nil
}

// Load returns every stored record, most recent first. A missing file yields
// no records.
func (s Store) Load() ([]Record, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(f.Runs))
	for _, rec := range f.Runs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return Key(out[i].Source, out[i].Destination) < Key(out[j].Source, out[j].Destination)
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out, nil
}

// Last returns the record for a pair, if one exists.
func (s Store) Last(source, destination string) (Record, bool, error) {
	f, err := s.read()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := f.Runs[Key(source, destination)]
	return rec, ok, nil
}

// Save replaces the record for rec's pair.
func (s Store) Save(rec Record) error {
	f, err := s.read()
	if err != nil {
		return err
	}
	f.Runs[Key(rec.Source, rec.Destination)] = rec
	return s.write(f)
}

func (s Store) read() (file, error) {
	f := file{Runs: map[string]Record{}}

	data, err := afero.ReadFile(s.fs, s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return file{}, fmt.Errorf("read %s: %w", s.Path, err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return file{}, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	if f.Runs == nil {
		f.Runs = map[string]Record{}
	}
	return f, nil
}

func (s Store) write(value file) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", s.Path, err)
	}

	f, err := afero.TempFile(s.fs, filepath.Dir(s.Path), "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", s.Path, err)
	}
	tp := f.Name()
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		_ = s.fs.Remove(tp)
		return fmt.Errorf("encode %s: %w", tp, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tp)
		return fmt.Errorf("close %s: %w", tp, err)
	}

	if err := s.fs.Rename(tp, s.Path); err != nil {
		_ = s.fs.Remove(tp)
		return fmt.Errorf("replace %s: %w", s.Path, err)
	}

	return nil
}
