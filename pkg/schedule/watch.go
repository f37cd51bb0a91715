package schedule

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/olimci/foldersync/pkg/snapshot"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Watch calls run once at start and again whenever the tree under root
// changes, after debounce has passed without further events. fsnotify does
// not watch recursively, so every directory is registered and directories
// created later are added as they appear.
func Watch(ctx context.Context, clock clockwork.Clock, root string, debounce time.Duration, run RunFunc, logger zerolog.Logger) error {
	if debounce <= 0 {
		return fmt.Errorf("watch debounce must be positive, got %s", debounce)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close file watcher")
		}
	}()

	fs := afero.NewOsFs()
	if err := addTree(fs, watcher, root); err != nil {
		return err
	}
	logger.Info().Str("root", root).Int("directories", len(watcher.WatchList())).Msg("watching source")

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Msg("run failed, stopping watch")
		return err
	}

	var (
		timer   clockwork.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("watch stopped")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("change detected")

			if ev.Has(fsnotify.Create) {
				if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
					if err := addTree(fs, watcher, ev.Name); err != nil {
						logger.Warn().Err(err).Str("path", ev.Name).Msg("failed to watch new directory")
					}
				}
			}

			if timer == nil {
				timer = clock.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			pending = timer.Chan()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("watcher error")

		case <-pending:
			pending = nil
			if err := run(ctx); err != nil {
				logger.Error().Err(err).Msg("run failed, stopping watch")
				return err
			}
		}
	}
}

// addTree registers dir and every directory beneath it.
func addTree(fs afero.Fs, watcher *fsnotify.Watcher, dir string) error {
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}

	snap, err := snapshot.Capture(fs, dir)
	if err != nil {
		if errors.Is(err, snapshot.ErrInvalidRoot) {
			// removed again before it could be listed
			return nil
		}
		return err
	}
	for _, rel := range snap.Paths() {
		entry, _ := snap.Get(rel)
		if entry.Kind != snapshot.KindDir {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := watcher.Add(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("watch %q: %w", path, err)
		}
	}
	return nil
}
