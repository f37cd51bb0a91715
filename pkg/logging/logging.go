// Package logging builds the zerolog logger shared by the engine and the
// scheduling drivers. Records go to the console in a human readable form and
// to an append-only log file as JSON lines.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	appDir          = "foldersync"
	defaultFileName = "sync.log"
	// dirFileName is appended when the configured log file is a directory.
	dirFileName = ".folders_sync.log"
)

type Options struct {
	Level   string
	File    string    // empty disables file output
	Console io.Writer // nil disables console output
	NoColor bool
}

// DefaultFile returns $XDG_STATE_HOME/foldersync/sync.log.
func DefaultFile() string {
	return filepath.Join(xdg.StateHome, appDir, defaultFileName)
}

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(raw string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", raw)
	}
}

// ResolveFile maps a configured log path to the file that will be written.
func ResolveFile(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultFile()
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, dirFileName)
	}
	return path
}

// New returns a logger writing to the console and to opts.File. The returned
// closer releases the log file and must be called on shutdown.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var writers []io.Writer
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: time.DateTime,
			NoColor:    opts.NoColor || !isTerminal(opts.Console),
		})
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, err
		}
		writers = append(writers, f)
		closer = f
	}

	if len(writers) == 0 {
		return zerolog.Nop(), closer, nil
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	return logger, closer, nil
}

// Component returns a child logger tagged with the component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
