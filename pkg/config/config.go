// Package config loads foldersync settings from defaults, a TOML file and
// FOLDERSYNC_ environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	koanftoml "github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/olimci/foldersync/pkg/digest"
	"github.com/olimci/foldersync/pkg/logging"
	"github.com/olimci/foldersync/pkg/utils/fileutils"
	"github.com/olimci/foldersync/pkg/version"
	"github.com/robfig/cron/v3"
)

const (
	envPrefix  = "FOLDERSYNC_"
	configDir  = "foldersync"
	configFile = "config.toml"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Version string `koanf:"version"`
	Sync    Sync   `koanf:"sync"`
	Log     Log    `koanf:"log"`
	Loop    Loop   `koanf:"loop"`
	Cron    Cron   `koanf:"cron"`
	Watch   Watch  `koanf:"watch"`
}

type Sync struct {
	Source      string `koanf:"source" toml:"source"`
	Destination string `koanf:"destination" toml:"destination"`
	DryRun      bool   `koanf:"dry_run" toml:"dry_run"`
	Verify      bool   `koanf:"verify" toml:"verify"`
	Workers     int    `koanf:"workers" toml:"workers"`
	Algorithm   string `koanf:"algorithm" toml:"algorithm"`
}

type Log struct {
	File  string `koanf:"file" toml:"file"` // empty means the XDG state default
	Level string `koanf:"level" toml:"level"`
}

type Loop struct {
	Interval time.Duration `koanf:"interval"`
}

type Cron struct {
	Schedule string `koanf:"schedule" toml:"schedule"`
}

type Watch struct {
	Debounce time.Duration `koanf:"debounce"`
}

func Default() Config {
	return Config{
		Version: version.Version,
		Sync: Sync{
			Verify:    true,
			Workers:   1,
			Algorithm: digest.AlgorithmXXH64,
		},
		Log: Log{
			Level: "info",
		},
		Loop: Loop{
			Interval: time.Hour,
		},
		Cron: Cron{
			Schedule: "@hourly",
		},
		Watch: Watch{
			Debounce: 2 * time.Second,
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/foldersync/config.toml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, configDir, configFile)
}

// Load reads the config at path layered over the defaults. A missing file is
// not an error; env vars such as FOLDERSYNC_SYNC__SOURCE override both.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Default().toMap(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), koanftoml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("stat %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Version == "" {
		cfg.Version = version.Version
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if err := version.EnsureCompatible(c.Version); err != nil {
		errs = append(errs, fmt.Errorf("unsupported config version %q: %w", c.Version, err))
	}
	if err := digest.ValidateAlgorithm(c.Sync.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if c.Sync.Workers < 1 {
		errs = append(errs, fmt.Errorf("sync.workers must be at least 1, got %d", c.Sync.Workers))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Loop.Interval <= 0 {
		errs = append(errs, fmt.Errorf("loop.interval must be positive, got %s", c.Loop.Interval))
	}
	if c.Watch.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("watch.debounce must be positive, got %s", c.Watch.Debounce))
	}
	if _, err := cron.ParseStandard(c.Cron.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("cron.schedule %q: %w", c.Cron.Schedule, err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Roots returns the absolute source and destination, failing when either is unset.
func (c Config) Roots() (string, string, error) {
	if strings.TrimSpace(c.Sync.Source) == "" {
		return "", "", fmt.Errorf("%w: no source directory configured", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Sync.Destination) == "" {
		return "", "", fmt.Errorf("%w: no destination directory configured", ErrInvalidConfig)
	}

	src, err := fileutils.AbsPath(c.Sync.Source)
	if err != nil {
		return "", "", err
	}
	dst, err := fileutils.AbsPath(c.Sync.Destination)
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// Save writes cfg to path as TOML, replacing any existing file atomically.
func Save(path string, cfg Config) error {
	if cfg.Version == "" {
		cfg.Version = version.Version
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", path, err)
	}
	tp := f.Name()
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg.fileView()); err != nil {
		_ = os.Remove(tp)
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tp)
		return fmt.Errorf("close %s: %w", tp, err)
	}

	if err := os.Rename(tp, path); err != nil {
		_ = os.Remove(tp)
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}

// Encode renders cfg in the on-disk TOML layout.
func Encode(cfg Config) (string, error) {
	var sb strings.Builder
	if err := toml.NewEncoder(&sb).Encode(cfg.fileView()); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// fileView mirrors Config with durations as strings so the file stays
// readable ("1h" rather than nanoseconds).
type fileView struct {
	Version string `toml:"version"`
	Sync    Sync   `toml:"sync"`
	Log     Log    `toml:"log"`
	Loop    struct {
		Interval string `toml:"interval"`
	} `toml:"loop"`
	Cron  Cron `toml:"cron"`
	Watch struct {
		Debounce string `toml:"debounce"`
	} `toml:"watch"`
}

func (c Config) fileView() fileView {
	v := fileView{
		Version: c.Version,
		Sync:    c.Sync,
		Log:     c.Log,
		Cron:    c.Cron,
	}
	v.Loop.Interval = c.Loop.Interval.String()
	v.Watch.Debounce = c.Watch.Debounce.String()
	return v
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"version":          c.Version,
		"sync.source":      c.Sync.Source,
		"sync.destination": c.Sync.Destination,
		"sync.dry_run":     c.Sync.DryRun,
		"sync.verify":      c.Sync.Verify,
		"sync.workers":     c.Sync.Workers,
		"sync.algorithm":   c.Sync.Algorithm,
		"log.file":         c.Log.File,
		"log.level":        c.Log.Level,
		"loop.interval":    c.Loop.Interval.String(),
		"cron.schedule":    c.Cron.Schedule,
		"watch.debounce":   c.Watch.Debounce.String(),
	}
}
