package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olimci/foldersync/pkg/config"
	"github.com/olimci/foldersync/pkg/digest"
	"github.com/urfave/cli/v3"
)

// syncFlags are shared by every command that runs the engine.
func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "src",
			Aliases: []string{"s"},
			Usage:   "source directory",
		},
		&cli.StringFlag{
			Name:    "dst",
			Aliases: []string{"d"},
			Usage:   "destination directory",
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Aliases: []string{"n"},
			Usage:   "compute the plan without changing the destination",
		},
		&cli.BoolFlag{
			Name:  "no-verify",
			Usage: "skip the digest comparison after syncing",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "number of files hashed in parallel",
		},
		&cli.StringFlag{
			Name:  "algorithm",
			Usage: fmt.Sprintf("digest algorithm (%s or %s)", digest.AlgorithmXXH64, digest.AlgorithmSHA256),
		},
	}
}

func withSyncFlags(extra ...cli.Flag) []cli.Flag {
	return append(syncFlags(), extra...)
}

func configPath(cmd *cli.Command) string {
	if path := strings.TrimSpace(rootString(cmd, "config")); path != "" {
		return path
	}
	return config.DefaultPath()
}

// loadConfig reads the config file and applies any flags given on cmd.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return config.Config{}, err
	}

	if root := cmd.Root(); root != nil {
		if root.IsSet("log-file") {
			cfg.Log.File = root.String("log-file")
		}
		if root.IsSet("log-level") {
			cfg.Log.Level = root.String("log-level")
		}
	}

	if hasFlag(cmd, "src") && cmd.IsSet("src") {
		cfg.Sync.Source = cmd.String("src")
	}
	if hasFlag(cmd, "dst") && cmd.IsSet("dst") {
		cfg.Sync.Destination = cmd.String("dst")
	}
	if hasFlag(cmd, "dry-run") && cmd.IsSet("dry-run") {
		cfg.Sync.DryRun = cmd.Bool("dry-run")
	}
	if hasFlag(cmd, "no-verify") && cmd.IsSet("no-verify") {
		cfg.Sync.Verify = !cmd.Bool("no-verify")
	}
	if hasFlag(cmd, "workers") && cmd.IsSet("workers") {
		cfg.Sync.Workers = cmd.Int("workers")
	}
	if hasFlag(cmd, "algorithm") && cmd.IsSet("algorithm") {
		cfg.Sync.Algorithm = cmd.String("algorithm")
	}
	if hasFlag(cmd, "interval") && cmd.IsSet("interval") {
		cfg.Loop.Interval = cmd.Duration("interval")
	}
	if hasFlag(cmd, "schedule") && cmd.IsSet("schedule") {
		cfg.Cron.Schedule = cmd.String("schedule")
	}
	if hasFlag(cmd, "debounce") && cmd.IsSet("debounce") {
		cfg.Watch.Debounce = cmd.Duration("debounce")
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// hasFlag reports whether cmd itself declares the named flag.
func hasFlag(cmd *cli.Command, name string) bool {
	for _, f := range cmd.Flags {
		for _, n := range f.Names() {
			if n == name {
				return true
			}
		}
	}
	return false
}

func rootString(cmd *cli.Command, name string) string {
	if cmd == nil {
		return ""
	}
	root := cmd.Root()
	if root == nil {
		return ""
	}
	return root.String(name)
}

func stdout(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

func stderr(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.ErrWriter != nil {
		return root.ErrWriter
	}
	return os.Stderr
}

func isVerbose(cmd *cli.Command) bool {
	if cmd == nil {
		return false
	}
	if cmd.Bool("verbose") {
		return true
	}
	root := cmd.Root()
	return root != nil && root.Bool("verbose")
}

func printChangedPaths(cmd *cli.Command, paths []string) {
	if !isVerbose(cmd) || len(paths) == 0 {
		return
	}
	w := stdout(cmd)
	fmt.Fprintln(w, "changed paths:")
	for _, path := range paths {
		fmt.Fprintf(w, "  %s\n", path)
	}
}
