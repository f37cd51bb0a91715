package cmd

import (
	"context"

	"github.com/olimci/foldersync/pkg/version"
	"github.com/urfave/cli/v3"
)

// Commands:
// run
//   makes the destination an exact mirror of the source, once
//
// plan
//   prints what run would change without touching the destination
//
// loop / cron / watch
//   repeat run on a fixed interval, on a cron schedule, or whenever the
//   source changes
//
// status
//   shows the last recorded run for every source/destination pair
//
// config init|show
//   writes a starter config file or prints the effective configuration

func Execute(ctx context.Context, args []string) error {
	return newApp().Run(ctx, args)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "foldersync",
		Usage:   "keep a destination folder an exact mirror of a source folder",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the config file (default $XDG_CONFIG_HOME/foldersync/config.toml)",
				Sources: cli.EnvVars("FOLDERSYNC_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "log file, or a directory to hold .folders_sync.log",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "show changed filesystem paths",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			planCommand(),
			loopCommand(),
			cronCommand(),
			watchCommand(),
			statusCommand(),
			configCommand(),
			versionCommand(),
		},
	}
}
