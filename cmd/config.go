package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/olimci/foldersync/pkg/config"
	"github.com/urfave/cli/v3"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "manage the config file",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "write a config file with default settings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "src", Usage: "source directory"},
					&cli.StringFlag{Name: "dst", Usage: "destination directory"},
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "overwrite an existing config file",
					},
				},
				Action: configInitAction,
			},
			{
				Name:   "show",
				Usage:  "print the effective configuration",
				Action: configShowAction,
			},
		},
	}
}

func configInitAction(_ context.Context, cmd *cli.Command) error {
	path := configPath(cmd)

	if _, err := os.Stat(path); err == nil {
		if !cmd.Bool("force") {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	cfg := config.Default()
	cfg.Sync.Source = cmd.String("src")
	cfg.Sync.Destination = cmd.String("dst")

	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "wrote config to %s\n", path)
	return nil
}

func configShowAction(_ context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out, err := config.Encode(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout(cmd), "# %s\n%s", configPath(cmd), out)
	return nil
}
