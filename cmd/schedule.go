package cmd

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/olimci/foldersync/pkg/logging"
	"github.com/olimci/foldersync/pkg/schedule"
	"github.com/urfave/cli/v3"
)

func loopCommand() *cli.Command {
	return &cli.Command{
		Name:  "loop",
		Usage: "mirror the source now and then again on a fixed interval",
		Flags: withSyncFlags(
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "time between runs (default from config, 1h)",
			},
		),
		Action: loopAction,
	}
}

func loopAction(ctx context.Context, cmd *cli.Command) error {
	r, err := scheduledRunner(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	logger := logging.Component(r.logger, "loop")
	logger.Info().Dur("interval", r.cfg.Loop.Interval).Msg("loop started")
	return schedule.Loop(ctx, clockwork.NewRealClock(), r.cfg.Loop.Interval, r.run, logger)
}

func cronCommand() *cli.Command {
	return &cli.Command{
		Name:  "cron",
		Usage: "mirror the source on a cron schedule",
		Flags: withSyncFlags(
			&cli.StringFlag{
				Name:  "schedule",
				Usage: `cron expression such as "0 * * * *" or "@daily" (default from config, @hourly)`,
			},
		),
		Action: cronAction,
	}
}

func cronAction(ctx context.Context, cmd *cli.Command) error {
	r, err := scheduledRunner(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	return schedule.Cron(ctx, r.cfg.Cron.Schedule, r.run, logging.Component(r.logger, "cron"))
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "mirror the source now and again whenever it changes",
		Flags: withSyncFlags(
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "quiet period after a change before syncing (default from config, 2s)",
			},
		),
		Action: watchAction,
	}
}

func watchAction(ctx context.Context, cmd *cli.Command) error {
	r, err := scheduledRunner(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	logger := logging.Component(r.logger, "watch")
	return schedule.Watch(ctx, clockwork.NewRealClock(), r.src, r.cfg.Watch.Debounce, r.run, logger)
}

func scheduledRunner(cmd *cli.Command) (*runner, error) {
	if cmd.Args().Len() > 0 {
		return nil, fmt.Errorf("%s does not accept arguments", cmd.Name)
	}
	return newRunner(cmd)
}
