package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func planCommand() *cli.Command {
	flags := []cli.Flag{}
	for _, f := range syncFlags() {
		if f.Names()[0] == "dry-run" || f.Names()[0] == "no-verify" {
			continue
		}
		flags = append(flags, f)
	}

	return &cli.Command{
		Name:   "plan",
		Usage:  "show what run would change without touching the destination",
		Flags:  flags,
		Action: planAction,
	}
}

func planAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return fmt.Errorf("plan does not accept arguments")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Sync.DryRun = true

	r, err := newRunnerFromConfig(cmd, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.engine.Synchronize(ctx, r.src, r.dst)
	if err != nil {
		return err
	}
	renderPlan(stdout(cmd), res.Plan)
	return nil
}
