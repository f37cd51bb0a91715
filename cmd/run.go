package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "mirror the source into the destination once",
		Flags:  syncFlags(),
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return fmt.Errorf("run does not accept arguments")
	}

	r, err := newRunner(cmd)
	if err != nil {
		return err
	}
	defer r.Close()

	res, err := r.syncOnce(ctx)
	if err != nil {
		return err
	}
	if !res.Success {
		return errSyncFailed
	}
	return nil
}
