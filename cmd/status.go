package cmd

import (
	"context"
	"fmt"

	"github.com/olimci/foldersync/pkg/history"
	"github.com/urfave/cli/v3"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "show the last run for every source and destination",
		Action: statusAction,
	}
}

func statusAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 0 {
		return fmt.Errorf("status does not accept arguments")
	}

	store, err := history.DefaultStore()
	if err != nil {
		return err
	}
	records, err := store.Load()
	if err != nil {
		return err
	}

	renderHistory(stdout(cmd), records)
	return nil
}
