package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/olimci/foldersync/pkg/config"
	"github.com/olimci/foldersync/pkg/engine"
	"github.com/olimci/foldersync/pkg/history"
	"github.com/olimci/foldersync/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

var errSyncFailed = errors.New("sync failed")

// runner owns everything a command needs to perform synchronizations.
type runner struct {
	cmd     *cli.Command
	cfg     config.Config
	src     string
	dst     string
	logFile string
	logger  zerolog.Logger
	closer  io.Closer
	engine  *engine.Synchronizer
	history history.Store
}

func newRunner(cmd *cli.Command) (*runner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return newRunnerFromConfig(cmd, cfg)
}

func newRunnerFromConfig(cmd *cli.Command, cfg config.Config) (*runner, error) {
	src, dst, err := cfg.Roots()
	if err != nil {
		return nil, err
	}

	logFile := logging.ResolveFile(cfg.Log.File)
	logger, closer, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		File:    logFile,
		Console: stderr(cmd),
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(stdout(cmd), "Logging to %s ...\n", logFile)

	sync, err := engine.New(afero.NewOsFs(), logger, engine.Options{
		DryRun:    cfg.Sync.DryRun,
		Verify:    cfg.Sync.Verify,
		Workers:   cfg.Sync.Workers,
		Algorithm: cfg.Sync.Algorithm,
	})
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	store, err := history.DefaultStore()
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &runner{
		cmd:     cmd,
		cfg:     cfg,
		src:     src,
		dst:     dst,
		logFile: logFile,
		logger:  logger,
		closer:  closer,
		engine:  sync,
		history: store,
	}, nil
}

func (r *runner) Close() error {
	return r.closer.Close()
}

// syncOnce runs the engine, records the outcome and prints a summary. Only
// fatal engine errors are returned; an unsuccessful run is reported through
// the result.
func (r *runner) syncOnce(ctx context.Context) (engine.Result, error) {
	res, err := r.engine.Synchronize(ctx, r.src, r.dst)
	if err != nil && errors.Is(err, context.Canceled) {
		return res, err
	}

	if !res.DryRun {
		if res.Source == "" {
			res.Source, res.Destination = r.src, r.dst
		}
		if herr := r.history.Save(history.FromResult(res, err)); herr != nil {
			r.logger.Warn().Err(herr).Str("file", r.history.Path).Msg("failed to record run history")
		}
	}
	if err != nil {
		return res, err
	}

	renderResult(stdout(r.cmd), res)
	printChangedPaths(r.cmd, res.ChangedPaths)
	return res, nil
}

// run is the schedule.RunFunc used by the repeating drivers.
func (r *runner) run(ctx context.Context) error {
	_, err := r.syncOnce(ctx)
	return err
}
