package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Cron calls run on every activation of expr until ctx is done. expr uses the
// standard five field syntax or a descriptor such as "@hourly". Activations
// that fire while a run is still in progress are skipped.
func Cron(ctx context.Context, expr string, run RunFunc, logger zerolog.Logger) error {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("parse cron schedule %q: %w", expr, err)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(sched, cron.FuncJob(func() {
		if err := run(ctx); err != nil {
			logger.Error().Err(err).Msg("scheduled run failed")
		}
		logger.Info().Time("next", sched.Next(time.Now())).Msg("waiting for next run")
	}))

	logger.Info().Str("schedule", expr).Time("next", sched.Next(time.Now())).Msg("cron started")
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info().Msg("cron stopped")
	return nil
}

// cronLogger routes cron's key/value logging to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
