// Package schedule drives repeated synchronizations: on a fixed interval, on
// a cron schedule, or whenever the source tree changes.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// RunFunc performs one synchronization.
type RunFunc func(ctx context.Context) error

// Loop calls run immediately and then again each time interval has passed
// since the previous run finished, until ctx is done. The first error
// returned by run stops the loop and is returned.
func Loop(ctx context.Context, clock clockwork.Clock, interval time.Duration, run RunFunc, logger zerolog.Logger) error {
	if interval <= 0 {
		return fmt.Errorf("loop interval must be positive, got %s", interval)
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	for {
		if err := run(ctx); err != nil {
			logger.Error().Err(err).Msg("run failed, stopping loop")
			return err
		}
		next := clock.After(interval)
		logger.Info().Time("next", clock.Now().Add(interval)).Msg("waiting for next run")

		select {
		case <-ctx.Done():
			logger.Info().Msg("loop stopped")
			return nil
		case <-next:
		}
	}
}
