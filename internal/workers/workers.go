// Package workers holds the periodic maintenance jobs run by cmd/worker.
package workers

import (
	"context"
	"time"

	"github.com/adhocore/gronx"
	"github.com/cockroachdb/errors"
	"propflow/internal/pkg/logger"
)

type DeliveryPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneDeliveryAttempts drops delivery log rows older than retentionDays.
// A non-positive retention keeps everything.
func PruneDeliveryAttempts(ctx context.Context, pruner DeliveryPruner, retentionDays int, now time.Time) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := now.AddDate(0, 0, -retentionDays)
	n, err := pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	lg := logger.For("workers")
	lg.Info().
		Int64("deleted", n).
		Time("cutoff", cutoff).
		Msg("pruned webhook delivery attempts")
	return n, nil
}

// NextRun returns the first tick of a cron expression strictly after ref.
func NextRun(expr string, ref time.Time) (time.Time, error) {
	if !gronx.New().IsValid(expr) {
		return time.Time{}, errors.Newf("invalid cron expression %q", expr)
	}
	return gronx.NextTickAfter(expr, ref, false)
}

// Schedule runs job at every tick of expr until ctx is cancelled. Job errors
// are logged and do not stop the loop.
func Schedule(ctx context.Context, name, expr string, job func(ctx context.Context) error) error {
	lg := logger.For("workers").With().Str("job", name).Logger()

	for {
		next, err := NextRun(expr, time.Now())
		if err != nil {
			return err
		}

		lg.Info().Time("next_run", next).Msg("job scheduled")
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		if err := job(ctx); err != nil {
			lg.Error().Err(err).Msg("job failed")
		}
	}
}
