package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// Sweeper deactivates expired rows. Both membership and exception
// repositories satisfy this shape.
type Sweeper interface {
	DeactivateExpired(ctx context.Context, olderThan time.Time) (int64, error)
}

type membershipSweeper interface {
	DeactivateExpiredMemberships(ctx context.Context, olderThan time.Time) (int64, error)
}

// ExpirySweepJob flips long-expired membership and exception rows to
// inactive. The resolver's in-effect checks already exclude them; the sweep
// keeps the active partial indexes small.
type ExpirySweepJob struct {
	Memberships membershipSweeper
	Exceptions  Sweeper
	Logger      *slog.Logger
	clock       func() time.Time
}

// NewExpirySweepJob wires dependencies for the sweep handler.
func NewExpirySweepJob(memberships membershipSweeper, exceptions Sweeper, logger *slog.Logger) *ExpirySweepJob {
	return &ExpirySweepJob{
		Memberships: memberships,
		Exceptions:  exceptions,
		Logger:      logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes expiry sweep tasks.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	var payload ExpirySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	grace := time.Duration(payload.GraceHours) * time.Hour
	if grace <= 0 {
		grace = 24 * time.Hour
	}
	cutoff := j.now().Add(-grace)
	logger := j.logger().With(slog.Time("cutoff", cutoff))

	var swept int64
	if j.Memberships != nil {
		n, err := j.Memberships.DeactivateExpiredMemberships(ctx, cutoff)
		if err != nil {
			logger.Error("sweep memberships", slog.Any("error", err))
			return err
		}
		swept += n
	}
	if j.Exceptions != nil {
		n, err := j.Exceptions.DeactivateExpired(ctx, cutoff)
		if err != nil {
			logger.Error("sweep exceptions", slog.Any("error", err))
			return err
		}
		swept += n
	}
	logger.Info("completed expiry sweep", slog.Int64("rows", swept))
	return nil
}

func (j *ExpirySweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *ExpirySweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
