package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/centinela-ac/centinela/internal/resolver"
)

// CacheWarmupJob pre-populates the effective capability cache for users with
// recent audited activity, so the first menu render after a cache bump does
// not pay the resolve cost.
type CacheWarmupJob struct {
	Resolver *resolver.Service
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	clock    func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(resolverSvc *resolver.Service, pool *pgxpool.Pool, logger *slog.Logger) *CacheWarmupJob {
	return &CacheWarmupJob{
		Resolver: resolverSvc,
		Pool:     pool,
		Logger:   logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("cache warmup: handler not configured")
	}
	if j.Resolver == nil || j.Pool == nil {
		return errors.New("cache warmup: resolver and pool required")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	maxUsers := payload.MaxUsers
	if maxUsers <= 0 {
		maxUsers = 200
	}

	start := j.now()
	userIDs, err := j.recentUsers(ctx, maxUsers)
	if err != nil {
		j.logger().Error("load warmup users", slog.Any("error", err))
		return err
	}
	if len(userIDs) == 0 {
		j.logger().Info("no users discovered for warmup")
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, userID := range userIDs {
		g.Go(func() error {
			if _, err := j.Resolver.EffectiveCapabilities(gctx, userID); err != nil {
				// Users can disappear between discovery and warmup.
				if errors.Is(err, resolver.ErrUnknownUser) {
					return nil
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		j.logger().Error("warm effective sets", slog.Any("error", err))
		return err
	}

	j.logger().Info("completed cache warmup",
		slog.Int("users", len(userIDs)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *CacheWarmupJob) recentUsers(ctx context.Context, limit int) ([]int64, error) {
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT user_id FROM audit_entries
		WHERE occurred_at > NOW() - INTERVAL '1 day' AND user_id <> 0
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
