package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type sweeperSpy struct {
	olderThan time.Time
	swept     int64
	err       error
	calls     int
}

func (s *sweeperSpy) DeactivateExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	s.olderThan = olderThan
	s.calls++
	return s.swept, s.err
}

func (s *sweeperSpy) DeactivateExpiredMemberships(ctx context.Context, olderThan time.Time) (int64, error) {
	return s.DeactivateExpired(ctx, olderThan)
}

func TestExpirySweepUsesDefaultGrace(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	memberships := &sweeperSpy{swept: 3}
	exceptions := &sweeperSpy{swept: 2}

	job := NewExpirySweepJob(memberships, exceptions, nil)
	job.clock = func() time.Time { return now }

	task, err := NewExpirySweepTask(ExpirySweepPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	want := now.Add(-24 * time.Hour)
	require.Equal(t, want, memberships.olderThan)
	require.Equal(t, want, exceptions.olderThan)
	require.Equal(t, 1, memberships.calls)
	require.Equal(t, 1, exceptions.calls)
}

func TestExpirySweepHonoursGraceHours(t *testing.T) {
	now := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	memberships := &sweeperSpy{}

	job := NewExpirySweepJob(memberships, nil, nil)
	job.clock = func() time.Time { return now }

	task, err := NewExpirySweepTask(ExpirySweepPayload{GraceHours: 72})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Equal(t, now.Add(-72*time.Hour), memberships.olderThan)
}

func TestExpirySweepPropagatesErrors(t *testing.T) {
	memberships := &sweeperSpy{err: errors.New("deadlock")}

	job := NewExpirySweepJob(memberships, nil, nil)

	task, err := NewExpirySweepTask(ExpirySweepPayload{})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestExpirySweepSkipsRetryOnBadPayload(t *testing.T) {
	job := NewExpirySweepJob(&sweeperSpy{}, nil, nil)

	task := asynq.NewTask(TaskExpirySweep, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
