package shared

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestTokenManager(t *testing.T) (*TokenManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenManager(client, "centinela_token", time.Hour), mr
}

func TestTokenIssueAndResolve(t *testing.T) {
	tm, _ := newTestTokenManager(t)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := tm.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, int64(7), userID)
}

func TestTokenResolveUnknown(t *testing.T) {
	tm, _ := newTestTokenManager(t)

	_, err := tm.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrTokenNotFound)

	_, err = tm.Resolve(context.Background(), "  ")
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenRevoke(t *testing.T) {
	tm, _ := newTestTokenManager(t)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 7)
	require.NoError(t, err)

	require.NoError(t, tm.Revoke(ctx, token))
	_, err = tm.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, tm.Revoke(ctx, token))
}

func TestTokenExpires(t *testing.T) {
	tm, mr := newTestTokenManager(t)
	ctx := context.Background()

	token, err := tm.Issue(ctx, 7)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)

	_, err = tm.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrTokenNotFound)
}
