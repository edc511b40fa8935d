package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound indicates an unknown or expired bearer token.
var ErrTokenNotFound = errors.New("shared: token not found")

// TokenManager issues and resolves opaque bearer tokens backed by Redis.
type TokenManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type tokenPayload struct {
	UserID   int64     `json:"user_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, prefix string, ttl time.Duration) *TokenManager {
	if prefix == "" {
		prefix = "centinela_token"
	}
	return &TokenManager{client: client, prefix: prefix, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue creates a new token for the given user.
func (tm *TokenManager) Issue(ctx context.Context, userID int64) (string, error) {
	if tm == nil || tm.client == nil {
		return "", errors.New("shared: token manager not initialised")
	}
	token := uuid.NewString()
	payload, err := json.Marshal(tokenPayload{UserID: userID, IssuedAt: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	if err := tm.client.Set(ctx, tm.redisKey(token), payload, tm.ttl).Err(); err != nil {
		return "", fmt.Errorf("shared: store token: %w", err)
	}
	return token, nil
}

// Resolve returns the user behind the token, or ErrTokenNotFound.
func (tm *TokenManager) Resolve(ctx context.Context, token string) (int64, error) {
	if tm == nil || tm.client == nil {
		return 0, errors.New("shared: token manager not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, ErrTokenNotFound
	}
	raw, err := tm.client.Get(ctx, tm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}
	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, err
	}
	return payload.UserID, nil
}

// Revoke invalidates the token. Revoking an unknown token is a no-op.
func (tm *TokenManager) Revoke(ctx context.Context, token string) error {
	if tm == nil || tm.client == nil {
		return nil
	}
	return tm.client.Del(ctx, tm.redisKey(token)).Err()
}

func (tm *TokenManager) redisKey(token string) string {
	return tm.prefix + ":" + token
}
