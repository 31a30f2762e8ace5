package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const revokedPrefix = "revoked_token:"

// RevokedToken is stored for each logged-out token until it would have expired anyway.
type RevokedToken struct {
	UserID    string    `json:"user_id"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Revoker interface {
	Revoke(ctx context.Context, p *Principal) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevocationList keeps logged-out token ids in redis.
type RedisRevocationList struct {
	Client *redis.Client
}

func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{Client: client}
}

func (c *RedisRevocationList) Revoke(ctx context.Context, p *Principal) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if p.TokenID == "" {
		return nil
	}

	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	entry, err := json.Marshal(RevokedToken{UserID: p.UserID, RevokedAt: time.Now(), ExpiresAt: p.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal revoked token: %w", err)
	}
	if err := c.Client.Set(ctx, revokedPrefix+p.TokenID, entry, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store revoked token in Redis: %w", err)
	}
	return nil
}

func (c *RedisRevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if c.Client == nil || tokenID == "" {
		return false, nil
	}
	n, err := c.Client.Exists(ctx, revokedPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
