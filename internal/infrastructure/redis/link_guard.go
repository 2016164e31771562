package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"finlink/internal/domain/aggregation"
)

const linkGuardPrefix = "finlink:link:"

// LinkGuard records spent link tokens with SET NX so a token exchanged once
// is refused for ttl.
type LinkGuard struct {
	client *redis.Client
	ttl    time.Duration
}

var _ aggregation.LinkGuard = (*LinkGuard)(nil)

func NewLinkGuard(client *redis.Client, ttl time.Duration) *LinkGuard {
	return &LinkGuard{client: client, ttl: ttl}
}

// Claim reports true the first time key is seen within the TTL.
func (g *LinkGuard) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := g.client.SetNX(ctx, linkGuardKey(key), time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim link token: %w", err)
	}
	return ok, nil
}

// Release forgets key so the token can be claimed again.
func (g *LinkGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, linkGuardKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to release link token: %w", err)
	}
	return nil
}

func linkGuardKey(key string) string {
	return linkGuardPrefix + key
}
