package reset

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger remembers which reset tokens have been redeemed.
type Ledger interface {
	// Claim marks id as used for ttl. It reports false when id was
	// already claimed.
	Claim(ctx context.Context, id string, ttl time.Duration) (bool, error)
}

type RedisLedger struct {
	client *redis.Client
	prefix string
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client, prefix: "reset:used:"}
}

func (l *RedisLedger) Claim(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := l.client.SetNX(ctx, l.prefix+id, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reset: claim token: %w", err)
	}
	return ok, nil
}
