package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "inflight"

// Guard is the short-TTL deduplication barrier for in-flight financial
// requests. Reservation is a single atomic SET NX; the marker is released
// only by TTL expiry, so a crashed or cancelled request path can never
// wedge the guard.
type Guard struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewGuard(redis redis.Cmdable, ttl time.Duration) *Guard {
	return &Guard{redis: redis, ttl: ttl}
}

// TTL returns the reservation window.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

// Reserve attempts to acquire the in-flight marker for key. It returns
// false when an identical request is already in flight. Acquisition is
// check-and-set in one round trip; there is no window for two concurrent
// identical requests to both acquire.
func (g *Guard) Reserve(ctx context.Context, key string) (bool, error) {
	ok, err := g.redis.SetNX(ctx, redisKey(key), "processing", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Key composes the guard key from the verified account, the operation
// kind, and a caller-supplied discriminator. Callers without an explicit
// discriminator get a time bucket the size of the TTL, which collapses
// rapid-fire retries of the same operation onto one marker.
func (g *Guard) Key(accountID uuid.UUID, kind, discriminator string) string {
	if discriminator == "" {
		bucket := time.Now().Unix() / int64(g.ttl.Seconds())
		discriminator = fmt.Sprintf("t%d", bucket)
	}
	return fmt.Sprintf("%s:%s:%s", accountID, kind, discriminator)
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
