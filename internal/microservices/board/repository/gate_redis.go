package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// InflightGate marks an order as mid-mutation for every console sharing the
// same Redis. The TTL bounds how long a crashed console can hold an order.
type InflightGate struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewInflightGate(rdb *redis.Client, ttl time.Duration) *InflightGate {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &InflightGate{rdb: rdb, ttl: ttl, prefix: "kitchen-sync:inflight:"}
}

func (g *InflightGate) Key(orderID int64) string {
	return g.prefix + strconv.FormatInt(orderID, 10)
}

// Acquire reports false when another holder already owns the order.
func (g *InflightGate) Acquire(ctx context.Context, orderID int64, mutationID string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, g.Key(orderID), mutationID, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire inflight gate for order %d: %w", orderID, err)
	}
	return ok, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release frees the order only if mutationID still holds it.
func (g *InflightGate) Release(ctx context.Context, orderID int64, mutationID string) error {
	if err := releaseScript.Run(ctx, g.rdb, []string{g.Key(orderID)}, mutationID).Err(); err != nil {
		return fmt.Errorf("release inflight gate for order %d: %w", orderID, err)
	}
	return nil
}
