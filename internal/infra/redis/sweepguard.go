package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultSweepGuardTTL = 36 * time.Hour

// releaseScript deletes the claim only while it still holds our owner token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// SweepGuard makes the daily reminder sweep run once per calendar day across
// replicas. The day is taken in the location of the time passed in.
type SweepGuard struct {
	client *goredis.Client
	ttl    time.Duration
	owner  string
}

func NewSweepGuard(client *goredis.Client, ttl time.Duration) (*SweepGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultSweepGuardTTL
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}

	return &SweepGuard{client: client, ttl: ttl, owner: host + ":" + uuid.NewString()}, nil
}

// Acquire claims the sweep for day. It returns false when another run already
// holds the claim.
func (g *SweepGuard) Acquire(ctx context.Context, day time.Time) (bool, error) {
	ok, err := g.client.SetNX(ctx, sweepKey(day), g.owner, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire sweep guard: %w", err)
	}
	return ok, nil
}

// Release drops this guard's claim for day so a later trigger can run again.
// A claim held by another owner is left in place.
func (g *SweepGuard) Release(ctx context.Context, day time.Time) error {
	if err := releaseScript.Run(ctx, g.client, []string{sweepKey(day)}, g.owner).Err(); err != nil {
		return fmt.Errorf("failed to release sweep guard: %w", err)
	}
	return nil
}

func sweepKey(day time.Time) string {
	return fmt.Sprintf("%s:sweep:reminders:%s", keyPrefix, day.Format(time.DateOnly))
}
