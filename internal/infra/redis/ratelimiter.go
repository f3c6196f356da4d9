package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "careops"
	windowSeconds = 1
	minPoll       = 5 * time.Millisecond
	maxPoll       = 50 * time.Millisecond
)

// INCR then arm the expiry on the first hit of a window.
var allowScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ ratelimit.RateLimiter = (*RedisRateLimiter)(nil)

// RedisRateLimiter counts sends in fixed one-second windows per channel.
type RedisRateLimiter struct {
	client *goredis.Client
	limits ratelimit.Limits
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRedisRateLimiter(client *goredis.Client, limits ratelimit.Limits) (*RedisRateLimiter, error) {
	return newRedisRateLimiter(client, limits, time.Now, sleepWithContext)
}

func newRedisRateLimiter(
	client *goredis.Client,
	limits ratelimit.Limits,
	nowFn func() time.Time,
	sleepFn func(ctx context.Context, d time.Duration) error,
) (*RedisRateLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if sleepFn == nil {
		sleepFn = sleepWithContext
	}

	return &RedisRateLimiter{
		client: client,
		limits: limits,
		now:    nowFn,
		sleep:  sleepFn,
	}, nil
}

// Allow takes one unit of the channel's budget for the current second.
func (r *RedisRateLimiter) Allow(ctx context.Context, channel domain.MessageType) (bool, error) {
	if r == nil || r.client == nil {
		return false, fmt.Errorf("rate limiter is not initialized")
	}
	if !channel.External() {
		return false, fmt.Errorf("%w: channel %q is not rate limited", domain.ErrValidation, channel)
	}

	now := r.now()
	key := rateLimitKey(channel, now)
	result, err := allowScript.Run(ctx, r.client, []string{key}, r.limits.For(channel), windowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate rate limit for %s: %w", channel, err)
	}

	return result == 1, nil
}

// Wait blocks until the channel has budget or ctx ends. While throttled it
// polls toward the start of the next window.
func (r *RedisRateLimiter) Wait(ctx context.Context, channel domain.MessageType) error {
	for {
		allowed, err := r.Allow(ctx, channel)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if err := r.sleep(ctx, pollDelay(r.now())); err != nil {
			return err
		}
	}
}

func rateLimitKey(channel domain.MessageType, now time.Time) string {
	return fmt.Sprintf("%s:ratelimit:%s:%d", keyPrefix, strings.ToLower(channel.String()), now.UTC().Unix())
}

// pollDelay is the time left in the current window, clamped to [minPoll, maxPoll].
func pollDelay(now time.Time) time.Duration {
	next := now.Truncate(time.Second).Add(time.Second)
	return min(max(next.Sub(now), minPoll), maxPoll)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
