package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
	goredis "github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, rdb *goredis.Client, limits ratelimit.Limits, now *time.Time) *RedisRateLimiter {
	t.Helper()

	limiter, err := newRedisRateLimiter(rdb, limits, func() time.Time { return *now }, sleepWithContext)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}
	return limiter
}

func mustAllow(t *testing.T, limiter *RedisRateLimiter, channel domain.MessageType) bool {
	t.Helper()

	allowed, err := limiter.Allow(context.Background(), channel)
	if err != nil {
		t.Fatalf("Allow(%s) error = %v", channel, err)
	}
	return allowed
}

func TestRedisRateLimiterAllowWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	limiter := newTestLimiter(t, newTestRedisClient(t), ratelimit.Limits{Default: 2}, &now)

	if !mustAllow(t, limiter, domain.MessageTypeSMS) || !mustAllow(t, limiter, domain.MessageTypeSMS) {
		t.Fatal("first two sends should be allowed")
	}
	if mustAllow(t, limiter, domain.MessageTypeSMS) {
		t.Fatal("third send in the same second should be throttled")
	}

	now = now.Add(time.Second)
	if !mustAllow(t, limiter, domain.MessageTypeSMS) {
		t.Fatal("next window should allow a send")
	}
}

func TestRedisRateLimiterPerChannelBudgets(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_100, 0)
	limiter := newTestLimiter(t, newTestRedisClient(t), ratelimit.Limits{Default: 3, SMS: 1}, &now)

	if !mustAllow(t, limiter, domain.MessageTypeSMS) {
		t.Fatal("first sms should be allowed")
	}
	if mustAllow(t, limiter, domain.MessageTypeSMS) {
		t.Fatal("sms budget of 1 should be exhausted")
	}

	for i := 0; i < 3; i++ {
		if !mustAllow(t, limiter, domain.MessageTypeEmail) {
			t.Fatalf("email %d should use its own budget", i+1)
		}
	}
	if mustAllow(t, limiter, domain.MessageTypeEmail) {
		t.Fatal("fourth email should be throttled")
	}
}

func TestRedisRateLimiterRejectsInternalChannel(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_150, 0)
	limiter := newTestLimiter(t, newTestRedisClient(t), ratelimit.Limits{}, &now)

	for _, channel := range []domain.MessageType{domain.MessageTypeAlert, ""} {
		if _, err := limiter.Allow(context.Background(), channel); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("Allow(%q) error = %v, want ErrValidation", channel, err)
		}
	}
}

func TestRedisRateLimiterWait(t *testing.T) {
	t.Parallel()

	rdb := newTestRedisClient(t)

	now := time.Unix(1_700_000_200, 0)
	var slept []time.Duration
	limiter, err := newRedisRateLimiter(
		rdb,
		ratelimit.Limits{Default: 1},
		func() time.Time { return now },
		func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(time.Second)
			return nil
		},
	)
	if err != nil {
		t.Fatalf("newRedisRateLimiter() error = %v", err)
	}

	if !mustAllow(t, limiter, domain.MessageTypeEmail) {
		t.Fatal("expected first call to be allowed")
	}
	if err := limiter.Wait(context.Background(), domain.MessageTypeEmail); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if len(slept) != 1 || slept[0] != maxPoll {
		t.Fatalf("slept = %v, want [%s]", slept, maxPoll)
	}
}

func TestRedisRateLimiterWaitContextDeadline(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_300, 0)
	limiter := newTestLimiter(t, newTestRedisClient(t), ratelimit.Limits{Default: 1}, &now)

	if !mustAllow(t, limiter, domain.MessageTypeSMS) {
		t.Fatal("expected first call to be allowed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx, domain.MessageTypeSMS)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestRedisRateLimiterKeyLayout(t *testing.T) {
	t.Parallel()

	mr, rdb := newTestRedis(t)

	now := time.Unix(1_700_000_400, 0)
	limiter := newTestLimiter(t, rdb, ratelimit.Limits{Default: 5}, &now)

	mustAllow(t, limiter, domain.MessageTypeSMS)

	key := "careops:ratelimit:sms:1700000400"
	if !mr.Exists(key) {
		t.Fatalf("expected key %q, have %v", key, mr.Keys())
	}
	if ttl := mr.TTL(key); ttl != time.Second {
		t.Fatalf("TTL(%q) = %s, want 1s", key, ttl)
	}
}

func TestPollDelay(t *testing.T) {
	t.Parallel()

	base := time.Unix(1_700_000_500, 0)
	tests := []struct {
		name string
		now  time.Time
		want time.Duration
	}{
		{name: "window start caps at max", now: base, want: maxPoll},
		{name: "near window end", now: base.Add(980 * time.Millisecond), want: 20 * time.Millisecond},
		{name: "floor at min", now: base.Add(999 * time.Millisecond), want: minPoll},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := pollDelay(tt.now); got != tt.want {
				t.Fatalf("pollDelay() = %s, want %s", got, tt.want)
			}
		})
	}
}

func newTestRedisClient(t *testing.T) *goredis.Client {
	t.Helper()

	_, rdb := newTestRedis(t)
	return rdb
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := goredis.NewClient(&goredis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = rdb.Close()
	})

	return mr, rdb
}
