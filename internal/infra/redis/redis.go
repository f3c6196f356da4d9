package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/redis/go-redis/v9"
)

const (
	pingTimeout  = 5 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
)

// NewRedis connects the client shared by the rate limiter, the sweep guard
// and the readiness probe. Short socket timeouts keep a slow Redis from
// stalling dispatch; both callers treat Redis errors as non-fatal.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	applyDefaults(opts)

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr, err)
	}

	return client, nil
}

// applyDefaults fills settings the URL did not set.
func applyDefaults(opts *redis.Options) {
	if opts.ClientName == "" {
		opts.ClientName = observability.ServiceName
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = readTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = writeTimeout
	}
}
