package provider

import (
	"context"
	"fmt"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
)

var _ Gateway = (*RateLimitedGateway)(nil)

// RateLimitedGateway waits for a per-channel slot before each send.
type RateLimitedGateway struct {
	next    Gateway
	limiter ratelimit.RateLimiter
}

func NewRateLimitedGateway(next Gateway, limiter ratelimit.RateLimiter) (*RateLimitedGateway, error) {
	if next == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	return &RateLimitedGateway{next: next, limiter: limiter}, nil
}

func (g *RateLimitedGateway) SendEmail(ctx context.Context, to string, content string) error {
	if err := g.wait(ctx, domain.MessageTypeEmail); err != nil {
		return err
	}
	return g.next.SendEmail(ctx, to, content)
}

func (g *RateLimitedGateway) SendSMS(ctx context.Context, to string, content string) error {
	if err := g.wait(ctx, domain.MessageTypeSMS); err != nil {
		return err
	}
	return g.next.SendSMS(ctx, to, content)
}

func (g *RateLimitedGateway) wait(ctx context.Context, channel domain.MessageType) error {
	if err := g.limiter.Wait(ctx, channel); err != nil {
		return &GatewayError{Channel: channel, Message: "rate limit wait failed", Transient: true, Cause: err}
	}
	return nil
}
