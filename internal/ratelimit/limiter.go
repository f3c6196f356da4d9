package ratelimit

import (
	"context"

	"github.com/kursadbilgin/careops-engine/internal/domain"
)

const DefaultPerSecond = 100

// RateLimiter throttles outbound EMAIL and SMS sends. Budgets are global per
// channel, shared by every replica.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.MessageType) (bool, error)
	Wait(ctx context.Context, channel domain.MessageType) error
}

// Limits is the per-second budget of each channel. Zero entries fall back to
// Default, and a zero Default to DefaultPerSecond.
type Limits struct {
	Default int
	Email   int
	SMS     int
}

func (l Limits) For(channel domain.MessageType) int {
	var limit int
	switch channel {
	case domain.MessageTypeEmail:
		limit = l.Email
	case domain.MessageTypeSMS:
		limit = l.SMS
	}
	if limit > 0 {
		return limit
	}
	if l.Default > 0 {
		return l.Default
	}
	return DefaultPerSecond
}
