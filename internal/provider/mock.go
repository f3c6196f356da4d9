package provider

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"go.uber.org/zap"
)

const defaultMockDelay = 100 * time.Millisecond

// SentMessage is a delivery observed by MockGateway.
type SentMessage struct {
	Channel domain.MessageType
	To      string
	Content string
}

var _ Gateway = (*MockGateway)(nil)

// MockGateway simulates a provider: it waits, logs and succeeds unless Fail
// says otherwise.
type MockGateway struct {
	Delay time.Duration
	// Fail, when set, decides the outcome of each send.
	Fail func(channel domain.MessageType, to string) error

	logger *zap.Logger

	mu   sync.Mutex
	sent []SentMessage
}

func NewMockGateway(logger *zap.Logger) *MockGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MockGateway{Delay: defaultMockDelay, logger: logger}
}

func (g *MockGateway) SendEmail(ctx context.Context, to string, content string) error {
	return g.send(ctx, domain.MessageTypeEmail, to, content)
}

func (g *MockGateway) SendSMS(ctx context.Context, to string, content string) error {
	return g.send(ctx, domain.MessageTypeSMS, to, content)
}

// Sent returns a copy of every successful send, in order.
func (g *MockGateway) Sent() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]SentMessage(nil), g.sent...)
}

func (g *MockGateway) send(ctx context.Context, channel domain.MessageType, to string, content string) error {
	if g.Delay > 0 {
		timer := time.NewTimer(g.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return &GatewayError{Channel: channel, Message: "mock send interrupted", Transient: true, Cause: ctx.Err()}
		case <-timer.C:
		}
	}

	if g.Fail != nil {
		if err := g.Fail(channel, to); err != nil {
			return err
		}
	}

	g.logger.Info("mock gateway send",
		zap.String("channel", channel.String()),
		zap.String("to", to),
		zap.String("content", content),
	)

	g.mu.Lock()
	g.sent = append(g.sent, SentMessage{Channel: channel, To: to, Content: content})
	g.mu.Unlock()
	return nil
}
