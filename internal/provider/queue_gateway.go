package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/queue"
)

var _ Gateway = (*QueueGateway)(nil)

// QueueGateway hands deliveries to the channel work queue. A nil error means
// the broker accepted the message, not that it reached the recipient.
type QueueGateway struct {
	publisher queue.Publisher
	newID     func() string
}

func NewQueueGateway(publisher queue.Publisher) (*QueueGateway, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	return &QueueGateway{publisher: publisher, newID: uuid.NewString}, nil
}

func (g *QueueGateway) SendEmail(ctx context.Context, to string, content string) error {
	return g.publish(ctx, domain.MessageTypeEmail, to, content)
}

func (g *QueueGateway) SendSMS(ctx context.Context, to string, content string) error {
	return g.publish(ctx, domain.MessageTypeSMS, to, content)
}

func (g *QueueGateway) publish(ctx context.Context, channel domain.MessageType, to string, content string) error {
	if strings.TrimSpace(to) == "" {
		return ErrNoRecipient
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	msg := queue.OutboundMessage{
		ID:            g.newID(),
		CorrelationID: correlationID,
		Channel:       channel,
		Recipient:     strings.TrimSpace(to),
		Content:       content,
	}

	if err := g.publisher.Publish(ctx, msg); err != nil {
		return &GatewayError{
			Channel:   channel,
			Message:   "failed to enqueue delivery",
			Transient: !errors.Is(err, domain.ErrValidation),
			Cause:     err,
		}
	}
	return nil
}
