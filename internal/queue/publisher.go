package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfirmed is returned when the broker nacks a publish.
var ErrNotConfirmed = errors.New("publish not confirmed by broker")

// RabbitMQPublisher publishes on a confirm-mode channel, so a nil error means
// the broker has taken ownership of the message.
type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time

	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg OutboundMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid outbound message: %w", err)
	}
	queue, err := queueFor(msg.Channel)
	if err != nil {
		return err
	}

	publishing, err := newPublishing(msg, p.now())
	if err != nil {
		return err
	}

	confirm, err := p.publish(ctx, queue, publishing)
	if err != nil {
		return err
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for publish confirm on %q: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("%w: queue %q message %s", ErrNotConfirmed, queue, msg.ID)
	}
	return nil
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue string, publishing amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.confirmChannel(ctx)
	if err != nil {
		return nil, err
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, publishing)
	if err != nil {
		_ = ch.Close()
		p.ch = nil
		return nil, fmt.Errorf("failed to publish message to queue %q: %w", queue, err)
	}
	return confirm, nil
}

// confirmChannel returns the cached channel, reopening it after a channel or
// connection failure. Callers hold p.mu.
func (p *RabbitMQPublisher) confirmChannel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	p.ch = ch
	return ch, nil
}

func newPublishing(msg OutboundMessage, now time.Time) (amqp.Publishing, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal outbound message: %w", err)
	}

	return amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     now.UTC(),
		AppId:         observability.ServiceName,
		MessageId:     msg.ID,
		CorrelationId: msg.CorrelationID,
		Type:          msg.Channel.String(),
		Body:          payload,
	}, nil
}

// Close releases the publish channel. The connection belongs to RabbitMQ.
func (p *RabbitMQPublisher) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return nil
	}
	err := p.ch.Close()
	p.ch = nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}
