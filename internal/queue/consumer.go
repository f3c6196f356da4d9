package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const deliveryCountHeader = "x-delivery-count"

// RabbitMQConsumer drains channel work queues. Each Consume call holds its
// own AMQP channel and resubscribes with backoff when the broker goes away.
type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if prefetch < 1 {
		prefetch = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RabbitMQConsumer{
		client:   client,
		prefetch: prefetch,
		logger:   logger,
	}
}

// Consume blocks until ctx is done. Handler errors never stop it; they only
// decide how the delivery is settled.
func (c *RabbitMQConsumer) Consume(ctx context.Context, channel domain.MessageType, handler MessageHandler) error {
	if c == nil || c.client == nil {
		return fmt.Errorf("consumer is not initialized")
	}
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}
	queue, err := queueFor(channel)
	if err != nil {
		return err
	}

	backoff := reconnectBackoff
	for {
		err := c.subscribe(ctx, queue, handler)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			backoff = reconnectBackoff
			continue
		}

		c.logger.Warn("queue subscription dropped",
			zap.String("queue", queue),
			zap.Error(err),
			zap.Duration("backoff", backoff),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %q closed", queue)
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery settles one delivery: ack on success, requeue on a transient
// handler error and reject (dead-letter) on anything malformed or final.
// The returned error is a settlement failure, which means the channel is gone.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	logger := c.logger.With(
		zap.String("queue", d.RoutingKey),
		zap.String("messageId", d.MessageId),
		zap.Int64("delivery", deliveryCount(d)),
	)

	var msg OutboundMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Warn("rejecting delivery: invalid JSON", zap.Error(err))
		return settle(d.Reject(false), "reject")
	}
	if err := msg.Validate(); err != nil {
		logger.Warn("rejecting delivery: invalid payload", zap.Error(err))
		return settle(d.Reject(false), "reject")
	}

	if msg.CorrelationID == "" {
		msg.CorrelationID = d.CorrelationId
	}
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	err := handler(ctx, msg)
	switch {
	case err == nil:
		return settle(d.Ack(false), "ack")
	case errors.Is(err, ErrDeadLetter):
		observability.WithContextLogger(logger, ctx).Warn("dead-lettering delivery",
			zap.String("channel", msg.Channel.String()),
			zap.Error(err),
		)
		return settle(d.Reject(false), "reject")
	default:
		if d.Redelivered {
			observability.WithContextLogger(logger, ctx).Info("redelivered message failed again", zap.Error(err))
		}
		return settle(d.Nack(false, true), "nack")
	}
}

func settle(err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s delivery: %w", op, err)
	}
	return nil
}

// deliveryCount is the number of earlier failed deliveries the quorum queue
// recorded, 0 on the first attempt.
func deliveryCount(d amqp.Delivery) int64 {
	switch v := d.Headers[deliveryCountHeader].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	}
	return 0
}
