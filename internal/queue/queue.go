package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kursadbilgin/careops-engine/internal/domain"
)

// MaxDeliveries caps how often the broker hands out one message before it is
// routed to the channel's dead-letter queue.
const MaxDeliveries = 20

// ErrDeadLetter marks a handler failure that must not be redelivered. The
// consumer rejects such deliveries to the channel's dead-letter queue.
var ErrDeadLetter = errors.New("dead letter")

// Publisher hands outbound messages to the work queue of their channel.
type Publisher interface {
	Publish(ctx context.Context, msg OutboundMessage) error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg OutboundMessage) error

// Consumer drains the work queue of one channel.
type Consumer interface {
	Consume(ctx context.Context, channel domain.MessageType, handler MessageHandler) error
}

var supportedChannels = []domain.MessageType{
	domain.MessageTypeEmail,
	domain.MessageTypeSMS,
}

// SupportedChannels returns the message types that have a work queue.
func SupportedChannels() []domain.MessageType {
	return append([]domain.MessageType(nil), supportedChannels...)
}

// QueueName returns the channel work queue name, e.g. sms.
func QueueName(channel domain.MessageType) string {
	return strings.ToLower(channel.String())
}

// DLQName returns the dead-letter queue name for a channel, e.g. dlq.sms.
func DLQName(channel domain.MessageType) string {
	return fmt.Sprintf("dlq.%s", QueueName(channel))
}

func queueFor(channel domain.MessageType) (string, error) {
	if !channel.External() {
		return "", fmt.Errorf("%w: no work queue for channel %q", domain.ErrValidation, channel)
	}
	return QueueName(channel), nil
}
