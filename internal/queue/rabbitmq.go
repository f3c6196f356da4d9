package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dlxExchangeName  = "careops.dlx"
	reconnectBackoff = time.Second
	maxBackoff       = 30 * time.Second
	dialTimeout      = 15 * time.Second
	heartbeat        = 10 * time.Second
)

// RabbitMQ owns the broker connection. Topology is declared once per
// connection, before anyone else can open a channel on it.
type RabbitMQ struct {
	url    string
	logger *zap.Logger

	mu          sync.RWMutex
	reconnectMu sync.Mutex
	conn        *amqp.Connection
}

func NewRabbitMQ(ctx context.Context, url string, logger *zap.Logger) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &RabbitMQ{url: url, logger: logger}

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Connected reports whether the broker connection is currently open.
func (r *RabbitMQ) Connected() bool {
	return r.current() != nil
}

func (r *RabbitMQ) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

func (r *RabbitMQ) current() *amqp.Connection {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.conn == nil || r.conn.IsClosed() {
		return nil
	}
	return r.conn
}

func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	if conn := r.current(); conn != nil {
		return conn, nil
	}
	return r.reconnect(ctx)
}

// channel opens a channel, reconnecting once when the connection went away
// between the check and the open.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err == nil {
		return ch, nil
	}

	r.logger.Warn("rabbitmq channel open failed, reconnecting", zap.Error(err))
	_ = conn.Close()

	conn, err = r.reconnect(ctx)
	if err != nil {
		return nil, err
	}
	ch, err = conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open rabbitmq channel after reconnect: %w", err)
	}
	return ch, nil
}

func (r *RabbitMQ) reconnect(ctx context.Context) (*amqp.Connection, error) {
	r.reconnectMu.Lock()
	defer r.reconnectMu.Unlock()

	if conn := r.current(); conn != nil {
		return conn, nil
	}

	wait := reconnectBackoff
	for attempt := 1; ; attempt++ {
		conn, err := r.dialAndDeclare()
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.mu.Unlock()

			go r.watch(conn)
			r.logger.Info("rabbitmq connected", zap.Int("attempt", attempt))
			return conn, nil
		}

		r.logger.Warn("rabbitmq connect failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("rabbitmq reconnect canceled: %w", ctx.Err())
		case <-timer.C:
		}

		wait = min(wait*2, maxBackoff)
	}
}

func (r *RabbitMQ) dialAndDeclare() (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(r.url, amqp.Config{
		Heartbeat:  heartbeat,
		Locale:     "en_US",
		Dial:       amqp.DefaultDial(dialTimeout),
		Properties: amqp.Table{"connection_name": observability.ServiceName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open topology channel: %w", err)
	}
	defer ch.Close() //nolint:errcheck

	if err := declareTopology(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (r *RabbitMQ) watch(conn *amqp.Connection) {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	if amqpErr, ok := <-closed; ok && amqpErr != nil {
		r.logger.Warn("rabbitmq connection lost",
			zap.Int("code", amqpErr.Code),
			zap.String("reason", amqpErr.Reason),
		)
	}
}

// topologyDeclarer is the subset of *amqp.Channel used to declare queues.
type topologyDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// declareTopology sets up one quorum work queue per channel. Rejected
// messages and messages past MaxDeliveries go to dlq.<channel> through the
// careops.dlx exchange.
func declareTopology(ch topologyDeclarer) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	for _, channel := range supportedChannels {
		name := QueueName(channel)
		dlq := DLQName(channel)

		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare dlq %q: %w", dlq, err)
		}
		if err := ch.QueueBind(dlq, name, dlxExchangeName, false, nil); err != nil {
			return fmt.Errorf("failed to bind dlq %q: %w", dlq, err)
		}

		if _, err := ch.QueueDeclare(name, true, false, false, false, workQueueArgs(channel)); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", name, err)
		}
	}

	return nil
}

func workQueueArgs(channel domain.MessageType) amqp.Table {
	return amqp.Table{
		"x-queue-type":              "quorum",
		"x-delivery-limit":          int32(MaxDeliveries),
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": QueueName(channel),
	}
}
