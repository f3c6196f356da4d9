package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/provider"
	"github.com/kursadbilgin/careops-engine/internal/queue"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	defaultRequeueDelay  = time.Second
)

// DeliveryWorker drains the email and sms work queues into the direct
// gateway. Transient failures go back to the queue, permanent ones to the
// dead-letter queue.
type DeliveryWorker struct {
	consumer     queue.Consumer
	gateway      provider.Gateway
	rateLimiter  ratelimit.RateLimiter
	logger       *zap.Logger
	metrics      *observability.Metrics
	concurrency  int
	timeout      time.Duration
	requeueDelay time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewDeliveryWorker(
	consumer queue.Consumer,
	gateway provider.Gateway,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	timeout time.Duration,
	logger *zap.Logger,
) (*DeliveryWorker, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if rateLimiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeliveryWorker{
		consumer:     consumer,
		gateway:      gateway,
		rateLimiter:  rateLimiter,
		logger:       logger,
		concurrency:  concurrency,
		timeout:      timeout,
		requeueDelay: defaultRequeueDelay,
		now:          time.Now,
		sleep:        sleepWithContext,
	}, nil
}

func (w *DeliveryWorker) SetMetrics(metrics *observability.Metrics) {
	if w == nil {
		return
	}
	w.metrics = metrics
}

// Start consumes the channel queues until context cancellation. Consumers are
// spread round-robin over the channels.
func (w *DeliveryWorker) Start(ctx context.Context) error {
	channels := queue.SupportedChannels()
	if len(channels) == 0 {
		return fmt.Errorf("no work queues configured")
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		channel := channels[i%len(channels)]
		logger := w.logger.With(
			zap.Int("workerId", i+1),
			zap.String("queue", queue.QueueName(channel)),
		)

		g.Go(func() error {
			logger.Info("delivery worker started")

			if err := w.consumer.Consume(groupCtx, channel, w.processMessage); err != nil {
				logger.Error("delivery worker stopped with error", zap.Error(err))
				return err
			}

			logger.Info("delivery worker stopped")
			return nil
		})
	}

	return g.Wait()
}

func (w *DeliveryWorker) processMessage(ctx context.Context, msg queue.OutboundMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}
	logger := observability.WithContextLogger(w.logger, ctx).With(
		zap.String("messageId", msg.ID),
		zap.String("channel", msg.Channel.String()),
	)

	if err := msg.Validate(); err != nil {
		logger.Error("queued delivery is malformed", zap.Error(err))
		return fmt.Errorf("%w: %w", queue.ErrDeadLetter, err)
	}

	channelName := queue.QueueName(msg.Channel)
	w.metrics.IncWorkerInFlight(channelName)
	defer w.metrics.DecWorkerInFlight(channelName)

	if err := w.rateLimiter.Wait(ctx, msg.Channel); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	sendStart := w.now()
	var sendErr error
	switch msg.Channel {
	case domain.MessageTypeEmail:
		sendErr = w.gateway.SendEmail(sendCtx, msg.Recipient, msg.Content)
	case domain.MessageTypeSMS:
		sendErr = w.gateway.SendSMS(sendCtx, msg.Recipient, msg.Content)
	}
	w.metrics.ObserveGatewaySendDuration(msg.Channel.String(), w.now().Sub(sendStart))

	if sendErr == nil {
		logger.Info("queued delivery sent")
		return nil
	}

	if provider.IsTransient(sendErr) {
		logger.Warn("queued delivery failed, requeueing", zap.Error(sendErr))
		w.metrics.IncDeliveryRequeued(channelName)
		if err := w.sleep(ctx, w.requeueDelay); err != nil {
			return fmt.Errorf("requeue delay interrupted: %w", err)
		}
		return fmt.Errorf("transient delivery failure: %w", sendErr)
	}

	logger.Error("queued delivery failed permanently", zap.Error(sendErr))
	return fmt.Errorf("%w: %w", queue.ErrDeadLetter, sendErr)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
