package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/provider"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"go.uber.org/zap"
)

const defaultGatewayTimeout = 5 * time.Second

// DispatchStatus summarizes what happened to a single dispatch.
type DispatchStatus string

const (
	// DispatchDelivered: the gateway accepted the message and it was recorded.
	DispatchDelivered DispatchStatus = "DELIVERED"
	// DispatchGatewayFailed: the gateway call failed; the attempt was recorded.
	DispatchGatewayFailed DispatchStatus = "GATEWAY_FAILED"
	// DispatchLogged: an internal alert was recorded without an external send.
	DispatchLogged DispatchStatus = "LOGGED"
	// DispatchNotRecorded: the message row could not be written.
	DispatchNotRecorded DispatchStatus = "NOT_RECORDED"
)

// DispatchRequest describes one outbound notification. Empty LeadID and
// BookingID mean no link.
type DispatchRequest struct {
	Type       domain.MessageType
	Content    string
	To         string
	BusinessID string
	LeadID     string
	BookingID  string
	Sender     domain.Sender
}

// DispatchResult is returned instead of an error; Dispatch never fails.
type DispatchResult struct {
	Status     DispatchStatus
	Message    *domain.Message
	GatewayErr error
	StoreErr   error
}

// Recorded reports whether the message row exists.
func (r DispatchResult) Recorded() bool {
	return r.Message != nil
}

// Delivered reports whether an external send succeeded and was recorded.
func (r DispatchResult) Delivered() bool {
	return r.Status == DispatchDelivered
}

// Notifier is the dispatch port used by the orchestrator, sweep and auto-replier.
type Notifier interface {
	Dispatch(ctx context.Context, req DispatchRequest) DispatchResult
}

var _ Notifier = (*Dispatcher)(nil)

// Dispatcher sends through the gateway and records exactly one Message per
// call, whatever the gateway outcome.
type Dispatcher struct {
	gateway  provider.Gateway
	messages repository.MessageRepository
	timeout  time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewDispatcher(
	gateway provider.Gateway,
	messages repository.MessageRepository,
	timeout time.Duration,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		gateway:  gateway,
		messages: messages,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) DispatchResult {
	logger := observability.WithContextLogger(d.logger, ctx).With(
		zap.String("type", req.Type.String()),
		zap.String("businessId", req.BusinessID),
		zap.String("leadId", req.LeadID),
		zap.String("bookingId", req.BookingID),
	)

	var result DispatchResult
	deliveryStatus := domain.DeliveryStatusLogged
	if req.Type.External() {
		result.GatewayErr = d.send(ctx, req)
		deliveryStatus = domain.DeliveryStatusSent
		if result.GatewayErr != nil {
			deliveryStatus = domain.DeliveryStatusFailed
			logger.Warn("gateway send failed",
				zap.Bool("transient", provider.IsTransient(result.GatewayErr)),
				zap.Error(result.GatewayErr),
			)
		}
	}

	sender := req.Sender
	if sender == "" {
		sender = domain.SenderSystem
	}

	msg := &domain.Message{
		BusinessID:     req.BusinessID,
		LeadID:         optionalID(req.LeadID),
		BookingID:      optionalID(req.BookingID),
		Type:           req.Type,
		Sender:         sender,
		Content:        req.Content,
		Read:           true,
		DeliveryStatus: deliveryStatus,
		CreatedAt:      d.now().UTC(),
	}
	if result.GatewayErr != nil {
		text := result.GatewayErr.Error()
		msg.DeliveryError = &text
	}

	if err := d.messages.Create(ctx, msg); err != nil {
		result.StoreErr = err
		logger.Error("failed to record message", zap.Error(err))
	} else {
		result.Message = msg
	}

	switch {
	case result.StoreErr != nil:
		result.Status = DispatchNotRecorded
	case result.GatewayErr != nil:
		result.Status = DispatchGatewayFailed
	case req.Type.External():
		result.Status = DispatchDelivered
	default:
		result.Status = DispatchLogged
	}

	d.metrics.IncDispatch(req.Type.String(), string(result.Status))
	if result.Message != nil {
		logger.Info("notification dispatched",
			zap.String("messageId", result.Message.ID),
			zap.String("status", string(result.Status)),
		)
	}

	return result
}

// send calls the gateway under the dispatch timeout. The wait is bounded even
// when the gateway ignores its context; a panicking gateway is reported as a
// permanent gateway failure.
func (d *Dispatcher) send(ctx context.Context, req DispatchRequest) error {
	to := strings.TrimSpace(req.To)
	if to == "" {
		return provider.ErrNoRecipient
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.now()
	defer func() {
		d.metrics.ObserveGatewaySendDuration(req.Type.String(), d.now().Sub(start))
	}()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &provider.GatewayError{Message: fmt.Sprintf("gateway panic: %v", r)}
			}
		}()
		done <- d.call(sendCtx, req.Type, to, req.Content)
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return &provider.GatewayError{
			Message:   "gateway call did not complete",
			Transient: true,
			Cause:     sendCtx.Err(),
		}
	}
}

func (d *Dispatcher) call(ctx context.Context, messageType domain.MessageType, to string, content string) error {
	switch messageType {
	case domain.MessageTypeEmail:
		return d.gateway.SendEmail(ctx, to, content)
	case domain.MessageTypeSMS:
		return d.gateway.SendSMS(ctx, to, content)
	}
	return nil
}

func optionalID(id string) *string {
	if strings.TrimSpace(id) == "" {
		return nil
	}
	return &id
}
