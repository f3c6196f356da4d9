package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/provider"
	"go.uber.org/zap"
)

func newTestDispatcher(t *testing.T, gateway provider.Gateway, messages *fakeMessageRepo) *Dispatcher {
	t.Helper()

	d, err := NewDispatcher(gateway, messages, time.Second, zap.NewNop())
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	d.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	return d
}

func TestNewDispatcherValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewDispatcher(nil, &fakeMessageRepo{}, 0, nil); err == nil {
		t.Fatal("expected error for nil gateway")
	}
	if _, err := NewDispatcher(&fakeGateway{}, nil, 0, nil); err == nil {
		t.Fatal("expected error for nil message repository")
	}

	d, err := NewDispatcher(&fakeGateway{}, &fakeMessageRepo{}, 0, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	if d.timeout != defaultGatewayTimeout {
		t.Fatalf("timeout = %s, want %s", d.timeout, defaultGatewayTimeout)
	}
}

func TestDispatcherDispatchEmailDelivered(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeEmail,
		Content:    "Booking Confirmed: Massage",
		To:         "ada@example.com",
		BusinessID: "biz-1",
		LeadID:     "lead-1",
		BookingID:  "booking-1",
	})

	if result.Status != DispatchDelivered {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchDelivered)
	}
	if !result.Delivered() || !result.Recorded() {
		t.Fatalf("Delivered()/Recorded() = %v/%v, want true/true", result.Delivered(), result.Recorded())
	}
	if len(gateway.calls) != 1 || gateway.calls[0].channel != domain.MessageTypeEmail || gateway.calls[0].to != "ada@example.com" {
		t.Fatalf("gateway calls = %+v", gateway.calls)
	}

	stored := messages.all()
	if len(stored) != 1 {
		t.Fatalf("stored messages = %d, want 1", len(stored))
	}
	msg := stored[0]
	if !msg.Read {
		t.Fatal("outgoing message should be stored as read")
	}
	if msg.Sender != domain.SenderSystem {
		t.Fatalf("Sender = %s, want SYSTEM", msg.Sender)
	}
	if msg.DeliveryStatus != domain.DeliveryStatusSent {
		t.Fatalf("DeliveryStatus = %s, want SENT", msg.DeliveryStatus)
	}
	if msg.LeadID == nil || *msg.LeadID != "lead-1" || msg.BookingID == nil || *msg.BookingID != "booking-1" {
		t.Fatalf("links = lead %v booking %v", msg.LeadID, msg.BookingID)
	}
}

func TestDispatcherDispatchGatewayFailureStillRecorded(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{
		smsFn: func(ctx context.Context, to string, content string) error {
			return &provider.GatewayError{StatusCode: 503, Message: "carrier down", Transient: true}
		},
	}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeSMS,
		Content:    "Reminder",
		To:         "+15550001111",
		BusinessID: "biz-1",
	})

	if result.Status != DispatchGatewayFailed {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchGatewayFailed)
	}
	if result.GatewayErr == nil || !provider.IsTransient(result.GatewayErr) {
		t.Fatalf("GatewayErr = %v, want transient gateway error", result.GatewayErr)
	}
	if !result.Recorded() {
		t.Fatal("failed send must still be recorded")
	}
	if result.Message.DeliveryStatus != domain.DeliveryStatusFailed {
		t.Fatalf("DeliveryStatus = %s, want FAILED", result.Message.DeliveryStatus)
	}
	if result.Message.DeliveryError == nil || *result.Message.DeliveryError == "" {
		t.Fatal("DeliveryError should carry the gateway error text")
	}
	if !result.Message.Read {
		t.Fatal("failed outgoing message should still be read")
	}
}

func TestDispatcherDispatchAlertIsRecordOnly(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeAlert,
		Content:    "Low stock",
		BusinessID: "biz-1",
	})

	if result.Status != DispatchLogged {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchLogged)
	}
	if result.Delivered() {
		t.Fatal("alerts are never delivered externally")
	}
	if gateway.callCount() != 0 {
		t.Fatalf("gateway calls = %d, want 0", gateway.callCount())
	}
	if result.Message.LeadID != nil || result.Message.BookingID != nil {
		t.Fatal("alert should be business-scoped only")
	}
	if result.Message.DeliveryStatus != domain.DeliveryStatusLogged {
		t.Fatalf("DeliveryStatus = %s, want LOGGED", result.Message.DeliveryStatus)
	}
}

func TestDispatcherDispatchStoreFailure(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("connection reset")
	gateway := &fakeGateway{}
	messages := &fakeMessageRepo{
		createFn: func(ctx context.Context, msg *domain.Message) error {
			return storeErr
		},
	}
	d := newTestDispatcher(t, gateway, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeEmail,
		Content:    "hello",
		To:         "ada@example.com",
		BusinessID: "biz-1",
	})

	if result.Status != DispatchNotRecorded {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchNotRecorded)
	}
	if result.Message != nil {
		t.Fatal("Message should be nil when the store write fails")
	}
	if !errors.Is(result.StoreErr, storeErr) {
		t.Fatalf("StoreErr = %v, want %v", result.StoreErr, storeErr)
	}
	if result.Delivered() {
		t.Fatal("unrecorded dispatch must not count as delivered")
	}
	if gateway.callCount() != 1 {
		t.Fatalf("gateway calls = %d, want 1", gateway.callCount())
	}
}

func TestDispatcherDispatchMissingRecipient(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeSMS,
		Content:    "Reminder",
		To:         "   ",
		BusinessID: "biz-1",
	})

	if result.Status != DispatchGatewayFailed {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchGatewayFailed)
	}
	if !errors.Is(result.GatewayErr, provider.ErrNoRecipient) {
		t.Fatalf("GatewayErr = %v, want ErrNoRecipient", result.GatewayErr)
	}
	if gateway.callCount() != 0 {
		t.Fatal("gateway should not be called without a recipient")
	}
	if len(messages.all()) != 1 {
		t.Fatal("attempt without recipient should still be recorded")
	}
}

func TestDispatcherDispatchNoDeduplication(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)

	req := DispatchRequest{
		Type:       domain.MessageTypeEmail,
		Content:    "same",
		To:         "ada@example.com",
		BusinessID: "biz-1",
		LeadID:     "lead-1",
	}
	first := d.Dispatch(context.Background(), req)
	second := d.Dispatch(context.Background(), req)

	stored := messages.all()
	if len(stored) != 2 {
		t.Fatalf("stored messages = %d, want 2", len(stored))
	}
	if first.Message.ID == second.Message.ID {
		t.Fatal("identical dispatches should produce independent records")
	}
	if gateway.callCount() != 2 {
		t.Fatalf("gateway calls = %d, want 2", gateway.callCount())
	}
}

func TestDispatcherDispatchTimeoutBoundsHungGateway(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	gateway := &fakeGateway{
		emailFn: func(ctx context.Context, to string, content string) error {
			<-release
			return nil
		},
	}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)
	d.timeout = 20 * time.Millisecond

	start := time.Now()
	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeEmail,
		Content:    "hello",
		To:         "ada@example.com",
		BusinessID: "biz-1",
	})

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Dispatch() took %s, want bounded by timeout", elapsed)
	}
	if result.Status != DispatchGatewayFailed {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchGatewayFailed)
	}
	if !errors.Is(result.GatewayErr, context.DeadlineExceeded) {
		t.Fatalf("GatewayErr = %v, want deadline exceeded", result.GatewayErr)
	}
	if !result.Recorded() {
		t.Fatal("timed out send should be recorded")
	}
}

func TestDispatcherDispatchGatewayPanic(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{
		smsFn: func(ctx context.Context, to string, content string) error {
			panic("driver bug")
		},
	}
	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, gateway, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeSMS,
		Content:    "hello",
		To:         "+15550001111",
		BusinessID: "biz-1",
	})

	if result.Status != DispatchGatewayFailed {
		t.Fatalf("Status = %s, want %s", result.Status, DispatchGatewayFailed)
	}
	if provider.IsTransient(result.GatewayErr) {
		t.Fatal("panic should be classified as permanent")
	}
}

func TestDispatcherDispatchKeepsExplicitSender(t *testing.T) {
	t.Parallel()

	messages := &fakeMessageRepo{}
	d := newTestDispatcher(t, &fakeGateway{}, messages)

	result := d.Dispatch(context.Background(), DispatchRequest{
		Type:       domain.MessageTypeEmail,
		Content:    "Following up personally",
		To:         "ada@example.com",
		BusinessID: "biz-1",
		Sender:     domain.SenderUser,
	})

	if result.Message.Sender != domain.SenderUser {
		t.Fatalf("Sender = %s, want USER", result.Message.Sender)
	}
}
