package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/queue"
	"github.com/kursadbilgin/careops-engine/internal/ratelimit"
	"github.com/kursadbilgin/careops-engine/internal/repository"
)

type fakeMessageRepo struct {
	mu       sync.Mutex
	seq      int
	messages []domain.Message
	createFn func(ctx context.Context, msg *domain.Message) error
}

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func (f *fakeMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, msg); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	msg.ID = fmt.Sprintf("msg-%d", f.seq)
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeMessageRepo) ListByLead(ctx context.Context, leadID string) ([]domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Message
	for _, m := range f.messages {
		if m.LeadID != nil && *m.LeadID == leadID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) all() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.messages...)
}

func (f *fakeMessageRepo) byType(t domain.MessageType) []domain.Message {
	var out []domain.Message
	for _, m := range f.all() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

type gatewayCall struct {
	channel domain.MessageType
	to      string
	content string
}

type fakeGateway struct {
	mu      sync.Mutex
	calls   []gatewayCall
	emailFn func(ctx context.Context, to string, content string) error
	smsFn   func(ctx context.Context, to string, content string) error
}

func (f *fakeGateway) SendEmail(ctx context.Context, to string, content string) error {
	f.record(domain.MessageTypeEmail, to, content)
	if f.emailFn != nil {
		return f.emailFn(ctx, to, content)
	}
	return nil
}

func (f *fakeGateway) SendSMS(ctx context.Context, to string, content string) error {
	f.record(domain.MessageTypeSMS, to, content)
	if f.smsFn != nil {
		return f.smsFn(ctx, to, content)
	}
	return nil
}

func (f *fakeGateway) record(channel domain.MessageType, to string, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, gatewayCall{channel: channel, to: to, content: content})
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeInventoryRepo struct {
	mu          sync.Mutex
	items       map[string]*domain.InventoryItem
	decrements  []string
	decrementFn func(ctx context.Context, id string, by int) (*domain.InventoryItem, error)
}

var _ repository.InventoryRepository = (*fakeInventoryRepo)(nil)

func newFakeInventoryRepo(items ...domain.InventoryItem) *fakeInventoryRepo {
	f := &fakeInventoryRepo{items: make(map[string]*domain.InventoryItem)}
	for i := range items {
		item := items[i]
		f.items[item.ID] = &item
	}
	return f
}

func (f *fakeInventoryRepo) GetByID(ctx context.Context, id string) (*domain.InventoryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (f *fakeInventoryRepo) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.Quantity = quantity
	return nil
}

func (f *fakeInventoryRepo) Decrement(ctx context.Context, id string, by int) (*domain.InventoryItem, error) {
	f.mu.Lock()
	f.decrements = append(f.decrements, id)
	f.mu.Unlock()

	if f.decrementFn != nil {
		return f.decrementFn(ctx, id, by)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item.Quantity -= by
	copied := *item
	return &copied, nil
}

type fakeBookingRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Booking, error)
	listFn    func(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
}

var _ repository.BookingRepository = (*fakeBookingRepo)(nil)

func (f *fakeBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeBookingRepo) ListConfirmedBetween(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	if f.listFn != nil {
		return f.listFn(ctx, from, to)
	}
	return nil, nil
}

type fakeLeadRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Lead, error)
}

func (f *fakeLeadRepo) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type fakeServiceRepo struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Service, error)
}

func (f *fakeServiceRepo) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type fakeNotifier struct {
	mu         sync.Mutex
	requests   []DispatchRequest
	dispatchFn func(ctx context.Context, req DispatchRequest) DispatchResult
}

var _ Notifier = (*fakeNotifier)(nil)

func (f *fakeNotifier) Dispatch(ctx context.Context, req DispatchRequest) DispatchResult {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.dispatchFn != nil {
		return f.dispatchFn(ctx, req)
	}
	return DispatchResult{Status: DispatchDelivered, Message: &domain.Message{ID: "m"}}
}

func (f *fakeNotifier) sent() []DispatchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DispatchRequest(nil), f.requests...)
}

type fakeRateLimiter struct {
	allowFn func(ctx context.Context, channel domain.MessageType) (bool, error)
	waitFn  func(ctx context.Context, channel domain.MessageType) error
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

func (f *fakeRateLimiter) Allow(ctx context.Context, channel domain.MessageType) (bool, error) {
	if f.allowFn != nil {
		return f.allowFn(ctx, channel)
	}
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel domain.MessageType) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, channel domain.MessageType, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, channel domain.MessageType, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, channel, handler)
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
