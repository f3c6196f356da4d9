package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"go.uber.org/zap"
)

// AutoReplyContent is the standard acknowledgement for inbound messages.
const AutoReplyContent = "Thanks for reaching out! We've received your message and will get back to you shortly."

// InboundResult reports an inbound message and the automated reply, if any.
type InboundResult struct {
	Inbound       *domain.Message
	AutoReply     *DispatchResult
	AutoReplySkip string
}

// AutoReplier records customer messages and acknowledges them unless the
// lead's automation is paused.
type AutoReplier struct {
	messages repository.MessageRepository
	leads    repository.LeadRepository
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewAutoReplier(
	messages repository.MessageRepository,
	leads repository.LeadRepository,
	notifier Notifier,
	logger *zap.Logger,
) (*AutoReplier, error) {
	if messages == nil {
		return nil, fmt.Errorf("message repository is required")
	}
	if leads == nil {
		return nil, fmt.Errorf("lead repository is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AutoReplier{
		messages: messages,
		leads:    leads,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// OnInboundMessageByLeadID loads the lead and delegates to OnInboundMessage.
func (a *AutoReplier) OnInboundMessageByLeadID(ctx context.Context, leadID string, content string) (InboundResult, error) {
	lead, err := a.leads.GetByID(ctx, leadID)
	if err != nil {
		return InboundResult{}, err
	}
	return a.OnInboundMessage(ctx, lead, content)
}

// OnInboundMessage stores the customer's message unread, then dispatches the
// auto-reply. Only the inbound write can fail the call.
func (a *AutoReplier) OnInboundMessage(ctx context.Context, lead *domain.Lead, content string) (InboundResult, error) {
	if lead == nil {
		return InboundResult{}, fmt.Errorf("%w: lead is required", domain.ErrValidation)
	}

	leadID := lead.ID
	inbound := &domain.Message{
		BusinessID:     lead.BusinessID,
		LeadID:         &leadID,
		Type:           domain.MessageTypeEmail,
		Sender:         domain.SenderCustomer,
		Content:        content,
		Read:           false,
		DeliveryStatus: domain.DeliveryStatusReceived,
		CreatedAt:      a.now().UTC(),
	}
	if err := inbound.Validate(); err != nil {
		return InboundResult{}, err
	}
	if err := a.messages.Create(ctx, inbound); err != nil {
		return InboundResult{}, err
	}

	result := InboundResult{Inbound: inbound}
	if !lead.AutomationEnabled() {
		result.AutoReplySkip = SkipAutomationPaused
		observability.WithContextLogger(a.logger, ctx).Info("skipping auto-reply: automation paused",
			zap.String("leadId", lead.ID),
		)
		return result, nil
	}

	reply := a.notifier.Dispatch(ctx, DispatchRequest{
		Type:       domain.MessageTypeEmail,
		Content:    AutoReplyContent,
		To:         lead.Email,
		BusinessID: lead.BusinessID,
		LeadID:     lead.ID,
	})
	result.AutoReply = &reply
	return result, nil
}
