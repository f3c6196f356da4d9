package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/service"
)

type SideEffectsRunner interface {
	OnBookingCreatedByID(ctx context.Context, bookingID string) service.SideEffects
}

type ReminderTrigger interface {
	Trigger(ctx context.Context, force bool) service.TriggerResult
}

type InboundReceiver interface {
	OnInboundMessageByLeadID(ctx context.Context, leadID string, content string) (service.InboundResult, error)
}

type LeadTimeline interface {
	ListByLead(ctx context.Context, leadID string) ([]domain.Message, error)
}

type AutomationHandler struct {
	sideEffects SideEffectsRunner
	reminders   ReminderTrigger
	inbound     InboundReceiver
	timeline    LeadTimeline
}

func NewAutomationHandler(
	sideEffects SideEffectsRunner,
	reminders ReminderTrigger,
	inbound InboundReceiver,
	timeline LeadTimeline,
) (*AutomationHandler, error) {
	if sideEffects == nil {
		return nil, fmt.Errorf("side effects runner is required")
	}
	if reminders == nil {
		return nil, fmt.Errorf("reminder trigger is required")
	}
	if inbound == nil {
		return nil, fmt.Errorf("inbound receiver is required")
	}
	if timeline == nil {
		return nil, fmt.Errorf("lead timeline is required")
	}

	return &AutomationHandler{
		sideEffects: sideEffects,
		reminders:   reminders,
		inbound:     inbound,
		timeline:    timeline,
	}, nil
}

func RegisterAutomationRoutes(router fiber.Router, h *AutomationHandler) error {
	if h == nil {
		return fmt.Errorf("automation handler is required")
	}

	v1 := router.Group("/v1")
	v1.Post("/bookings/:id/side-effects", h.RunSideEffects)
	v1.Get("/cron/reminders", h.TriggerReminders)
	v1.Post("/leads/:id/inbound", h.ReceiveInbound)
	v1.Get("/leads/:id/messages", h.ListLeadMessages)

	return nil
}

type dispatchResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

type inventoryLineResponse struct {
	InventoryItemID string            `json:"inventoryItemId"`
	Name            string            `json:"name,omitempty"`
	QuantityUsed    int               `json:"quantityUsed"`
	Quantity        int               `json:"quantity"`
	Threshold       int               `json:"threshold"`
	LowStock        bool              `json:"lowStock"`
	Alert           *dispatchResponse `json:"alert,omitempty"`
	Error           string            `json:"error,omitempty"`
}

type sideEffectsResponse struct {
	BookingID        string                  `json:"bookingId"`
	Acted            bool                    `json:"acted"`
	Inventory        []inventoryLineResponse `json:"inventory"`
	Confirmation     *dispatchResponse       `json:"confirmation,omitempty"`
	ConfirmationSkip string                  `json:"confirmationSkip,omitempty"`
}

type reminderWindowResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type remindersResponse struct {
	Success   bool                    `json:"success"`
	Skipped   bool                    `json:"skipped,omitempty"`
	Reason    string                  `json:"reason,omitempty"`
	Forced    bool                    `json:"forced,omitempty"`
	Processed int                     `json:"processed"`
	Details   []service.SweepOutcome  `json:"details"`
	Window    *reminderWindowResponse `json:"window,omitempty"`
	Aborted   bool                    `json:"aborted"`
	Pending   int                     `json:"pending"`
	Error     string                  `json:"error,omitempty"`
}

type inboundRequest struct {
	Content string `json:"content"`
}

type inboundResponse struct {
	InboundMessageID string            `json:"inboundMessageId"`
	AutoReply        *dispatchResponse `json:"autoReply,omitempty"`
	AutoReplySkip    string            `json:"autoReplySkip,omitempty"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	BusinessID     string    `json:"businessId"`
	LeadID         *string   `json:"leadId,omitempty"`
	BookingID      *string   `json:"bookingId,omitempty"`
	Type           string    `json:"type"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	DeliveryStatus string    `json:"deliveryStatus,omitempty"`
	DeliveryError  *string   `json:"deliveryError,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type listMessagesResponse struct {
	Data []messageResponse `json:"data"`
}

// RunSideEffects always answers 200 with the per-step summary once the
// booking is loaded.
func (h *AutomationHandler) RunSideEffects(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return toHTTPError(fmt.Errorf("%w: booking id is required", domain.ErrValidation))
	}

	effects := h.sideEffects.OnBookingCreatedByID(requestContext(c), id)
	if effects.LoadErr != nil {
		return toHTTPError(effects.LoadErr)
	}

	return c.Status(fiber.StatusOK).JSON(toSideEffectsResponse(effects))
}

// TriggerReminders runs the reminder sweep. force=true bypasses the
// once-per-day guard.
func (h *AutomationHandler) TriggerReminders(c *fiber.Ctx) error {
	triggered := h.reminders.Trigger(requestContext(c), c.QueryBool("force", false))

	resp := remindersResponse{
		Success: true,
		Forced:  triggered.Forced,
		Details: []service.SweepOutcome{},
	}
	if !triggered.Ran {
		resp.Skipped = true
		resp.Reason = triggered.SkipReason
		return c.Status(fiber.StatusOK).JSON(resp)
	}

	result := triggered.Result
	resp.Processed = result.Processed
	if result.Details != nil {
		resp.Details = result.Details
	}
	resp.Window = &reminderWindowResponse{Start: result.WindowStart, End: result.WindowEnd}
	resp.Aborted = result.Aborted
	resp.Pending = result.Pending
	if result.Err != nil {
		resp.Success = false
		resp.Error = result.Err.Error()
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func (h *AutomationHandler) ReceiveInbound(c *fiber.Ctx) error {
	leadID := strings.TrimSpace(c.Params("id"))
	if leadID == "" {
		return toHTTPError(fmt.Errorf("%w: lead id is required", domain.ErrValidation))
	}

	var req inboundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.inbound.OnInboundMessageByLeadID(requestContext(c), leadID, strings.TrimSpace(req.Content))
	if err != nil {
		return toHTTPError(err)
	}

	resp := inboundResponse{AutoReplySkip: result.AutoReplySkip}
	if result.Inbound != nil {
		resp.InboundMessageID = result.Inbound.ID
	}
	if result.AutoReply != nil {
		resp.AutoReply = toDispatchResponse(*result.AutoReply)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *AutomationHandler) ListLeadMessages(c *fiber.Ctx) error {
	leadID := strings.TrimSpace(c.Params("id"))
	if leadID == "" {
		return toHTTPError(fmt.Errorf("%w: lead id is required", domain.ErrValidation))
	}

	messages, err := h.timeline.ListByLead(requestContext(c), leadID)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		data = append(data, toMessageResponse(m))
	}
	return c.Status(fiber.StatusOK).JSON(listMessagesResponse{Data: data})
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id := requestCorrelationID(c); id != "" {
		return observability.WithCorrelationID(ctx, id)
	}
	ctx, _ = observability.EnsureCorrelationID(ctx)
	return ctx
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func toSideEffectsResponse(effects service.SideEffects) sideEffectsResponse {
	resp := sideEffectsResponse{
		BookingID:        effects.BookingID,
		Acted:            effects.Acted,
		Inventory:        make([]inventoryLineResponse, 0, len(effects.Inventory)),
		ConfirmationSkip: effects.ConfirmationSkip,
	}

	for _, line := range effects.Inventory {
		item := inventoryLineResponse{
			InventoryItemID: line.InventoryItemID,
			Name:            line.Name,
			QuantityUsed:    line.QuantityUsed,
			Quantity:        line.Quantity,
			Threshold:       line.Threshold,
			LowStock:        line.LowStock,
		}
		if line.Alert != nil {
			item.Alert = toDispatchResponse(*line.Alert)
		}
		if line.Err != nil {
			item.Error = line.Err.Error()
		}
		resp.Inventory = append(resp.Inventory, item)
	}

	if effects.Confirmation != nil {
		resp.Confirmation = toDispatchResponse(*effects.Confirmation)
	}
	return resp
}

func toDispatchResponse(result service.DispatchResult) *dispatchResponse {
	resp := &dispatchResponse{Status: string(result.Status)}
	if result.Message != nil {
		resp.MessageID = result.Message.ID
	}
	switch {
	case result.StoreErr != nil:
		resp.Error = result.StoreErr.Error()
	case result.GatewayErr != nil:
		resp.Error = result.GatewayErr.Error()
	}
	return resp
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:             m.ID,
		BusinessID:     m.BusinessID,
		LeadID:         m.LeadID,
		BookingID:      m.BookingID,
		Type:           m.Type.String(),
		Sender:         m.Sender.String(),
		Content:        m.Content,
		Read:           m.Read,
		DeliveryStatus: m.DeliveryStatus.String(),
		DeliveryError:  m.DeliveryError,
		CreatedAt:      m.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
