package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"go.uber.org/zap"
)

const confirmationDateLayout = "1/2/2006, 3:04:05 PM"

// Reasons a confirmation was not attempted.
const (
	SkipLeadMissing      = "LEAD_MISSING"
	SkipAutomationPaused = "AUTOMATION_PAUSED"
)

// InventoryOutcome reports one resource line of a booking.
type InventoryOutcome struct {
	InventoryItemID string
	Name            string
	QuantityUsed    int
	Quantity        int
	Threshold       int
	LowStock        bool
	Alert           *DispatchResult
	Err             error
}

// SideEffects is the report of one OnBookingCreated run. Acted is false when
// the booking was nil or not CONFIRMED. LoadErr is only set by
// OnBookingCreatedByID.
type SideEffects struct {
	BookingID           string
	Acted               bool
	Inventory           []InventoryOutcome
	Confirmation        *DispatchResult
	ConfirmationSkip    string
	ConfirmationSkipErr error
	LoadErr             error
}

// Orchestrator runs the side effects of a newly created booking: inventory
// deduction with low-stock alerts, then the customer confirmation.
type Orchestrator struct {
	notifier  Notifier
	inventory repository.InventoryRepository
	bookings  repository.BookingRepository
	leads     repository.LeadRepository
	services  repository.ServiceRepository
	logger    *zap.Logger
	metrics   *observability.Metrics
	location  *time.Location
}

func NewOrchestrator(
	notifier Notifier,
	inventory repository.InventoryRepository,
	bookings repository.BookingRepository,
	leads repository.LeadRepository,
	services repository.ServiceRepository,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		notifier:  notifier,
		inventory: inventory,
		bookings:  bookings,
		leads:     leads,
		services:  services,
		logger:    logger,
		location:  time.Local,
	}, nil
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// OnBookingCreated never fails. A nil lead or service falls back to the
// relation loaded on the booking.
func (o *Orchestrator) OnBookingCreated(
	ctx context.Context,
	booking *domain.Booking,
	lead *domain.Lead,
	service *domain.Service,
) SideEffects {
	return o.run(ctx, booking, lead, service, nil)
}

// run carries leadErr, the store failure that left lead nil, into the
// confirmation skip report. A lead that does not exist is not a store failure.
func (o *Orchestrator) run(
	ctx context.Context,
	booking *domain.Booking,
	lead *domain.Lead,
	service *domain.Service,
	leadErr error,
) SideEffects {
	if booking == nil {
		return SideEffects{}
	}

	effects := SideEffects{BookingID: booking.ID}
	logger := observability.WithContextLogger(o.logger, ctx).With(
		zap.String("bookingId", booking.ID),
		zap.String("businessId", booking.BusinessID),
	)

	if !booking.Status.Actionable() {
		logger.Debug("booking not actionable, skipping side effects",
			zap.String("status", booking.Status.String()),
		)
		return effects
	}
	effects.Acted = true

	if lead == nil {
		lead = booking.Lead
	}
	if service == nil {
		service = booking.Service
	}

	if service != nil {
		for _, resource := range service.Resources {
			effects.Inventory = append(effects.Inventory, o.consume(ctx, logger, booking, resource))
		}
	}

	switch {
	case lead == nil && leadErr != nil:
		effects.ConfirmationSkip = SkipLeadMissing
		effects.ConfirmationSkipErr = fmt.Errorf("load lead %s: %w", booking.LeadID, leadErr)
		logger.Warn("skipping confirmation", zap.Error(effects.ConfirmationSkipErr))
	case lead == nil:
		effects.ConfirmationSkip = SkipLeadMissing
		effects.ConfirmationSkipErr = fmt.Errorf("%w: booking %s has no lead", domain.ErrValidation, booking.ID)
		logger.Warn("skipping confirmation", zap.Error(effects.ConfirmationSkipErr))
	case lead.AutomationPaused:
		effects.ConfirmationSkip = SkipAutomationPaused
		logger.Info("skipping confirmation: automation paused", zap.String("leadId", lead.ID))
	default:
		result := o.notifier.Dispatch(ctx, DispatchRequest{
			Type:       domain.MessageTypeEmail,
			Content:    ConfirmationContent(service, booking.Date.In(o.location)),
			To:         lead.Email,
			BusinessID: booking.BusinessID,
			LeadID:     lead.ID,
			BookingID:  booking.ID,
		})
		effects.Confirmation = &result
	}

	return effects
}

// OnBookingCreatedByID loads the booking with its lead and service and runs
// OnBookingCreated. Load failures are reported, not returned.
func (o *Orchestrator) OnBookingCreatedByID(ctx context.Context, bookingID string) SideEffects {
	if o.bookings == nil {
		return SideEffects{BookingID: bookingID, LoadErr: fmt.Errorf("booking repository is not configured")}
	}

	booking, err := o.bookings.GetByID(ctx, bookingID)
	if err != nil {
		observability.WithContextLogger(o.logger, ctx).Error("failed to load booking for side effects",
			zap.String("bookingId", bookingID),
			zap.Error(err),
		)
		return SideEffects{BookingID: bookingID, LoadErr: err}
	}

	logger := observability.WithContextLogger(o.logger, ctx).With(zap.String("bookingId", bookingID))

	var leadErr error
	lead := booking.Lead
	if lead == nil && o.leads != nil && booking.LeadID != "" {
		loaded, err := o.leads.GetByID(ctx, booking.LeadID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				leadErr = err
			}
			logger.Warn("failed to load lead for side effects",
				zap.String("leadId", booking.LeadID),
				zap.Error(err),
			)
		} else {
			lead = loaded
		}
	}

	service := booking.Service
	if o.services != nil && booking.ServiceID != nil && (service == nil || service.Resources == nil) {
		loaded, err := o.services.GetByID(ctx, *booking.ServiceID)
		if err != nil {
			logger.Warn("failed to load service for side effects",
				zap.String("serviceId", *booking.ServiceID),
				zap.Error(err),
			)
		} else {
			service = loaded
		}
	}

	return o.run(ctx, booking, lead, service, leadErr)
}

func (o *Orchestrator) consume(
	ctx context.Context,
	logger *zap.Logger,
	booking *domain.Booking,
	resource domain.ServiceResource,
) (outcome InventoryOutcome) {
	outcome = InventoryOutcome{
		InventoryItemID: resource.InventoryItemID,
		QuantityUsed:    resource.QuantityUsed,
	}
	if resource.InventoryItem != nil {
		outcome.Name = resource.InventoryItem.Name
	}

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("inventory line panicked: %v", r)
			o.metrics.IncInventoryDecrementError()
			logger.Error("inventory line panicked",
				zap.String("inventoryItemId", resource.InventoryItemID),
				zap.Any("panic", r),
			)
		}
	}()

	item, err := o.inventory.Decrement(ctx, resource.InventoryItemID, resource.QuantityUsed)
	if err != nil {
		outcome.Err = err
		o.metrics.IncInventoryDecrementError()
		logger.Error("failed to decrement inventory",
			zap.String("inventoryItemId", resource.InventoryItemID),
			zap.Int("quantityUsed", resource.QuantityUsed),
			zap.Error(err),
		)
		return outcome
	}

	outcome.Name = item.Name
	outcome.Quantity = item.Quantity
	outcome.Threshold = item.Threshold
	outcome.LowStock = item.LowStock()

	if outcome.LowStock {
		o.metrics.IncInventoryAlert()
		alert := o.notifier.Dispatch(ctx, DispatchRequest{
			Type:       domain.MessageTypeAlert,
			Content:    LowStockContent(item),
			BusinessID: booking.BusinessID,
		})
		outcome.Alert = &alert
	}

	return outcome
}

// ConfirmationContent renders the booking confirmation email body.
func ConfirmationContent(service *domain.Service, at time.Time) string {
	return fmt.Sprintf("Booking Confirmed: %s on %s", service.DisplayName(), at.Format(confirmationDateLayout))
}

// LowStockContent renders the internal low-stock alert.
func LowStockContent(item *domain.InventoryItem) string {
	return fmt.Sprintf("⚠️ Low Stock Alert: %s is down to %d. Threshold: %d.", item.Name, item.Quantity, item.Threshold)
}
