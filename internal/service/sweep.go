package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/domain"
	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/kursadbilgin/careops-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSweepConcurrency = 4
	reminderTimeLayout      = "03:04 PM"
)

// Reminder outcome statuses.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// SweepOutcome is the result for one reminded booking.
type SweepOutcome struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
}

// SweepResult reports one reminder sweep. Skipped bookings (no lead or
// automation paused) are absent from Details and not counted in Processed.
type SweepResult struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Processed   int
	Details     []SweepOutcome
	// Aborted is set when cancellation stopped the sweep before every booking
	// was started; Pending counts the bookings never started.
	Aborted bool
	Pending int
	// Err is set when the bookings could not be queried.
	Err error
}

// ReminderSweep reminds the customers of tomorrow's confirmed bookings.
type ReminderSweep struct {
	bookings    repository.BookingRepository
	notifier    Notifier
	concurrency int
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewReminderSweep(
	bookings repository.BookingRepository,
	notifier Notifier,
	concurrency int,
	logger *zap.Logger,
) (*ReminderSweep, error) {
	if bookings == nil {
		return nil, fmt.Errorf("booking repository is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if concurrency < 1 {
		concurrency = defaultSweepConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderSweep{
		bookings:    bookings,
		notifier:    notifier,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

func (s *ReminderSweep) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// ReminderWindow returns the inclusive bounds of the calendar day after now,
// in now's location.
func ReminderWindow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.AddDate(0, 0, 1).Date()
	loc := now.Location()
	return time.Date(y, m, d, 0, 0, 0, 0, loc), time.Date(y, m, d, 23, 59, 59, 999999999, loc)
}

// RunSweep never fails; query errors land in SweepResult.Err. Cancelling ctx
// stops new bookings from starting while in-flight reminders finish.
func (s *ReminderSweep) RunSweep(ctx context.Context, now time.Time) SweepResult {
	started := time.Now()
	defer func() {
		s.metrics.ObserveSweepDuration(time.Since(started))
	}()

	logger := observability.WithContextLogger(s.logger, ctx)

	result := SweepResult{Details: []SweepOutcome{}}
	result.WindowStart, result.WindowEnd = ReminderWindow(now)

	bookings, err := s.bookings.ListConfirmedBetween(ctx, result.WindowStart, result.WindowEnd)
	if err != nil {
		result.Err = err
		logger.Error("reminder sweep query failed",
			zap.Time("windowStart", result.WindowStart),
			zap.Time("windowEnd", result.WindowEnd),
			zap.Error(err),
		)
		return result
	}

	eligible := make([]domain.Booking, 0, len(bookings))
	for _, booking := range bookings {
		if !booking.Status.Actionable() || !booking.Lead.AutomationEnabled() {
			s.metrics.IncSweepSkipped()
			logger.Debug("reminder skipped",
				zap.String("bookingId", booking.ID),
				zap.Bool("leadMissing", booking.Lead == nil),
			)
			continue
		}
		eligible = append(eligible, booking)
	}

	// Started reminders finish even if ctx is cancelled mid-sweep.
	detached := context.WithoutCancel(ctx)
	outcomes := make([]*SweepOutcome, len(eligible))
	slots := make(chan struct{}, s.concurrency)

	var g errgroup.Group
	launched := 0

launch:
	for i := range eligible {
		select {
		case <-ctx.Done():
			break launch
		case slots <- struct{}{}:
		}
		if ctx.Err() != nil {
			<-slots
			break launch
		}

		booking := eligible[i]
		launched++
		g.Go(func() error {
			defer func() { <-slots }()
			outcome := s.remind(detached, logger, booking, now.Location())
			outcomes[i] = &outcome
			return nil
		})
	}
	_ = g.Wait()

	for _, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		result.Details = append(result.Details, *outcome)
		s.metrics.IncSweepOutcome(outcome.Status)
	}
	result.Processed = len(result.Details)
	result.Pending = len(eligible) - launched
	result.Aborted = result.Pending > 0

	logger.Info("reminder sweep finished",
		zap.Time("windowStart", result.WindowStart),
		zap.Int("queried", len(bookings)),
		zap.Int("processed", result.Processed),
		zap.Int("pending", result.Pending),
	)

	return result
}

func (s *ReminderSweep) remind(
	ctx context.Context,
	logger *zap.Logger,
	booking domain.Booking,
	loc *time.Location,
) (outcome SweepOutcome) {
	outcome = SweepOutcome{BookingID: booking.ID, Status: OutcomeFailed}

	defer func() {
		if r := recover(); r != nil {
			outcome.Status = OutcomeFailed
			logger.Error("reminder panicked",
				zap.String("bookingId", booking.ID),
				zap.Any("panic", r),
			)
		}
	}()

	result := s.notifier.Dispatch(ctx, DispatchRequest{
		Type:       domain.MessageTypeSMS,
		Content:    ReminderContent(booking.Service, booking.Date.In(loc)),
		To:         booking.Lead.SMSAddress(),
		BusinessID: booking.BusinessID,
		LeadID:     booking.Lead.ID,
		BookingID:  booking.ID,
	})
	if result.Delivered() {
		outcome.Status = OutcomeSent
		return outcome
	}

	logger.Warn("reminder failed",
		zap.String("bookingId", booking.ID),
		zap.String("leadId", booking.Lead.ID),
		zap.String("dispatchStatus", string(result.Status)),
	)
	return outcome
}

// ReminderContent renders the reminder SMS body.
func ReminderContent(service *domain.Service, at time.Time) string {
	return fmt.Sprintf("Reminder: You have an appointment for %s tomorrow at %s.", service.DisplayName(), at.Format(reminderTimeLayout))
}
