package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/careops-engine/internal/observability"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultReminderSchedule = "0 8 * * *"

// SweepRunner runs one reminder sweep.
type SweepRunner interface {
	RunSweep(ctx context.Context, now time.Time) SweepResult
}

// DayGuard claims a calendar day so the sweep runs once per day.
type DayGuard interface {
	Acquire(ctx context.Context, day time.Time) (bool, error)
	Release(ctx context.Context, day time.Time) error
}

// TriggerResult reports one trigger of the reminder sweep.
type TriggerResult struct {
	Ran    bool
	Forced bool
	// SkipReason is set when the day was already claimed.
	SkipReason string
	Result     SweepResult
}

// ReminderScheduler runs the reminder sweep on a cron schedule and serves
// manual triggers. A nil guard disables the once-per-day check.
type ReminderScheduler struct {
	sweep    SweepRunner
	guard    DayGuard
	schedule string
	logger   *zap.Logger
	now      func() time.Time
}

func NewReminderScheduler(
	sweep SweepRunner,
	guard DayGuard,
	schedule string,
	logger *zap.Logger,
) (*ReminderScheduler, error) {
	if sweep == nil {
		return nil, fmt.Errorf("sweep is required")
	}
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		schedule = DefaultReminderSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid reminder schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ReminderScheduler{
		sweep:    sweep,
		guard:    guard,
		schedule: schedule,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start runs the cron loop until ctx is cancelled, then waits for a running
// sweep to drain.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	logger := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(s.schedule, func() {
		s.Trigger(ctx, false)
	}); err != nil {
		return fmt.Errorf("failed to schedule reminder sweep: %w", err)
	}

	s.logger.Info("reminder scheduler started", zap.String("schedule", s.schedule))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("reminder scheduler stopped")
	return nil
}

// Trigger runs the sweep now. Unless force is set, a day already claimed by
// another run is skipped. A guard failure does not block the sweep. A sweep
// that fails or stops early gives the day back so a later trigger can finish it.
func (s *ReminderScheduler) Trigger(ctx context.Context, force bool) TriggerResult {
	ctx, _ = observability.EnsureCorrelationID(ctx)
	logger := observability.WithContextLogger(s.logger, ctx)

	now := s.now()
	claimed := false
	if !force && s.guard != nil {
		ok, err := s.guard.Acquire(ctx, now)
		switch {
		case err != nil:
			logger.Warn("sweep guard unavailable, running anyway", zap.Error(err))
		case !ok:
			logger.Info("reminder sweep already ran today")
			return TriggerResult{SkipReason: "already ran today"}
		default:
			claimed = true
		}
	}

	result := s.sweep.RunSweep(ctx, now)
	if claimed && (result.Err != nil || result.Aborted) {
		if err := s.guard.Release(context.WithoutCancel(ctx), now); err != nil {
			logger.Warn("failed to release sweep guard", zap.Error(err))
		}
	}

	return TriggerResult{Ran: true, Forced: force, Result: result}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
