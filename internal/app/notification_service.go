package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/mail"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/tenant"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// BatchSummary counts the outcome of one dispatcher pass. Tenants with no
// stage today are not counted.
type BatchSummary struct {
	Sent    int
	Skipped int
	Errored int
}

func (s BatchSummary) String() string {
	return fmt.Sprintf("sent=%d skipped=%d errored=%d", s.Sent, s.Skipped, s.Errored)
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSent
	outcomeSkipped
	outcomeErrored
)

// NotificationService dispatches expiry lifecycle notifications.
type NotificationService struct {
	tenants  tenant.Repository
	ledger   notification.Ledger
	sender   mail.Sender
	renderer *Renderer
	location *time.Location // business timezone
	workers  int
	now      func() time.Time
	logger   *logrus.Entry
}

func NewNotificationService(
	tr tenant.Repository,
	ledger notification.Ledger,
	sender mail.Sender,
	renderer *Renderer,
	location *time.Location,
	workers int,
	logger *logrus.Entry,
) *NotificationService {
	if workers < 1 {
		workers = 1
	}
	return &NotificationService{
		tenants:  tr,
		ledger:   ledger,
		sender:   sender,
		renderer: renderer,
		location: location,
		workers:  workers,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock replaces the wall clock, for tests and backfills.
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}

// Today is the current calendar day in the business timezone.
func (s *NotificationService) Today() calendar.Date {
	return calendar.Today(s.now(), s.location)
}

// RunToday runs the batch for the current business day.
func (s *NotificationService) RunToday(ctx context.Context) (BatchSummary, error) {
	return s.RunBatch(ctx, s.Today())
}

// RunBatch sends every notification due on today. It is safe to call
// repeatedly and concurrently: the ledger's unique constraint guarantees each
// (tenant, stage, cycle end) is recorded once. A failure for one tenant is
// logged and counted, never returned; only a failure to list tenants aborts.
func (s *NotificationService) RunBatch(ctx context.Context, today calendar.Date) (BatchSummary, error) {
	runLog := s.logger.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"today":  today.String(),
	})
	runLog.Info("Starting expiry notification batch")

	tenants, err := s.tenants.ListNotifiable(ctx)
	if err != nil {
		runLog.WithError(err).Error("Failed to list notifiable tenants")
		return BatchSummary{}, fmt.Errorf("failed to list notifiable tenants: %w", err)
	}
	tenants = lo.Filter(tenants, func(t *tenant.Tenant, _ int) bool {
		return t.CurrentCycleEnd != nil && t.ContactEmail.Valid && t.ContactEmail.String != ""
	})
	runLog.WithField("tenants", len(tenants)).Debug("Tenants loaded")

	var sent, skipped, errored atomic.Int64
	p := pool.New().WithMaxGoroutines(s.workers)
	for _, t := range tenants {
		t := t
		p.Go(func() {
			switch s.processTenantSafely(ctx, runLog, t, today) {
			case outcomeSent:
				sent.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeErrored:
				errored.Add(1)
			}
		})
	}
	p.Wait()

	summary := BatchSummary{Sent: int(sent.Load()), Skipped: int(skipped.Load()), Errored: int(errored.Load())}
	runLog.WithFields(logrus.Fields{
		"sent":    summary.Sent,
		"skipped": summary.Skipped,
		"errored": summary.Errored,
	}).Info("Expiry notification batch finished")
	return summary, nil
}

func (s *NotificationService) processTenantSafely(ctx context.Context, runLog *logrus.Entry, t *tenant.Tenant, today calendar.Date) (result outcome) {
	defer func() {
		if r := recover(); r != nil {
			runLog.WithField("tenant_id", t.ID).WithField("panic", r).Error("Panic while processing tenant")
			result = outcomeErrored
		}
	}()
	return s.processTenant(ctx, runLog, t, today)
}

func (s *NotificationService) processTenant(ctx context.Context, runLog *logrus.Entry, t *tenant.Tenant, today calendar.Date) outcome {
	cycleEnd := *t.CurrentCycleEnd
	offset := notification.ResolveOffset(cycleEnd, today)
	stage, ok := notification.ResolveStage(offset)
	if !ok {
		return outcomeNone
	}

	log := runLog.WithFields(logrus.Fields{
		"tenant_id": t.ID,
		"stage":     stage,
		"cycle_end": cycleEnd.String(),
		"offset":    offset,
	})

	alreadySent, err := s.ledger.AlreadySent(ctx, t.ID, stage, cycleEnd)
	if err != nil {
		log.WithError(err).Error("Failed to check notification ledger")
		return outcomeErrored
	}
	if alreadySent {
		log.Debug("Notification already sent for this cycle, skipping")
		return outcomeSkipped
	}

	msg, err := s.renderer.RenderMessage(stage, TemplateData{TenantName: t.DisplayName, CycleEnd: cycleEnd})
	if err != nil {
		log.WithError(err).Error("Failed to render notification")
		return outcomeErrored
	}

	recipient := t.ContactEmail.String
	if err := s.sender.Send(ctx, mail.Message{To: recipient, Subject: msg.Subject, HTML: msg.HTML}); err != nil {
		log.WithError(err).Error("Failed to deliver notification")
		return outcomeErrored
	}

	err = s.ledger.Record(ctx, &notification.LogEntry{
		TenantID:     t.ID,
		Stage:        stage,
		CycleEndDate: cycleEnd,
		SentAt:       s.now(),
		Recipient:    recipient,
	})
	if errors.Is(err, notification.ErrDuplicateNotification) {
		log.Debug("Notification recorded by a concurrent run, counting as skipped")
		return outcomeSkipped
	}
	if err != nil {
		log.WithError(err).Error("Notification delivered but not recorded in ledger")
		return outcomeErrored
	}

	log.WithField("recipient", recipient).Info("Notification sent")
	return outcomeSent
}
