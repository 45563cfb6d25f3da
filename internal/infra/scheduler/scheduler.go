package scheduler

import (
	"context"
	"fmt"
	"time"

	"subscription_notifier/internal/app"
	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/telegram"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const scheduledRunTimeout = 30 * time.Minute

// Job is the batch the scheduler drives.
type Job interface {
	RunToday(ctx context.Context) (app.BatchSummary, error)
	RunBatch(ctx context.Context, today calendar.Date) (app.BatchSummary, error)
}

// NotificationScheduler owns the single daily expiry check. The cron trigger,
// manual triggers and backfills all go through guard.
type NotificationScheduler struct {
	cronEngine  *cron.Cron
	job         Job
	notifier    telegram.Client // optional, receives a summary after scheduled runs
	adminChatID int64
	logger      *logrus.Entry
	cronSpec    string
}

func NewNotificationScheduler(
	job Job,
	location *time.Location,
	cronSpec string, // e.g., "0 9 * * *" (9 AM daily in the business timezone)
	logger *logrus.Entry,
) *NotificationScheduler {
	return &NotificationScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			cron.WithChain(cron.Recover(cronLogger{logger})),
		),
		job:      job,
		logger:   logger,
		cronSpec: cronSpec,
	}
}

// WithAdminNotifier posts the summary of every scheduled run to chatID.
func (s *NotificationScheduler) WithAdminNotifier(notifier telegram.Client, chatID int64) *NotificationScheduler {
	s.notifier = notifier
	s.adminChatID = chatID
	return s
}

func (s *NotificationScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting notification scheduler")

	_, err := s.cronEngine.AddFunc(s.cronSpec, s.runScheduled)
	if err != nil {
		return fmt.Errorf("could not add expiry check cron job: %w", err)
	}

	s.cronEngine.Start()
	s.logger.Info("Notification scheduler started")
	return nil
}

func (s *NotificationScheduler) runScheduled() {
	s.logger.Info("Cron job triggered for expiry check")

	ctx, cancel := context.WithTimeout(context.Background(), scheduledRunTimeout)
	defer cancel()
	summary, err := s.RunNow(ctx)
	if s.notifier == nil {
		return
	}

	text := "Scheduled expiry check finished: " + summary.String()
	if err != nil {
		text = "Scheduled expiry check failed: " + err.Error()
	}
	if sendErr := s.notifier.SendMessage(s.adminChatID, text); sendErr != nil {
		s.logger.WithError(sendErr).Warn("Failed to post run summary to admin")
	}
}

// RunNow runs the batch for today. A batch-fatal error, including a panic,
// is logged and returned.
func (s *NotificationScheduler) RunNow(ctx context.Context) (app.BatchSummary, error) {
	return s.guard(func() (app.BatchSummary, error) {
		return s.job.RunToday(ctx)
	})
}

// RunFor runs the batch as if today were day, for backfilling a missed run.
func (s *NotificationScheduler) RunFor(ctx context.Context, day calendar.Date) (app.BatchSummary, error) {
	return s.guard(func() (app.BatchSummary, error) {
		return s.job.RunBatch(ctx, day)
	})
}

func (s *NotificationScheduler) guard(run func() (app.BatchSummary, error)) (summary app.BatchSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("expiry batch panicked: %v", r)
			s.logger.WithError(err).Error("Expiry batch aborted")
		}
	}()

	summary, err = run()
	if err != nil {
		s.logger.WithError(err).Error("Expiry batch aborted")
		return summary, err
	}
	return summary, nil
}

func (s *NotificationScheduler) Stop() {
	s.logger.Info("Stopping notification scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Notification scheduler gracefully stopped")
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
