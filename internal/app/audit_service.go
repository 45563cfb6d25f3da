package app

import (
	"context"
	"fmt"
	"time"

	"subscription_notifier/internal/domain/notification"

	"github.com/samber/lo"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
	StatsWindow        = 30 * 24 * time.Hour
)

// StageCount is the number of notifications sent for one stage.
type StageCount struct {
	Stage notification.Stage
	Count int
}

// AuditService answers read-only questions about the notification ledger.
type AuditService struct {
	ledger notification.Ledger
	now    func() time.Time
}

func NewAuditService(ledger notification.Ledger) *AuditService {
	return &AuditService{ledger: ledger, now: time.Now}
}

func (s *AuditService) WithClock(now func() time.Time) *AuditService {
	s.now = now
	return s
}

// RecentNotifications returns the newest ledger entries. A non-positive
// limit falls back to DefaultRecentLimit; larger limits are capped.
func (s *AuditService) RecentNotifications(ctx context.Context, limit int) ([]*notification.LogEntryWithTenant, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	entries, err := s.ledger.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent notifications: %w", err)
	}
	return entries, nil
}

// StageStats counts notifications sent over the trailing StatsWindow, one
// row per stage in lifecycle order, zeros included.
func (s *AuditService) StageStats(ctx context.Context) ([]StageCount, error) {
	counts, err := s.ledger.CountByStageSince(ctx, s.now().Add(-StatsWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications by stage: %w", err)
	}
	return lo.Map(notification.AllStages(), func(st notification.Stage, _ int) StageCount {
		return StageCount{Stage: st, Count: counts[st]}
	}), nil
}
