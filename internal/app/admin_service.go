package app

import (
	"context"
	"fmt"

	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// BatchRunner runs the expiry batch for the current business day. The
// scheduler implements it so manual and scheduled runs share one entrypoint.
type BatchRunner interface {
	RunNow(ctx context.Context) (BatchSummary, error)
}

// AdminService guards administrative operations behind the configured admin id.
type AdminService struct {
	runner          BatchRunner
	audit           *AuditService
	renewals        *RenewalService
	adminTelegramID int64
}

func NewAdminService(runner BatchRunner, audit *AuditService, renewals *RenewalService, adminID int64) *AdminService {
	return &AdminService{
		runner:          runner,
		audit:           audit,
		renewals:        renewals,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) IsAdmin(userID int64) bool {
	return userID == s.adminTelegramID
}

// RunNotifications triggers a batch and returns a one-line confirmation.
// Per-tenant failures only show up in the counters.
func (s *AdminService) RunNotifications(ctx context.Context, performingAdminID int64) (string, error) {
	if !s.IsAdmin(performingAdminID) {
		return "", ErrAdminNotAuthorized
	}
	summary, err := s.runner.RunNow(ctx)
	if err != nil {
		return "", fmt.Errorf("notification batch failed: %w", err)
	}
	return "Expiry notification run finished: " + summary.String(), nil
}

func (s *AdminService) RecentNotifications(ctx context.Context, performingAdminID int64, limit int) ([]*notification.LogEntryWithTenant, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.audit.RecentNotifications(ctx, limit)
}

func (s *AdminService) NotificationStats(ctx context.Context, performingAdminID int64) ([]StageCount, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.audit.StageStats(ctx)
}

func (s *AdminService) Renew(ctx context.Context, performingAdminID int64, req RenewRequest) (*subscription.Cycle, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.renewals.Renew(ctx, req)
}

func (s *AdminService) ListCycles(ctx context.Context, performingAdminID int64, tenantID int64) ([]*subscription.Cycle, error) {
	if !s.IsAdmin(performingAdminID) {
		return nil, ErrAdminNotAuthorized
	}
	return s.renewals.ListCycles(ctx, tenantID)
}
