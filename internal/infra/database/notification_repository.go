package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/notification"
)

// NotificationRepository is the SQL-backed notification ledger.
// Deduplication is carried by the notification_log_tenant_stage_cycle_unique
// constraint, not by application checks.
type NotificationRepository struct {
	db *DB
}

func NewNotificationRepository(db *DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) AlreadySent(ctx context.Context, tenantID int64, stage notification.Stage, cycleEnd calendar.Date) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM notification_log
                   WHERE tenant_id = $1 AND stage = $2 AND cycle_end_date = $3)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, r.db.Rebind(query), tenantID, string(stage), cycleEnd).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking notification log: %w", err)
	}
	return exists, nil
}

// Record inserts the entry in one statement. A conflicting row yields no
// RETURNING row, which is reported as ErrDuplicateNotification.
func (r *NotificationRepository) Record(ctx context.Context, entry *notification.LogEntry) error {
	query := `INSERT INTO notification_log (tenant_id, stage, cycle_end_date, sent_at, recipient)
               VALUES ($1, $2, $3, $4, $5)
               ON CONFLICT (tenant_id, stage, cycle_end_date) DO NOTHING
               RETURNING id`
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query),
		entry.TenantID, string(entry.Stage), entry.CycleEndDate, formatTimestamp(entry.SentAt), entry.Recipient,
	).Scan(&entry.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notification.ErrDuplicateNotification
		}
		return fmt.Errorf("error recording notification (tenant %d, stage %s, cycle end %s): %w",
			entry.TenantID, entry.Stage, entry.CycleEndDate, err)
	}
	return nil
}

func (r *NotificationRepository) ListRecent(ctx context.Context, limit int) ([]*notification.LogEntryWithTenant, error) {
	query := `SELECT l.id, l.tenant_id, l.stage, l.cycle_end_date, l.sent_at, l.recipient, t.display_name
               FROM notification_log l
               JOIN tenants t ON t.id = l.tenant_id
               ORDER BY l.sent_at DESC, l.id DESC
               LIMIT $1`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("error querying recent notifications: %w", err)
	}
	defer rows.Close()

	entries := make([]*notification.LogEntryWithTenant, 0, limit)
	for rows.Next() {
		e := &notification.LogEntryWithTenant{}
		var stage string
		if err := rows.Scan(&e.ID, &e.TenantID, &stage, &e.CycleEndDate, timestamp{&e.SentAt}, &e.Recipient, &e.TenantName); err != nil {
			return nil, fmt.Errorf("error scanning notification log row: %w", err)
		}
		e.Stage = notification.Stage(stage)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification log rows: %w", err)
	}
	return entries, nil
}

func (r *NotificationRepository) CountByStageSince(ctx context.Context, since time.Time) (map[notification.Stage]int, error) {
	query := `SELECT stage, COUNT(*) FROM notification_log WHERE sent_at >= $1 GROUP BY stage`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), formatTimestamp(since))
	if err != nil {
		return nil, fmt.Errorf("error counting notifications by stage: %w", err)
	}
	defer rows.Close()

	counts := make(map[notification.Stage]int)
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("error scanning stage count: %w", err)
		}
		counts[notification.Stage(stage)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stage counts: %w", err)
	}
	return counts, nil
}

var _ notification.Ledger = (*NotificationRepository)(nil)
