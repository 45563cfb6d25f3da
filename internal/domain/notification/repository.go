package notification

import (
	"context"
	"errors"
	"time"

	"subscription_notifier/internal/domain/calendar"
)

// ErrDuplicateNotification is returned by Record when the ledger already holds
// an entry for the same tenant, stage and cycle end date.
var ErrDuplicateNotification = errors.New("notification already recorded for (tenant_id, stage, cycle_end_date)")

// Ledger is the deduplication log of sent notifications.
type Ledger interface {
	AlreadySent(ctx context.Context, tenantID int64, stage Stage, cycleEnd calendar.Date) (bool, error)
	// Record inserts the entry atomically. Implementations must rely on a
	// storage-level unique constraint and return ErrDuplicateNotification when
	// it rejects the row.
	Record(ctx context.Context, entry *LogEntry) error

	// ListRecent returns the newest entries first.
	ListRecent(ctx context.Context, limit int) ([]*LogEntryWithTenant, error)
	// CountByStageSince counts entries sent at or after since.
	CountByStageSince(ctx context.Context, since time.Time) (map[Stage]int, error)
}
