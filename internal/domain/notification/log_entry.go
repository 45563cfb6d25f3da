package notification

import (
	"time"

	"subscription_notifier/internal/domain/calendar"
)

// LogEntry records one delivered lifecycle notification.
// Corresponds to the 'notification_log' table; (TenantID, Stage, CycleEndDate) is unique.
type LogEntry struct {
	ID           int64
	TenantID     int64         // Foreign Key to tenants.id
	Stage        Stage
	CycleEndDate calendar.Date // cycle end that was current when the notification fired
	SentAt       time.Time
	Recipient    string
}

// LogEntryWithTenant is a ledger row joined with tenant context, for audit views.
type LogEntryWithTenant struct {
	LogEntry
	TenantName string
}
