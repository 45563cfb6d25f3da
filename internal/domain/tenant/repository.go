package tenant

import (
	"context"

	"subscription_notifier/internal/domain/calendar"
)

// Repository is the subset of the tenant service this module depends on.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Tenant, error)
	// ListNotifiable returns tenants with both a current cycle end date and a
	// contact address.
	ListNotifiable(ctx context.Context) ([]*Tenant, error)
	// UpdateCycleBounds writes the denormalized current cycle bounds.
	// Nil values clear them.
	UpdateCycleBounds(ctx context.Context, id int64, start, end *calendar.Date) error
}
