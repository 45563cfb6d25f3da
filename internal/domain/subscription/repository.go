package subscription

import (
	"context"

	"subscription_notifier/internal/domain/tenant"
)

// CycleRepository persists subscription cycles. Cycles are append-only;
// Delete exists for administrative corrections only.
type CycleRepository interface {
	Create(ctx context.Context, c *Cycle) error
	GetByID(ctx context.Context, id int64) (*Cycle, error)
	// GetLatestByTenant returns the cycle with the latest end date.
	GetLatestByTenant(ctx context.Context, tenantID int64) (*Cycle, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]*Cycle, error)
	Delete(ctx context.Context, id int64) error
}

// OfferRepository is the read side of the offer catalogue.
type OfferRepository interface {
	GetByID(ctx context.Context, id int64) (*Offer, error)
}

// UnitOfWork runs fn with cycle and tenant repositories bound to a single
// transaction. A non-nil error from fn rolls every write back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(cycles CycleRepository, tenants tenant.Repository) error) error
}
