package subscription

import (
	"time"

	"subscription_notifier/internal/domain/calendar"

	"github.com/shopspring/decimal"
)

// Cycle is one paid subscription period of a tenant.
// Corresponds to the 'subscription_cycles' table. Rows are historical facts:
// offer fields are copied at purchase time and never updated afterwards.
type Cycle struct {
	ID            int64
	TenantID      int64 // Foreign Key to tenants.id
	OfferID       int64
	OfferName     string
	OfferPrice    decimal.Decimal
	DurationDays  int
	StartDate     calendar.Date
	EndDate       calendar.Date
	PaymentMethod string
	PaymentAmount decimal.Decimal
	Metadata      map[string]string // e.g. external payment-provider correlation id
	CreatedAt     time.Time
}

// DaysSubscribed is the number of days from start to end.
func (c *Cycle) DaysSubscribed() int {
	return calendar.DaysBetween(c.StartDate, c.EndDate)
}
