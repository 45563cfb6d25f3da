package subscription

import (
	"subscription_notifier/internal/domain/calendar"

	"github.com/shopspring/decimal"
)

// Offer is a purchasable plan. Owned by the catalogue, read-only here.
type Offer struct {
	ID           int64
	Name         string
	Price        decimal.Decimal
	DurationDays int
	SalesCutoff  *calendar.Date // nil when the offer is sold indefinitely
}

// SoldOn reports whether the offer can still be bought on the given day.
func (o *Offer) SoldOn(today calendar.Date) bool {
	return o.SalesCutoff == nil || !o.SalesCutoff.Before(today)
}
