package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/subscription"
)

var ErrOfferNotFound = errors.New("offer not found")

type OfferRepository struct {
	db *DB
}

func NewOfferRepository(db *DB) *OfferRepository {
	return &OfferRepository{db: db}
}

func (r *OfferRepository) GetByID(ctx context.Context, id int64) (*subscription.Offer, error) {
	query := `SELECT id, name, price, duration_days, sales_cutoff FROM offers WHERE id = $1`
	o := &subscription.Offer{}
	var cutoff calendar.NullDate
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), id).Scan(&o.ID, &o.Name, &o.Price, &o.DurationDays, &cutoff)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, fmt.Errorf("error getting offer by ID: %w", err)
	}
	o.SalesCutoff = cutoff.Ptr()
	return o, nil
}

// Create inserts an offer; the catalogue is managed elsewhere, this backs fixtures.
func (r *OfferRepository) Create(ctx context.Context, o *subscription.Offer) error {
	query := `INSERT INTO offers (name, price, duration_days, sales_cutoff)
               VALUES ($1, $2, $3, $4)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query), o.Name, o.Price, o.DurationDays, nullDate(o.SalesCutoff)).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("error creating offer: %w", err)
	}
	return nil
}

var _ subscription.OfferRepository = (*OfferRepository)(nil)
