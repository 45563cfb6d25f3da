package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"subscription_notifier/internal/domain/subscription"
)

var ErrCycleNotFound = errors.New("subscription cycle not found")

// CycleRepository is the append-only store of subscription cycles.
type CycleRepository struct {
	db querier
}

func NewCycleRepository(db *DB) *CycleRepository {
	return &CycleRepository{db: db}
}

const cycleColumns = `id, tenant_id, offer_id, offer_name, offer_price, duration_days, start_date, end_date,
               payment_method, payment_amount, metadata, created_at`

func scanCycle(row interface{ Scan(...any) error }) (*subscription.Cycle, error) {
	c := &subscription.Cycle{}
	var metadata string
	if err := row.Scan(
		&c.ID, &c.TenantID, &c.OfferID, &c.OfferName, &c.OfferPrice, &c.DurationDays,
		&c.StartDate, &c.EndDate, &c.PaymentMethod, &c.PaymentAmount, &metadata, timestamp{&c.CreatedAt},
	); err != nil {
		return nil, err
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, fmt.Errorf("error decoding metadata of cycle %d: %w", c.ID, err)
		}
	}
	return c, nil
}

func (r *CycleRepository) Create(ctx context.Context, c *subscription.Cycle) error {
	metadata := []byte("{}")
	if len(c.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(c.Metadata); err != nil {
			return fmt.Errorf("error encoding cycle metadata: %w", err)
		}
	}

	query := `INSERT INTO subscription_cycles (tenant_id, offer_id, offer_name, offer_price, duration_days,
                   start_date, end_date, payment_method, payment_amount, metadata, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query),
		c.TenantID, c.OfferID, c.OfferName, c.OfferPrice, c.DurationDays,
		c.StartDate, c.EndDate, c.PaymentMethod, c.PaymentAmount, string(metadata), formatTimestamp(c.CreatedAt),
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("error creating subscription cycle: %w", err)
	}
	return nil
}

func (r *CycleRepository) GetByID(ctx context.Context, id int64) (*subscription.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM subscription_cycles WHERE id = $1`
	c, err := scanCycle(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting subscription cycle by ID: %w", err)
	}
	return c, nil
}

func (r *CycleRepository) GetLatestByTenant(ctx context.Context, tenantID int64) (*subscription.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM subscription_cycles
               WHERE tenant_id = $1 ORDER BY end_date DESC, id DESC LIMIT 1`
	c, err := scanCycle(r.db.QueryRowContext(ctx, r.db.Rebind(query), tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCycleNotFound
		}
		return nil, fmt.Errorf("error getting latest subscription cycle: %w", err)
	}
	return c, nil
}

func (r *CycleRepository) ListByTenant(ctx context.Context, tenantID int64) ([]*subscription.Cycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM subscription_cycles
               WHERE tenant_id = $1 ORDER BY start_date, id`
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), tenantID)
	if err != nil {
		return nil, fmt.Errorf("error listing subscription cycles: %w", err)
	}
	defer rows.Close()

	cycles := make([]*subscription.Cycle, 0)
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning subscription cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription cycles: %w", err)
	}
	return cycles, nil
}

func (r *CycleRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM subscription_cycles WHERE id = $1`), id)
	if err != nil {
		return fmt.Errorf("error deleting subscription cycle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for cycle %d: %w", id, err)
	}
	if n == 0 {
		return ErrCycleNotFound
	}
	return nil
}

var _ subscription.CycleRepository = (*CycleRepository)(nil)
