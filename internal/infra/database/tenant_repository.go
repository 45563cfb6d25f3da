package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/tenant"
)

// Custom errors
var ErrTenantNotFound = errors.New("tenant not found")

// TenantRepository reads tenants and maintains their denormalized cycle bounds.
type TenantRepository struct {
	db querier
}

func NewTenantRepository(db *DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func scanTenant(row interface{ Scan(...any) error }) (*tenant.Tenant, error) {
	t := &tenant.Tenant{}
	var start, end calendar.NullDate
	if err := row.Scan(&t.ID, &t.DisplayName, &t.ContactEmail, &start, &end); err != nil {
		return nil, err
	}
	t.CurrentCycleStart = start.Ptr()
	t.CurrentCycleEnd = end.Ptr()
	return t, nil
}

func (r *TenantRepository) GetByID(ctx context.Context, id int64) (*tenant.Tenant, error) {
	query := `SELECT id, display_name, contact_email, current_cycle_start, current_cycle_end
               FROM tenants WHERE id = $1`
	t, err := scanTenant(r.db.QueryRowContext(ctx, r.db.Rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("error getting tenant by ID: %w", err)
	}
	return t, nil
}

func (r *TenantRepository) ListNotifiable(ctx context.Context) ([]*tenant.Tenant, error) {
	query := `SELECT id, display_name, contact_email, current_cycle_start, current_cycle_end
               FROM tenants
               WHERE current_cycle_end IS NOT NULL AND contact_email IS NOT NULL AND contact_email <> ''
               ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing notifiable tenants: %w", err)
	}
	defer rows.Close()

	tenants := make([]*tenant.Tenant, 0)
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning notifiable tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifiable tenants: %w", err)
	}
	return tenants, nil
}

func (r *TenantRepository) UpdateCycleBounds(ctx context.Context, id int64, start, end *calendar.Date) error {
	query := `UPDATE tenants SET current_cycle_start = $1, current_cycle_end = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), nullDate(start), nullDate(end), id)
	if err != nil {
		return fmt.Errorf("error updating tenant cycle bounds: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for tenant %d: %w", id, err)
	}
	if n == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// Create inserts a tenant. Tenant provisioning is owned elsewhere; this is
// used by fixtures and the CLI seed path.
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	query := `INSERT INTO tenants (display_name, contact_email, current_cycle_start, current_cycle_end)
               VALUES ($1, $2, $3, $4)
               RETURNING id`
	err := r.db.QueryRowContext(ctx, r.db.Rebind(query),
		t.DisplayName, t.ContactEmail, nullDate(t.CurrentCycleStart), nullDate(t.CurrentCycleEnd),
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("error creating tenant: %w", err)
	}
	return nil
}

func nullDate(d *calendar.Date) calendar.NullDate {
	if d == nil {
		return calendar.NullDate{}
	}
	return calendar.NullDate{Date: *d, Valid: true}
}

var _ tenant.Repository = (*TenantRepository)(nil)
