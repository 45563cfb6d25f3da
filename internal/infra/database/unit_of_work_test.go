package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/domain/tenant"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCycle(tenantID int64) *subscription.Cycle {
	return &subscription.Cycle{
		TenantID: tenantID, OfferID: 1, OfferName: "Monthly", OfferPrice: decimal.NewFromInt(30), DurationDays: 30,
		StartDate: calendar.NewDate(2025, time.June, 1), EndDate: calendar.NewDate(2025, time.July, 1),
		PaymentMethod: "card", PaymentAmount: decimal.NewFromInt(30),
		CreatedAt: time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestUnitOfWork_CommitsOnSuccess(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tn := createTenant(t, db, "Acme", "ops@acme.test", nil)

	err := NewUnitOfWork(db).Do(ctx, func(cycles subscription.CycleRepository, tenants tenant.Repository) error {
		c := testCycle(tn.ID)
		if err := cycles.Create(ctx, c); err != nil {
			return err
		}
		return tenants.UpdateCycleBounds(ctx, tn.ID, &c.StartDate, &c.EndDate)
	})
	require.NoError(t, err)

	cycles, err := NewCycleRepository(db).ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)

	got, err := NewTenantRepository(db).GetByID(ctx, tn.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentCycleEnd)
	assert.Equal(t, calendar.NewDate(2025, time.July, 1), *got.CurrentCycleEnd)
}

func TestUnitOfWork_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	tn := createTenant(t, db, "Acme", "ops@acme.test", day(2025, time.May, 31))
	failure := errors.New("bounds update failed")

	err := NewUnitOfWork(db).Do(ctx, func(cycles subscription.CycleRepository, tenants tenant.Repository) error {
		c := testCycle(tn.ID)
		if err := cycles.Create(ctx, c); err != nil {
			return err
		}
		if err := tenants.UpdateCycleBounds(ctx, tn.ID, &c.StartDate, &c.EndDate); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	cycles, err := NewCycleRepository(db).ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Empty(t, cycles)

	got, err := NewTenantRepository(db).GetByID(ctx, tn.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentCycleEnd)
	assert.Equal(t, calendar.NewDate(2025, time.May, 31), *got.CurrentCycleEnd)
}

type brokenResult struct{}

func (brokenResult) LastInsertId() (int64, error) { return 0, nil }
func (brokenResult) RowsAffected() (int64, error) {
	return 0, errors.New("rows affected not supported")
}

// execOnlyQuerier answers every Exec with a result whose RowsAffected fails.
type execOnlyQuerier struct{}

func (execOnlyQuerier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return brokenResult{}, nil
}

func (execOnlyQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (execOnlyQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func (execOnlyQuerier) Rebind(query string) string { return query }

func TestRowsAffectedErrorIsReturned(t *testing.T) {
	ctx := context.Background()

	err := (&CycleRepository{db: execOnlyQuerier{}}).Delete(ctx, 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCycleNotFound)
	assert.ErrorContains(t, err, "rows affected not supported")

	err = (&TenantRepository{db: execOnlyQuerier{}}).UpdateCycleBounds(ctx, 5, nil, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTenantNotFound)
	assert.ErrorContains(t, err, "rows affected not supported")
}
