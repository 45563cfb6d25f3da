package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/domain/tenant"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewSQLiteConnection(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func createTenant(t *testing.T, db *DB, name, email string, end *calendar.Date) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{DisplayName: name, CurrentCycleEnd: end}
	if email != "" {
		tn.ContactEmail = sql.NullString{String: email, Valid: true}
	}
	require.NoError(t, NewTenantRepository(db).Create(context.Background(), tn))
	return tn
}

func day(y int, m time.Month, d int) *calendar.Date {
	date := calendar.NewDate(y, m, d)
	return &date
}

func TestRebind(t *testing.T) {
	sqlite := &DB{Driver: "sqlite"}
	postgres := &DB{Driver: "postgres"}
	query := `SELECT 1 WHERE a = $1 AND b = $2 AND c = $10`

	assert.Equal(t, `SELECT 1 WHERE a = ?1 AND b = ?2 AND c = ?10`, sqlite.Rebind(query))
	assert.Equal(t, query, postgres.Rebind(query))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.Migrate(context.Background()))
}

func TestTenantRepository_ListNotifiable(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()

	active := createTenant(t, db, "Acme", "ops@acme.test", day(2025, time.June, 10))
	createTenant(t, db, "No Contact", "", day(2025, time.June, 10))
	createTenant(t, db, "No Cycle", "owner@nocycle.test", nil)

	tenants, err := repo.ListNotifiable(ctx)
	require.NoError(t, err)
	require.Len(t, tenants, 1)
	assert.Equal(t, active.ID, tenants[0].ID)
	assert.Equal(t, "ops@acme.test", tenants[0].ContactEmail.String)
	require.NotNil(t, tenants[0].CurrentCycleEnd)
	assert.Equal(t, calendar.NewDate(2025, time.June, 10), *tenants[0].CurrentCycleEnd)
	assert.Nil(t, tenants[0].CurrentCycleStart)
}

func TestTenantRepository_UpdateCycleBounds(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTenantRepository(db)
	ctx := context.Background()
	tn := createTenant(t, db, "Acme", "ops@acme.test", nil)

	require.NoError(t, repo.UpdateCycleBounds(ctx, tn.ID, day(2025, time.May, 1), day(2025, time.July, 1)))

	got, err := repo.GetByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, calendar.NewDate(2025, time.May, 1), *got.CurrentCycleStart)
	assert.Equal(t, calendar.NewDate(2025, time.July, 1), *got.CurrentCycleEnd)

	require.NoError(t, repo.UpdateCycleBounds(ctx, tn.ID, nil, nil))
	got, err = repo.GetByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CurrentCycleEnd)

	assert.ErrorIs(t, repo.UpdateCycleBounds(ctx, 9999, nil, nil), ErrTenantNotFound)
	_, err = repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

func TestOfferRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewOfferRepository(db)
	ctx := context.Background()

	offer := &subscription.Offer{
		Name:         "Monthly",
		Price:        decimal.RequireFromString("29.90"),
		DurationDays: 30,
		SalesCutoff:  day(2025, time.December, 31),
	}
	require.NoError(t, repo.Create(ctx, offer))

	got, err := repo.GetByID(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, "Monthly", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("29.9")))
	assert.Equal(t, 30, got.DurationDays)
	require.NotNil(t, got.SalesCutoff)
	assert.Equal(t, calendar.NewDate(2025, time.December, 31), *got.SalesCutoff)

	_, err = repo.GetByID(ctx, offer.ID+1)
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestCycleRepository_CreateAndQuery(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCycleRepository(db)
	ctx := context.Background()
	tn := createTenant(t, db, "Acme", "ops@acme.test", nil)

	first := &subscription.Cycle{
		TenantID: tn.ID, OfferID: 1, OfferName: "Monthly", OfferPrice: decimal.NewFromInt(30), DurationDays: 30,
		StartDate: calendar.NewDate(2025, time.May, 11), EndDate: calendar.NewDate(2025, time.June, 10),
		PaymentMethod: "card", PaymentAmount: decimal.NewFromInt(30),
		Metadata:  map[string]string{"provider_ref": "pi_123"},
		CreatedAt: time.Date(2025, time.May, 11, 8, 0, 0, 0, time.UTC),
	}
	second := &subscription.Cycle{
		TenantID: tn.ID, OfferID: 1, OfferName: "Monthly", OfferPrice: decimal.NewFromInt(30), DurationDays: 30,
		StartDate: calendar.NewDate(2025, time.June, 11), EndDate: calendar.NewDate(2025, time.July, 11),
		PaymentMethod: "manual", PaymentAmount: decimal.NewFromInt(30),
		CreatedAt: time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	latest, err := repo.GetLatestByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, 30, latest.DaysSubscribed())

	got, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_123", got.Metadata["provider_ref"])
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))
	assert.True(t, got.PaymentAmount.Equal(decimal.NewFromInt(30)))

	cycles, err := repo.ListByTenant(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, first.ID, cycles[0].ID)

	require.NoError(t, repo.Delete(ctx, second.ID))
	assert.ErrorIs(t, repo.Delete(ctx, second.ID), ErrCycleNotFound)

	latest, err = repo.GetLatestByTenant(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	_, err = repo.GetLatestByTenant(ctx, tn.ID+100)
	assert.ErrorIs(t, err, ErrCycleNotFound)
}

func TestCycleRepository_RejectsInvertedDates(t *testing.T) {
	db := setupTestDB(t)
	tn := createTenant(t, db, "Acme", "ops@acme.test", nil)

	err := NewCycleRepository(db).Create(context.Background(), &subscription.Cycle{
		TenantID: tn.ID, OfferID: 1, OfferName: "Monthly", DurationDays: 30,
		StartDate: calendar.NewDate(2025, time.June, 10), EndDate: calendar.NewDate(2025, time.June, 1),
		CreatedAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestNotificationRepository_RecordIsUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	tn := createTenant(t, db, "Acme", "ops@acme.test", day(2025, time.June, 10))
	end := calendar.NewDate(2025, time.June, 10)

	sent, err := repo.AlreadySent(ctx, tn.ID, notification.StagePreExpiry, end)
	require.NoError(t, err)
	assert.False(t, sent)

	entry := &notification.LogEntry{
		TenantID: tn.ID, Stage: notification.StagePreExpiry, CycleEndDate: end,
		SentAt: time.Date(2025, time.June, 5, 7, 0, 0, 0, time.UTC), Recipient: "ops@acme.test",
	}
	require.NoError(t, repo.Record(ctx, entry))
	assert.NotZero(t, entry.ID)

	sent, err = repo.AlreadySent(ctx, tn.ID, notification.StagePreExpiry, end)
	require.NoError(t, err)
	assert.True(t, sent)

	dup := *entry
	dup.ID = 0
	assert.ErrorIs(t, repo.Record(ctx, &dup), notification.ErrDuplicateNotification)

	// Same stage for a later cycle end is a different notification.
	next := *entry
	next.ID = 0
	next.CycleEndDate = calendar.NewDate(2025, time.July, 11)
	assert.NoError(t, repo.Record(ctx, &next))
}

func TestNotificationRepository_ConcurrentRecordHasSingleWinner(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	tn := createTenant(t, db, "Acme", "ops@acme.test", day(2025, time.June, 10))

	const attempts = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins, dups int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.Record(context.Background(), &notification.LogEntry{
				TenantID: tn.ID, Stage: notification.StageLockout,
				CycleEndDate: calendar.NewDate(2025, time.June, 10),
				SentAt:       time.Now(), Recipient: "ops@acme.test",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, notification.ErrDuplicateNotification):
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, dups)
}

func TestNotificationRepository_AuditQueries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	acme := createTenant(t, db, "Acme", "ops@acme.test", day(2025, time.June, 10))
	globex := createTenant(t, db, "Globex", "it@globex.test", day(2025, time.June, 10))
	end := calendar.NewDate(2025, time.June, 10)
	now := time.Date(2025, time.July, 10, 9, 0, 0, 0, time.UTC)

	records := []*notification.LogEntry{
		{TenantID: acme.ID, Stage: notification.StagePreExpiry, CycleEndDate: end, SentAt: now.AddDate(0, 0, -35), Recipient: "ops@acme.test"},
		{TenantID: acme.ID, Stage: notification.StageLockout, CycleEndDate: end, SentAt: now.AddDate(0, 0, -30), Recipient: "ops@acme.test"},
		{TenantID: globex.ID, Stage: notification.StageLockout, CycleEndDate: end, SentAt: now.AddDate(0, 0, -29), Recipient: "it@globex.test"},
		{TenantID: globex.ID, Stage: notification.StageArchivalWarning, CycleEndDate: end, SentAt: now, Recipient: "it@globex.test"},
	}
	for _, r := range records {
		require.NoError(t, repo.Record(ctx, r))
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, notification.StageArchivalWarning, recent[0].Stage)
	assert.Equal(t, "Globex", recent[0].TenantName)
	assert.True(t, recent[0].SentAt.Equal(now))
	assert.Equal(t, notification.StageLockout, recent[1].Stage)

	counts, err := repo.CountByStageSince(ctx, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[notification.StageLockout])
	assert.Equal(t, 1, counts[notification.StageArchivalWarning])
	assert.Zero(t, counts[notification.StagePreExpiry])
}

func TestNotificationRepository_CascadeOnTenantDelete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()
	tn := createTenant(t, db, "Acme", "ops@acme.test", day(2025, time.June, 10))

	require.NoError(t, repo.Record(ctx, &notification.LogEntry{
		TenantID: tn.ID, Stage: notification.StageLockout, CycleEndDate: calendar.NewDate(2025, time.June, 10),
		SentAt: time.Now(), Recipient: "ops@acme.test",
	}))

	_, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM tenants WHERE id = $1`), tn.ID)
	require.NoError(t, err)

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
