package database

import (
	"context"
	"database/sql"
	"fmt"

	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/domain/tenant"
)

// Tx is a *sql.Tx that rebinds placeholders like its DB.
type Tx struct {
	*sql.Tx
	Driver string
}

func (tx *Tx) Rebind(query string) string {
	return rebind(tx.Driver, query)
}

// UnitOfWork runs cycle and tenant writes in one transaction.
type UnitOfWork struct {
	db *DB
}

func NewUnitOfWork(db *DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Do(ctx context.Context, fn func(cycles subscription.CycleRepository, tenants tenant.Repository) error) error {
	txn, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	tx := &Tx{Tx: txn, Driver: u.db.Driver}
	if err := fn(&CycleRepository{db: tx}, &TenantRepository{db: tx}); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var _ subscription.UnitOfWork = (*UnitOfWork)(nil)
