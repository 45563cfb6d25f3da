package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/domain/tenant"
	idb "subscription_notifier/internal/infra/database"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// RenewRequest is a purchase of an offer by a tenant.
type RenewRequest struct {
	TenantID      int64
	OfferID       int64
	PaymentMethod string
	PaymentAmount decimal.Decimal // zero means the offer price
	Metadata      map[string]string
}

type RenewalService struct {
	tenants  tenant.Repository
	cycles   subscription.CycleRepository
	offers   subscription.OfferRepository
	uow      subscription.UnitOfWork
	location *time.Location
	now      func() time.Time
	logger   *logrus.Entry
}

func NewRenewalService(
	tr tenant.Repository,
	cr subscription.CycleRepository,
	or subscription.OfferRepository,
	uow subscription.UnitOfWork,
	location *time.Location,
	logger *logrus.Entry,
) *RenewalService {
	return &RenewalService{
		tenants:  tr,
		cycles:   cr,
		offers:   or,
		uow:      uow,
		location: location,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *RenewalService) WithClock(now func() time.Time) *RenewalService {
	s.now = now
	return s
}

// Renew appends a new cycle for the tenant and refreshes its current cycle
// bounds. Validation happens before anything is written; the cycle and the
// bounds are written in one transaction.
func (s *RenewalService) Renew(ctx context.Context, req RenewRequest) (*subscription.Cycle, error) {
	today := calendar.Today(s.now(), s.location)

	offer, err := s.offers.GetByID(ctx, req.OfferID)
	if err != nil {
		if errors.Is(err, idb.ErrOfferNotFound) {
			return nil, idb.ErrOfferNotFound
		}
		return nil, fmt.Errorf("failed to load offer %d: %w", req.OfferID, err)
	}
	if !offer.SoldOn(today) {
		return nil, subscription.ErrOfferNoLongerSold
	}

	if _, err := s.tenants.GetByID(ctx, req.TenantID); err != nil {
		if errors.Is(err, idb.ErrTenantNotFound) {
			return nil, idb.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant %d: %w", req.TenantID, err)
	}

	amount := req.PaymentAmount
	if amount.IsZero() {
		amount = offer.Price
	}

	var cycle *subscription.Cycle
	err = s.uow.Do(ctx, func(cycles subscription.CycleRepository, tenants tenant.Repository) error {
		last, err := cycles.GetLatestByTenant(ctx, req.TenantID)
		if err != nil {
			if !errors.Is(err, idb.ErrCycleNotFound) {
				return fmt.Errorf("failed to load latest cycle of tenant %d: %w", req.TenantID, err)
			}
			last = nil
		}

		period, err := subscription.ComputeNextCycle(last, offer.DurationDays, today)
		if err != nil {
			return err
		}

		c := &subscription.Cycle{
			TenantID:      req.TenantID,
			OfferID:       offer.ID,
			OfferName:     offer.Name,
			OfferPrice:    offer.Price,
			DurationDays:  offer.DurationDays,
			StartDate:     period.Start,
			EndDate:       period.End,
			PaymentMethod: req.PaymentMethod,
			PaymentAmount: amount,
			Metadata:      req.Metadata,
			CreatedAt:     s.now(),
		}
		if err := cycles.Create(ctx, c); err != nil {
			return fmt.Errorf("failed to create cycle: %w", err)
		}
		if err := recomputeBounds(ctx, cycles, tenants, req.TenantID); err != nil {
			return err
		}
		cycle = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": cycle.TenantID,
		"cycle_id":  cycle.ID,
		"offer_id":  cycle.OfferID,
		"start":     cycle.StartDate.String(),
		"end":       cycle.EndDate.String(),
	}).Info("Subscription renewed")
	return cycle, nil
}

// DeleteCycle removes a cycle for administrative correction and refreshes
// the owning tenant's bounds in the same transaction.
func (s *RenewalService) DeleteCycle(ctx context.Context, cycleID int64) error {
	var tenantID int64
	err := s.uow.Do(ctx, func(cycles subscription.CycleRepository, tenants tenant.Repository) error {
		cycle, err := cycles.GetByID(ctx, cycleID)
		if err != nil {
			if errors.Is(err, idb.ErrCycleNotFound) {
				return idb.ErrCycleNotFound
			}
			return fmt.Errorf("failed to load cycle %d: %w", cycleID, err)
		}
		if err := cycles.Delete(ctx, cycleID); err != nil {
			return fmt.Errorf("failed to delete cycle %d: %w", cycleID, err)
		}
		tenantID = cycle.TenantID
		return recomputeBounds(ctx, cycles, tenants, cycle.TenantID)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"cycle_id":  cycleID,
	}).Warn("Subscription cycle deleted")
	return nil
}

func (s *RenewalService) ListCycles(ctx context.Context, tenantID int64) ([]*subscription.Cycle, error) {
	cycles, err := s.cycles.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles of tenant %d: %w", tenantID, err)
	}
	return cycles, nil
}

// RecomputeTenantBounds repairs the tenant's current cycle bounds from its cycles.
func (s *RenewalService) RecomputeTenantBounds(ctx context.Context, tenantID int64) error {
	return s.uow.Do(ctx, func(cycles subscription.CycleRepository, tenants tenant.Repository) error {
		return recomputeBounds(ctx, cycles, tenants, tenantID)
	})
}

// recomputeBounds sets the tenant's current cycle bounds to the earliest
// start and latest end over all its cycles, or clears them.
func recomputeBounds(ctx context.Context, cycles subscription.CycleRepository, tenants tenant.Repository, tenantID int64) error {
	all, err := cycles.ListByTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to list cycles of tenant %d: %w", tenantID, err)
	}

	var startPtr, endPtr *calendar.Date
	if start, end, ok := subscription.Bounds(all); ok {
		startPtr, endPtr = &start, &end
	}
	if err := tenants.UpdateCycleBounds(ctx, tenantID, startPtr, endPtr); err != nil {
		return fmt.Errorf("failed to update cycle bounds of tenant %d: %w", tenantID, err)
	}
	return nil
}
