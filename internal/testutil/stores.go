// Package testutil holds in-memory implementations of the repositories and
// senders, for service tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"subscription_notifier/internal/domain/calendar"
	"subscription_notifier/internal/domain/notification"
	"subscription_notifier/internal/domain/subscription"
	"subscription_notifier/internal/domain/tenant"
	idb "subscription_notifier/internal/infra/database"
)

// TenantStore is an in-memory tenant.Repository.
type TenantStore struct {
	mu      sync.Mutex
	tenants map[int64]*tenant.Tenant
	ListErr error
	// FailUpdateOnce, when set, is returned by the next UpdateCycleBounds
	// and then cleared.
	FailUpdateOnce error
}

func NewTenantStore(tenants ...*tenant.Tenant) *TenantStore {
	s := &TenantStore{tenants: make(map[int64]*tenant.Tenant)}
	for _, t := range tenants {
		s.Put(t)
	}
	return s
}

func (s *TenantStore) Put(t *tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tenants[t.ID] = &cp
}

func (s *TenantStore) GetByID(_ context.Context, id int64) (*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, idb.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *TenantStore) ListNotifiable(_ context.Context) ([]*tenant.Tenant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	out := make([]*tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		if t.CurrentCycleEnd == nil || !t.ContactEmail.Valid {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *TenantStore) UpdateCycleBounds(_ context.Context, id int64, start, end *calendar.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailUpdateOnce; err != nil {
		s.FailUpdateOnce = nil
		return err
	}
	t, ok := s.tenants[id]
	if !ok {
		return idb.ErrTenantNotFound
	}
	t.CurrentCycleStart, t.CurrentCycleEnd = start, end
	return nil
}

func (s *TenantStore) snapshot() map[int64]tenant.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]tenant.Tenant, len(s.tenants))
	for id, t := range s.tenants {
		out[id] = *t
	}
	return out
}

func (s *TenantStore) restore(snap map[int64]tenant.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenants = make(map[int64]*tenant.Tenant, len(snap))
	for id, t := range snap {
		cp := t
		s.tenants[id] = &cp
	}
}

// CycleStore is an in-memory subscription.CycleRepository.
type CycleStore struct {
	mu     sync.Mutex
	nextID int64
	cycles map[int64]*subscription.Cycle
}

func NewCycleStore() *CycleStore {
	return &CycleStore{cycles: make(map[int64]*subscription.Cycle)}
}

func (s *CycleStore) Create(_ context.Context, c *subscription.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c.ID = s.nextID
	cp := *c
	s.cycles[c.ID] = &cp
	return nil
}

func (s *CycleStore) GetByID(_ context.Context, id int64) (*subscription.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cycles[id]
	if !ok {
		return nil, idb.ErrCycleNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *CycleStore) GetLatestByTenant(ctx context.Context, tenantID int64) (*subscription.Cycle, error) {
	cycles, _ := s.ListByTenant(ctx, tenantID)
	if len(cycles) == 0 {
		return nil, idb.ErrCycleNotFound
	}
	latest := cycles[0]
	for _, c := range cycles[1:] {
		if c.EndDate.After(latest.EndDate) || (c.EndDate.Equal(latest.EndDate) && c.ID > latest.ID) {
			latest = c
		}
	}
	return latest, nil
}

func (s *CycleStore) ListByTenant(_ context.Context, tenantID int64) ([]*subscription.Cycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*subscription.Cycle, 0)
	for _, c := range s.cycles {
		if c.TenantID == tenantID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (s *CycleStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cycles[id]; !ok {
		return idb.ErrCycleNotFound
	}
	delete(s.cycles, id)
	return nil
}

// Len returns the number of stored cycles.
func (s *CycleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cycles)
}

func (s *CycleStore) snapshot() (int64, map[int64]subscription.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]subscription.Cycle, len(s.cycles))
	for id, c := range s.cycles {
		out[id] = *c
	}
	return s.nextID, out
}

func (s *CycleStore) restore(nextID int64, snap map[int64]subscription.Cycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = nextID
	s.cycles = make(map[int64]*subscription.Cycle, len(snap))
	for id, c := range snap {
		cp := c
		s.cycles[id] = &cp
	}
}

// UnitOfWork is an in-memory subscription.UnitOfWork over a TenantStore and
// a CycleStore. A failed fn restores both stores to their state before Do.
type UnitOfWork struct {
	mu      sync.Mutex
	tenants *TenantStore
	cycles  *CycleStore
}

func NewUnitOfWork(tenants *TenantStore, cycles *CycleStore) *UnitOfWork {
	return &UnitOfWork{tenants: tenants, cycles: cycles}
}

func (u *UnitOfWork) Do(_ context.Context, fn func(cycles subscription.CycleRepository, tenants tenant.Repository) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	tenantSnap := u.tenants.snapshot()
	nextID, cycleSnap := u.cycles.snapshot()
	if err := fn(u.cycles, u.tenants); err != nil {
		u.tenants.restore(tenantSnap)
		u.cycles.restore(nextID, cycleSnap)
		return err
	}
	return nil
}

// OfferStore is an in-memory subscription.OfferRepository.
type OfferStore struct {
	offers map[int64]*subscription.Offer
}

func NewOfferStore(offers ...*subscription.Offer) *OfferStore {
	s := &OfferStore{offers: make(map[int64]*subscription.Offer)}
	for _, o := range offers {
		s.offers[o.ID] = o
	}
	return s
}

func (s *OfferStore) GetByID(_ context.Context, id int64) (*subscription.Offer, error) {
	o, ok := s.offers[id]
	if !ok {
		return nil, idb.ErrOfferNotFound
	}
	cp := *o
	return &cp, nil
}

// Ledger is an in-memory notification.Ledger whose Record is atomic under a
// mutex, like a unique constraint.
type Ledger struct {
	mu      sync.Mutex
	nextID  int64
	entries []*notification.LogEntry
	// CheckErr, when set, fails AlreadySent for that tenant.
	CheckErr map[int64]error
}

func NewLedger() *Ledger {
	return &Ledger{CheckErr: make(map[int64]error)}
}

func (l *Ledger) find(tenantID int64, stage notification.Stage, cycleEnd calendar.Date) bool {
	for _, e := range l.entries {
		if e.TenantID == tenantID && e.Stage == stage && e.CycleEndDate.Equal(cycleEnd) {
			return true
		}
	}
	return false
}

func (l *Ledger) AlreadySent(_ context.Context, tenantID int64, stage notification.Stage, cycleEnd calendar.Date) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.CheckErr[tenantID]; err != nil {
		return false, err
	}
	return l.find(tenantID, stage, cycleEnd), nil
}

func (l *Ledger) Record(_ context.Context, entry *notification.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.find(entry.TenantID, entry.Stage, entry.CycleEndDate) {
		return notification.ErrDuplicateNotification
	}
	l.nextID++
	entry.ID = l.nextID
	cp := *entry
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *Ledger) ListRecent(_ context.Context, limit int) ([]*notification.LogEntryWithTenant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*notification.LogEntryWithTenant, 0, len(l.entries))
	for i := len(l.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, &notification.LogEntryWithTenant{LogEntry: *l.entries[i]})
	}
	return out, nil
}

func (l *Ledger) CountByStageSince(_ context.Context, since time.Time) (map[notification.Stage]int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[notification.Stage]int)
	for _, e := range l.entries {
		if !e.SentAt.Before(since) {
			counts[e.Stage]++
		}
	}
	return counts, nil
}

// Entries returns a copy of all recorded entries in insertion order.
func (l *Ledger) Entries() []notification.LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]notification.LogEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Seed inserts an entry directly, for tests that start from history.
func (l *Ledger) Seed(entry notification.LogEntry) {
	if err := l.Record(context.Background(), &entry); err != nil && !errors.Is(err, notification.ErrDuplicateNotification) {
		panic(err)
	}
}
