package reservation

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/identity"
	"github.com/nekogravitycat/reservation-backend/internal/inventory"
	"github.com/nekogravitycat/reservation-backend/internal/notify"
	"github.com/nekogravitycat/reservation-backend/internal/organization"
	"github.com/nekogravitycat/reservation-backend/internal/pricing"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

// memRepository keeps rows in maps and rolls a transaction back by restoring a snapshot.
type memRepository struct {
	tx sync.Mutex
	mu sync.Mutex

	reservations map[string]Reservation
	details      map[string]Detail
	links        map[string][]ResourceLink
	locked       [][]string

	creates       int
	failCreateErr error
	// racedCodes are taken by another writer after CodeExists reports them free.
	racedCodes  map[string]bool
	failLinkErr error
}

func newMemRepository() *memRepository {
	return &memRepository{
		reservations: map[string]Reservation{},
		details:      map[string]Detail{},
		links:        map[string][]ResourceLink{},
	}
}

type memSnapshot struct {
	reservations map[string]Reservation
	details      map[string]Detail
	links        map[string][]ResourceLink
}

func (m *memRepository) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := memSnapshot{
		reservations: make(map[string]Reservation, len(m.reservations)),
		details:      make(map[string]Detail, len(m.details)),
		links:        make(map[string][]ResourceLink, len(m.links)),
	}
	for k, v := range m.reservations {
		s.reservations[k] = v
	}
	for k, v := range m.details {
		s.details[k] = v
	}
	for k, v := range m.links {
		s.links[k] = slices.Clone(v)
	}
	return s
}

func (m *memRepository) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations, m.details, m.links = s.reservations, s.details, s.links
}

func (m *memRepository) WithTx(_ context.Context, fn func(repo Repository) error) error {
	m.tx.Lock()
	defer m.tx.Unlock()
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Savepoint runs inside the caller's WithTx, which already holds m.tx.
func (m *memRepository) Savepoint(_ context.Context, fn func(repo Repository) error) error {
	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memRepository) LockResources(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = append(m.locked, slices.Sorted(slices.Values(ids)))
	return nil
}

func (m *memRepository) Create(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreateErr != nil {
		return m.failCreateErr
	}
	if m.racedCodes[r.Code] {
		return ErrCodeTaken
	}
	for _, existing := range m.reservations {
		if existing.Code == r.Code {
			return ErrCodeTaken
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	m.creates++
	m.reservations[r.ID] = stripped(r)
	return nil
}

func stripped(r *Reservation) Reservation {
	cp := *r
	cp.Detail = nil
	cp.Resources = nil
	cp.OrganizationName = ""
	return cp
}

func (m *memRepository) assemble(r Reservation) *Reservation {
	if d, ok := m.details[r.ID]; ok && !d.IsDeleted {
		r.Detail = &d
	}
	r.Resources = m.activeLinks(r.ID)
	return &r
}

func (m *memRepository) activeLinks(id string) []ResourceLink {
	var out []ResourceLink
	for _, l := range m.links[id] {
		if !l.IsDeleted {
			out = append(out, l)
		}
	}
	return out
}

func (m *memRepository) GetByID(_ context.Context, id string, includeDeleted bool) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || (r.IsDeleted && !includeDeleted) {
		return nil, ErrNotFound
	}
	return m.assemble(r), nil
}

func (m *memRepository) GetForUpdate(ctx context.Context, id string) (*Reservation, error) {
	return m.GetByID(ctx, id, false)
}

func (m *memRepository) GetByCode(_ context.Context, code string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.Code == code && !r.IsDeleted {
			return m.assemble(r), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepository) List(_ context.Context, f Filter) ([]*Reservation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.reservations {
		if r.IsDeleted ||
			(f.UserID != "" && r.UserID != f.UserID) ||
			(f.OrganizationID != "" && r.OrganizationID != f.OrganizationID) ||
			(f.StatusName != "" && r.StatusName != f.StatusName) {
			continue
		}
		cp := r
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *Reservation) int { return a.StartDate.Compare(b.StartDate) })
	return out, len(out), nil
}

func (m *memRepository) Update(_ context.Context, r *Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.reservations[r.ID]
	if !ok || existing.IsDeleted {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now()
	m.reservations[r.ID] = stripped(r)
	return nil
}

func (m *memRepository) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.IsDeleted {
		return ErrNotFound
	}
	r.IsDeleted, r.IsActive = true, false
	m.reservations[id] = r
	return nil
}

func (m *memRepository) CodeExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepository) CreateDetail(_ context.Context, d *Detail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = uuid.NewString()
	m.details[d.ReservationID] = *d
	return nil
}

func (m *memRepository) ListDetails(_ context.Context, ids []string) (map[string]Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]Detail{}
	for _, id := range ids {
		if d, ok := m.details[id]; ok && !d.IsDeleted {
			out[id] = d
		}
	}
	return out, nil
}

func (m *memRepository) UpdateDetail(_ context.Context, d *Detail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.details[d.ReservationID]; !ok {
		return ErrNotFound
	}
	m.details[d.ReservationID] = *d
	return nil
}

func (m *memRepository) SoftDeleteDetail(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.details[reservationID]; ok {
		d.IsDeleted, d.IsActive = true, false
		m.details[reservationID] = d
	}
	return nil
}

func (m *memRepository) CreateLink(_ context.Context, l *ResourceLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLinkErr != nil {
		return m.failLinkErr
	}
	l.ID = uuid.NewString()
	m.links[l.ReservationID] = append(m.links[l.ReservationID], *l)
	return nil
}

func (m *memRepository) ListLinks(_ context.Context, ids []string) (map[string][]ResourceLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string][]ResourceLink{}
	for _, id := range ids {
		if links := m.activeLinks(id); len(links) > 0 {
			out[id] = links
		}
	}
	return out, nil
}

func (m *memRepository) SoftDeleteLinks(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	links := m.links[reservationID]
	for i := range links {
		links[i].IsDeleted, links[i].IsActive = true, false
	}
	return nil
}

func (m *memRepository) conflicts(ids []string, start, end time.Time, excludeID string) []*Reservation {
	var out []*Reservation
	for _, r := range m.reservations {
		if r.ID == excludeID || r.IsDeleted || !r.IsActive {
			continue
		}
		if !(!r.StartDate.After(end) && !r.EndDate.Before(start)) {
			continue
		}
		for _, l := range m.activeLinks(r.ID) {
			if slices.Contains(ids, l.ResourceID) {
				cp := r
				out = append(out, &cp)
				break
			}
		}
	}
	return out
}

func (m *memRepository) FindConflicts(_ context.Context, ids []string, start, end time.Time, excludeID string) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conflicts(ids, start, end, excludeID), nil
}

func (m *memRepository) HasOverlap(_ context.Context, id string, start, end time.Time, excludeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conflicts([]string{id}, start, end, excludeID)) > 0, nil
}

func (m *memRepository) ListElapsed(_ context.Context, asOf time.Time, names []string) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Reservation
	for _, r := range m.reservations {
		if !r.IsDeleted && r.EndDate.Before(asOf) && slices.Contains(names, r.StatusName) {
			out = append(out, m.assemble(r))
		}
	}
	return out, nil
}

func (m *memRepository) Stats(_ context.Context, f StatsFilter) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &Stats{ByStatus: map[string]int{}, Revenue: decimal.Zero}
	for _, r := range m.reservations {
		if r.IsDeleted || (f.OrganizationID != "" && r.OrganizationID != f.OrganizationID) {
			continue
		}
		st.add(r.StatusName, 1, r.TotalAmount)
	}
	return st, nil
}

func (m *memRepository) CountPerDay(_ context.Context, _ StatsFilter) ([]DayCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[time.Time]int{}
	for _, r := range m.reservations {
		if !r.IsDeleted {
			counts[r.StartDate]++
		}
	}
	var out []DayCount
	for day, n := range counts {
		out = append(out, DayCount{Date: day, Count: n})
	}
	slices.SortFunc(out, func(a, b DayCount) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func (m *memRepository) CountBySource(_ context.Context, _ StatsFilter) ([]SourceCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, r := range m.reservations {
		if !r.IsDeleted {
			counts[r.Source]++
		}
	}
	var out []SourceCount
	for source, n := range counts {
		out = append(out, SourceCount{Source: source, Count: n})
	}
	slices.SortFunc(out, func(a, b SourceCount) int { return strings.Compare(a.Source, b.Source) })
	return out, nil
}

func (m *memRepository) SearchClients(_ context.Context, name string, limit int) ([]Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Client
	for id, d := range m.details {
		if d.IsDeleted || !strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			continue
		}
		out = append(out, Client{Name: d.Name, Email: d.Email, Phone: d.Phone, Reservations: 1, LastStay: m.reservations[id].StartDate})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

// fakeStatuses hands out one stable status row per name.
type fakeStatuses struct {
	mu     sync.Mutex
	byName map[string]*status.Status
}

func newFakeStatuses() *fakeStatuses {
	return &fakeStatuses{byName: map[string]*status.Status{}}
}

func (f *fakeStatuses) GetOrCreate(_ context.Context, name string) (*status.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.byName[name]
	if !ok {
		st = &status.Status{ID: uuid.NewString(), Name: name, IsActive: true}
		f.byName[name] = st
	}
	cp := *st
	return &cp, nil
}

func (f *fakeStatuses) FindByName(_ context.Context, name string) (*status.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok := f.byName[name]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, status.ErrNotFound
}

func (f *fakeStatuses) GetByID(context.Context, string) (*status.Status, error) {
	return nil, status.ErrNotFound
}

func (f *fakeStatuses) List(context.Context, status.Filter) ([]*status.Status, int, error) {
	return nil, 0, nil
}

func (f *fakeStatuses) Create(context.Context, status.CreateRequest) (*status.Status, error) {
	return nil, status.ErrNameTaken
}

func (f *fakeStatuses) Update(context.Context, string, status.UpdateRequest) (*status.Status, error) {
	return nil, status.ErrNotFound
}

func (f *fakeStatuses) Delete(context.Context, string) error { return status.ErrNotFound }

// fakePricing adds markup to every night's base price.
type fakePricing struct {
	mu        sync.Mutex
	markup    decimal.Decimal
	priceErr  error
	refundErr error
	ledgerErr error
	// refundDelay widens the window between reading a reservation and committing its cancellation.
	refundDelay time.Duration
	refunds     []pricing.RefundRequest
	ledger      []pricing.LedgerEntry
	priced      int
}

func (f *fakePricing) FullPrice(_ context.Context, req pricing.PriceRequest) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priced++
	if f.priceErr != nil {
		return decimal.Zero, f.priceErr
	}
	return req.BasePrice.Add(f.markup), nil
}

func (f *fakePricing) Refund(_ context.Context, req pricing.RefundRequest) error {
	time.Sleep(f.refundDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunds = append(f.refunds, req)
	return nil
}

func (f *fakePricing) RecordLedgerEntry(_ context.Context, e pricing.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ledgerErr != nil {
		return f.ledgerErr
	}
	f.ledger = append(f.ledger, e)
	return nil
}

type fakeIdentity struct {
	users map[string]identity.User
}

func (f *fakeIdentity) GetUser(_ context.Context, id string) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &u, nil
}

type fakeInventory struct {
	mu        sync.Mutex
	resources map[string]inventory.Resource
	batches   int
}

func (f *fakeInventory) GetResources(_ context.Context, ids []string) (map[string]inventory.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	out := map[string]inventory.Resource{}
	for _, id := range ids {
		if res, ok := f.resources[id]; ok {
			out[id] = res
		}
	}
	return out, nil
}

func (f *fakeInventory) NotifyChange(context.Context, inventory.ChangeEvent) error { return nil }

type fakeOrganizations struct {
	orgs     map[string]organization.Organization
	managers map[string]bool // "org/user"
}

func (f *fakeOrganizations) GetOrganization(_ context.Context, id string) (*organization.Organization, error) {
	o, ok := f.orgs[id]
	if !ok {
		return nil, organization.ErrOrganizationNotFound
	}
	return &o, nil
}

func (f *fakeOrganizations) GetOrganizations(_ context.Context, ids []string) (map[string]organization.Organization, error) {
	out := map[string]organization.Organization{}
	for _, id := range ids {
		if o, ok := f.orgs[id]; ok {
			out[id] = o
		}
	}
	return out, nil
}

func (f *fakeOrganizations) IsManager(_ context.Context, orgID, userID string) (bool, error) {
	return f.managers[orgID+"/"+userID], nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) actions() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Action
	}
	return out
}
