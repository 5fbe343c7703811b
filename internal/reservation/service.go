package reservation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nekogravitycat/reservation-backend/internal/cache"
	"github.com/nekogravitycat/reservation-backend/internal/identity"
	"github.com/nekogravitycat/reservation-backend/internal/inventory"
	"github.com/nekogravitycat/reservation-backend/internal/metrics"
	"github.com/nekogravitycat/reservation-backend/internal/notify"
	"github.com/nekogravitycat/reservation-backend/internal/organization"
	"github.com/nekogravitycat/reservation-backend/internal/pricing"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

type Service interface {
	Create(ctx context.Context, actor Actor, req CreateRequest) (*Reservation, error)
	// CreateForOrganization books on behalf of an organization. Pricing is skipped and the caller's amount is kept.
	CreateForOrganization(ctx context.Context, actor Actor, req CreateRequest) (*Reservation, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Reservation, error)
	// UpdateForOrganization never changes is_active, whatever the status becomes.
	UpdateForOrganization(ctx context.Context, actor Actor, id string, req UpdateRequest) (*Reservation, error)
	Confirm(ctx context.Context, actor Actor, id string) (*Reservation, error)
	Cancel(ctx context.Context, actor Actor, id string, reason string) (*Reservation, error)
	Delete(ctx context.Context, actor Actor, id string) error
	// ValidateTicket looks a reservation up by code and checks it in as a side effect.
	ValidateTicket(ctx context.Context, actor Actor, code string) (*Reservation, error)

	GetByID(ctx context.Context, id string) (*Reservation, error)
	GetByCode(ctx context.Context, code string) (*Reservation, error)
	GetByIDIncludingDeleted(ctx context.Context, id string) (*Reservation, error)
	List(ctx context.Context, filter Filter) ([]*Reservation, int, error)
	ListByResources(ctx context.Context, resourceIDs []string, start, end time.Time) ([]*Reservation, error)
	// Authorize fails unless actor owns r, manages its organization, or is a system admin.
	Authorize(ctx context.Context, actor Actor, r *Reservation) error
	// AuthorizeOrganization fails unless actor manages orgID or is a system admin.
	AuthorizeOrganization(ctx context.Context, actor Actor, orgID string) error

	Stats(ctx context.Context, f StatsFilter) (*Stats, error)
	CountPerDay(ctx context.Context, f StatsFilter) ([]DayCount, error)
	CountBySource(ctx context.Context, f StatsFilter) ([]SourceCount, error)
	SearchClients(ctx context.Context, name string) ([]Client, error)

	// CompleteElapsed moves confirmed or checked-in reservations that ended before asOf to Completed.
	CompleteElapsed(ctx context.Context, asOf time.Time) (int, error)
}

// Notifier broadcasts committed changes. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// Config wires a Service.
type Config struct {
	Repo          Repository
	Statuses      status.Service
	Pricing       pricing.Client
	Identity      identity.Client
	Inventory     inventory.Client
	Organizations organization.Client
	Notifier      Notifier
	Cache         *cache.Cache
	DefaultTTL    time.Duration
	ShortTTL      time.Duration

	// CancelRequiresRefund makes a failed refund abort the cancellation.
	CancelRequiresRefund bool

	Metrics *metrics.Registry
	Logger  *zap.Logger
	Now     func() time.Time
	Codes   CodeGenerator
}

type service struct {
	repo      Repository
	statuses  status.Service
	pricing   pricing.Client
	quotes    *pricing.Orchestrator
	identity  identity.Client
	inventory inventory.Client
	orgs      organization.Client
	notifier  Notifier
	validator *Validator

	cache      *cache.Cache
	defaultTTL time.Duration
	shortTTL   time.Duration

	cancelRequiresRefund bool

	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
	codes   CodeGenerator
}

func NewService(cfg Config) Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Codes == nil {
		cfg.Codes = RandomCode
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 24 * time.Hour
	}
	if cfg.ShortTTL <= 0 {
		cfg.ShortTTL = time.Hour
	}
	return &service{
		repo:                 cfg.Repo,
		statuses:             cfg.Statuses,
		pricing:              cfg.Pricing,
		quotes:               pricing.NewOrchestrator(cfg.Pricing),
		identity:             cfg.Identity,
		inventory:            cfg.Inventory,
		orgs:                 cfg.Organizations,
		notifier:             cfg.Notifier,
		validator:            NewValidator(cfg.Now),
		cache:                cfg.Cache,
		defaultTTL:           cfg.DefaultTTL,
		shortTTL:             cfg.ShortTTL,
		cancelRequiresRefund: cfg.CancelRequiresRefund,
		metrics:              cfg.Metrics,
		logger:               cfg.Logger,
		now:                  cfg.Now,
		codes:                cfg.Codes,
	}
}

func reservationKey(id string) string { return cache.Key(cache.EntityReservation, id) }
func ticketKey(code string) string    { return cache.Key(cache.EntityTicket, code) }

func (s *service) GetByID(ctx context.Context, id string) (*Reservation, error) {
	return cache.GetOrCreate(ctx, s.cache, reservationKey(id), s.defaultTTL, func(ctx context.Context) (*Reservation, error) {
		return s.repo.GetByID(ctx, id, false)
	})
}

func (s *service) GetByCode(ctx context.Context, code string) (*Reservation, error) {
	return cache.GetOrCreate(ctx, s.cache, ticketKey(code), s.defaultTTL, func(ctx context.Context) (*Reservation, error) {
		return s.repo.GetByCode(ctx, code)
	})
}

func (s *service) GetByIDIncludingDeleted(ctx context.Context, id string) (*Reservation, error) {
	return s.repo.GetByID(ctx, id, true)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Reservation, int, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachChildren(ctx, list); err != nil {
		return nil, 0, err
	}
	if err := s.enrich(ctx, list); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (s *service) ListByResources(ctx context.Context, resourceIDs []string, start, end time.Time) ([]*Reservation, error) {
	var errs violations
	if len(resourceIDs) == 0 {
		errs.add("at least one resource_id is required")
	}
	if start.IsZero() || end.IsZero() {
		errs.add("start_date and end_date are required")
	} else if end.Before(start) {
		errs.add("end_date must not be before start_date")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	list, err := NewAvailability(s.repo).FindConflicts(ctx, resourceIDs, DateOnly(start), DateOnly(end), "")
	if err != nil {
		return nil, err
	}
	if err := s.attachChildren(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// attachChildren loads the details and resource links of every reservation with one query each.
func (s *service) attachChildren(ctx context.Context, list []*Reservation) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]string, len(list))
	for i, r := range list {
		ids[i] = r.ID
	}
	links, err := s.repo.ListLinks(ctx, ids)
	if err != nil {
		return err
	}
	details, err := s.repo.ListDetails(ctx, ids)
	if err != nil {
		return err
	}
	for _, r := range list {
		r.Resources = links[r.ID]
		if d, ok := details[r.ID]; ok {
			r.Detail = &d
		}
	}
	return nil
}

// enrich fills resource and organization names with one batched call per collaborator.
func (s *service) enrich(ctx context.Context, list []*Reservation) error {
	if len(list) == 0 {
		return nil
	}
	var resourceIDs, orgIDs []string
	for _, r := range list {
		orgIDs = append(orgIDs, r.OrganizationID)
		resourceIDs = append(resourceIDs, r.ResourceIDs()...)
	}

	resources, err := s.inventory.GetResources(ctx, resourceIDs)
	if err != nil {
		return err
	}
	orgs, err := s.orgs.GetOrganizations(ctx, orgIDs)
	if err != nil {
		return err
	}

	for _, r := range list {
		r.OrganizationName = orgs[r.OrganizationID].Name
		for i := range r.Resources {
			r.Resources[i].ResourceName = resources[r.Resources[i].ResourceID].Name
		}
	}
	return nil
}

func (s *service) Authorize(ctx context.Context, actor Actor, r *Reservation) error {
	_, err := s.authorize(ctx, actor, r)
	return err
}

// authorize reports whether actor acts as a manager of r's organization. Owners pass as non-managers.
func (s *service) authorize(ctx context.Context, actor Actor, r *Reservation) (manager bool, err error) {
	if actor.IsSystemAdmin {
		return true, nil
	}
	if actor.UserID == "" {
		return false, ErrAuthorizationFailed
	}
	manager, err = s.orgs.IsManager(ctx, r.OrganizationID, actor.UserID)
	if err != nil {
		return false, err
	}
	if manager || actor.UserID == r.UserID {
		return manager, nil
	}
	return false, ErrAuthorizationFailed
}

func (s *service) AuthorizeOrganization(ctx context.Context, actor Actor, orgID string) error {
	return s.requireManager(ctx, actor, orgID)
}

func (s *service) requireManager(ctx context.Context, actor Actor, orgID string) error {
	if actor.IsSystemAdmin {
		return nil
	}
	if actor.UserID == "" {
		return ErrAuthorizationFailed
	}
	ok, err := s.orgs.IsManager(ctx, orgID, actor.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAuthorizationFailed
	}
	return nil
}

// checkParties confirms the owning user, the organization and every resource with the collaborators.
func (s *service) checkParties(ctx context.Context, userID, orgID string, items []ResourceInput) error {
	if err := identity.RequireActive(ctx, s.identity, userID); err != nil {
		return err
	}
	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return err
	}

	var errs violations
	if !org.IsActive {
		errs.add("organization %s is inactive", orgID)
	}
	if err := s.checkInventory(ctx, &errs, orgID, items); err != nil {
		return err
	}
	return errs.err()
}

// checkInventory adds a violation for every resource that is unknown, not bookable, or owned by another organization.
func (s *service) checkInventory(ctx context.Context, errs *violations, orgID string, items []ResourceInput) error {
	if len(items) == 0 {
		return nil
	}
	ids := resourceIDsOf(items)
	resources, err := s.inventory.GetResources(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		res, ok := resources[id]
		switch {
		case !ok:
			errs.add("resource %s does not exist", id)
		case !res.IsActive:
			errs.add("resource %s is not bookable", id)
		case res.OrganizationID != "" && res.OrganizationID != orgID:
			errs.add("resource %s does not belong to organization %s", id, orgID)
		}
	}
	return nil
}

// invalidate drops every cache entry that can hold r. Failures are logged; entries expire with their TTL.
func (s *service) invalidate(ctx context.Context, r *Reservation) {
	if err := s.cache.Invalidate(ctx, reservationKey(r.ID), ticketKey(r.Code)); err != nil {
		s.logger.Error("reservation cache invalidation failed", zap.String("reservation_id", r.ID), zap.Error(err))
	}
	if err := s.cache.InvalidatePrefix(ctx, cache.Key(cache.EntityStats, "")); err != nil {
		s.logger.Error("stats cache invalidation failed", zap.Error(err))
	}
}

func (s *service) broadcast(ctx context.Context, action string, r *Reservation) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notify.Event{
		Action:        action,
		ReservationID: r.ID,
		ResourceIDs:   r.ResourceIDs(),
		StartDate:     r.StartDate.Format(dateLayout),
		EndDate:       r.EndDate.Format(dateLayout),
		OccurredAt:    s.now().UTC(),
	})
}

// originalPrice is the undiscounted sum of caller base prices over the stay.
func originalPrice(items []ResourceInput, nights int) decimal.Decimal {
	total := decimal.Zero
	n := decimal.NewFromInt(int64(nights))
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))).Mul(n))
	}
	return total
}

func quoteItems(items []ResourceInput) []pricing.QuoteItem {
	out := make([]pricing.QuoteItem, len(items))
	for i, item := range items {
		out[i] = pricing.QuoteItem{ResourceID: item.ResourceID, BasePrice: item.Price, Quantity: item.Quantity}
	}
	return out
}

func resourceIDsOf(items []ResourceInput) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ResourceID
	}
	return ids
}

// linksAsInputs turns existing links back into inputs, used when an update keeps or extends them.
func linksAsInputs(links []ResourceLink) []ResourceInput {
	out := make([]ResourceInput, len(links))
	for i, l := range links {
		out[i] = ResourceInput{ResourceID: l.ResourceID, Price: l.Price, Quantity: l.Quantity}
	}
	return out
}
