package reservation

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-backend/internal/pricing"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

var (
	ErrNotFound            = apperror.New(http.StatusNotFound, "reservation not found")
	ErrInvalidData         = apperror.New(http.StatusBadRequest, "invalid reservation data")
	ErrResourceUnavailable = apperror.New(http.StatusConflict, "resource is not available for the requested dates")
	ErrAuthorizationFailed = apperror.New(http.StatusForbidden, "not allowed to modify this reservation")
	ErrCodeExhausted       = apperror.New(http.StatusServiceUnavailable, "could not allocate a reservation code")

	// Errors owned by collaborating packages, re-exported for callers of this package.
	ErrStatusNotFound          = status.ErrNotFound
	ErrInvalidStatusTransition = status.ErrInvalidTransition
	ErrPaymentProcessingFailed = pricing.ErrPaymentProcessingFailed
)

// Channels a reservation can originate from.
const (
	SourceWeb          = "Web"
	SourceOrganization = "Organization"
)

const DefaultCurrency = "USD"

// Reservation is the aggregate root: one booking of one or more resources for a date range.
// Dates are date-only values at UTC midnight.
type Reservation struct {
	ID             string
	UserID         string
	OrganizationID string
	StatusID       string
	StatusName     string
	TotalAmount    decimal.Decimal
	Code           string
	StartDate      time.Time
	EndDate        time.Time
	Source         string
	IsActive       bool
	IsDeleted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Detail    *Detail
	Resources []ResourceLink

	// Filled by List from the organization directory.
	OrganizationName string
}

// Nights is the number of nights between start and end.
func (r *Reservation) Nights() int {
	return int(r.EndDate.Sub(r.StartDate).Hours() / 24)
}

// ResourceIDs returns the IDs of the active resource links.
func (r *Reservation) ResourceIDs() []string {
	ids := make([]string, 0, len(r.Resources))
	for _, l := range r.Resources {
		ids = append(ids, l.ResourceID)
	}
	return ids
}

// Detail holds the guest and pricing breakdown of a reservation. Exactly one per reservation.
type Detail struct {
	ID            string
	ReservationID string
	Name          string
	Email         string
	Phone         string
	Adults        int
	Children      int
	Infants       int
	Pets          int
	Note          string
	OriginalPrice decimal.Decimal
	Discount      decimal.Decimal
	Currency      string
	IsActive      bool
	IsDeleted     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ResourceLink attaches an external resource to a reservation.
type ResourceLink struct {
	ID            string
	ReservationID string
	ResourceID    string
	Price         decimal.Decimal
	Quantity      int
	IsActive      bool
	IsDeleted     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Filled by List from the inventory service.
	ResourceName string
}

type Filter struct {
	UserID         string
	OrganizationID string
	ResourceID     string
	StatusName     string
	Source         string
	Code           string
	From           *time.Time // reservations ending on or after From
	To             *time.Time // reservations starting on or before To
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

type ResourceInput struct {
	ResourceID string
	Price      decimal.Decimal // base price per night before the pricing service applies its rules
	Quantity   int
}

type DetailInput struct {
	Name     string
	Email    string
	Phone    string
	Adults   int
	Children int
	Infants  int
	Pets     int
	Note     string
	Discount decimal.Decimal
	Currency string
}

type CreateRequest struct {
	UserID         string
	OrganizationID string
	StartDate      time.Time
	EndDate        time.Time
	Source         string
	Resources      []ResourceInput
	Detail         DetailInput

	// TotalAmount is only honoured by CreateForOrganization, where the caller's amount is authoritative.
	TotalAmount *decimal.Decimal
}

// UpdateRequest carries the fields to change. Nil fields stay as they are.
type UpdateRequest struct {
	StartDate  *time.Time
	EndDate    *time.Time
	StatusName *string
	Reason     string

	// Resources replaces the active links wholesale, or is appended when AppendResources is set.
	Resources       []ResourceInput
	AppendResources bool

	Detail *DetailInput

	// TotalAmount is only honoured by UpdateForOrganization.
	TotalAmount *decimal.Decimal
}

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID        string
	IsSystemAdmin bool
}

type StatsFilter struct {
	OrganizationID string
	From           *time.Time
	To             *time.Time
}

type Stats struct {
	Total    int
	ByStatus map[string]int
	Revenue  decimal.Decimal // excludes cancelled reservations
}

type DayCount struct {
	Date  time.Time
	Count int
}

type SourceCount struct {
	Source string
	Count  int
}

// Client is a guest found through reservation details.
type Client struct {
	Name         string
	Email        string
	Phone        string
	Reservations int
	LastStay     time.Time
}
