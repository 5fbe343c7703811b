package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resource is a bookable unit owned by the inventory service.
type Resource struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	OrganizationID string          `json:"organization_id"`
	LocationName   string          `json:"location_name"`
	BasePrice      decimal.Decimal `json:"base_price"`
	IsActive       bool            `json:"is_active"`
}

// Change actions broadcast after a reservation mutation.
const (
	ActionCreated   = "created"
	ActionUpdated   = "updated"
	ActionCancelled = "cancelled"
	ActionDeleted   = "deleted"
)

// ChangeEvent tells the inventory service that bookings on its resources changed.
type ChangeEvent struct {
	Action        string    `json:"action"`
	ReservationID string    `json:"reservation_id"`
	ResourceIDs   []string  `json:"resource_ids"`
	StartDate     string    `json:"start_date,omitempty"`
	EndDate       string    `json:"end_date,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
