package status

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrNotFound          = apperror.New(http.StatusNotFound, "status not found")
	ErrNameTaken         = apperror.New(http.StatusConflict, "status name already exists")
	ErrEmptyName         = apperror.New(http.StatusBadRequest, "status name cannot be empty")
	ErrInvalidTransition = apperror.New(http.StatusConflict, "invalid status transition")
	ErrBuiltInStatus     = apperror.New(http.StatusConflict, "built-in status cannot be renamed, deactivated or deleted")
)

// Lifecycle state names.
const (
	Created   = "Created"
	Pending   = "Pending"
	Confirmed = "Confirmed"
	CheckedIn = "Checked-In"
	Completed = "Completed"
	Cancelled = "Cancelled"
	NoShow    = "No-Show"
)

// Initial is the state every new reservation starts in.
const Initial = Created

// DefaultColor is shown for statuses without an entry in the color table.
const DefaultColor = "#9E9E9E"

var colors = map[string]string{
	Created:   "#90A4AE",
	Pending:   "#FFB300",
	Confirmed: "#43A047",
	CheckedIn: "#1E88E5",
	Completed: "#3949AB",
	Cancelled: "#E53935",
	NoShow:    "#6D4C41",
}

var descriptions = map[string]string{
	Created:   "Reservation has been created",
	Pending:   "Reservation is awaiting confirmation",
	Confirmed: "Reservation has been confirmed",
	CheckedIn: "Guest has checked in",
	Completed: "Stay has been completed",
	Cancelled: "Reservation has been cancelled",
	NoShow:    "Guest did not arrive",
}

// ColorFor returns the display color for a status name.
func ColorFor(name string) string {
	if c, ok := colors[name]; ok {
		return c
	}
	return DefaultColor
}

// Status is a named lifecycle state.
type Status struct {
	ID          string
	Name        string
	Description string
	IsActive    bool
	IsDeleted   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Color is derived from the name, never stored.
func (s *Status) Color() string {
	return ColorFor(s.Name)
}

type Filter struct {
	Name      string
	Page      int
	PageSize  int
	SortOrder string
}

type CreateRequest struct {
	Name        string
	Description string
}

type UpdateRequest struct {
	Name        *string
	Description *string
	IsActive    *bool
}
