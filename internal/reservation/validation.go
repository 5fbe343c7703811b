package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

const (
	dateLayout     = "2006-01-02"
	maxStayNights  = 30
	maxLeadYears   = 2
	clientMinQuery = 2
)

// Validator checks reservation input before anything is written.
// Every rule runs; the violations are returned together as one ErrInvalidData.
type Validator struct {
	now      func() time.Time
	validate *validator.Validate
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now, validate: validator.New()}
}

type violations []string

func (v *violations) add(format string, args ...any) {
	*v = append(*v, fmt.Sprintf(format, args...))
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return apperror.WithDetails(ErrInvalidData, v)
}

func (v *Validator) today() time.Time {
	return DateOnly(v.now())
}

// DateOnly truncates t to UTC midnight.
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateCreate checks a reservation made through the public path.
func (v *Validator) ValidateCreate(req CreateRequest) error {
	var errs violations
	v.checkOwners(&errs, req.UserID, req.OrganizationID)
	v.checkDates(&errs, req.StartDate, req.EndDate, true)
	if len(req.Resources) == 0 {
		errs.add("at least one resource is required")
	}
	v.checkResources(&errs, req.Resources)
	v.checkDetail(&errs, req.Detail)
	return errs.err()
}

// ValidateOrganizationCreate checks an organization booking; the amount is required and resources are optional.
func (v *Validator) ValidateOrganizationCreate(req CreateRequest) error {
	var errs violations
	v.checkOwners(&errs, req.UserID, req.OrganizationID)
	v.checkDates(&errs, req.StartDate, req.EndDate, true)
	v.checkResources(&errs, req.Resources)
	v.checkDetail(&errs, req.Detail)
	switch {
	case req.TotalAmount == nil:
		errs.add("total_amount is required for organization reservations")
	case req.TotalAmount.IsNegative():
		errs.add("total_amount must not be negative")
	}
	return errs.err()
}

// ValidateUpdate checks the changed fields against the current reservation.
func (v *Validator) ValidateUpdate(current *Reservation, req UpdateRequest) error {
	var errs violations

	if req.StartDate != nil || req.EndDate != nil {
		start, end := current.StartDate, current.EndDate
		if req.StartDate != nil {
			start = *req.StartDate
		}
		if req.EndDate != nil {
			end = *req.EndDate
		}
		v.checkDates(&errs, start, end, req.StartDate != nil)
	}
	if req.StatusName != nil && !status.IsKnown(*req.StatusName) {
		errs.add("unknown status %q", *req.StatusName)
	}
	if req.Resources != nil {
		if len(req.Resources) == 0 && !req.AppendResources {
			errs.add("at least one resource is required")
		}
		v.checkResources(&errs, req.Resources)
	}
	if req.Detail != nil {
		v.checkDetail(&errs, *req.Detail)
	}
	if req.TotalAmount != nil && req.TotalAmount.IsNegative() {
		errs.add("total_amount must not be negative")
	}
	return errs.err()
}

func (v *Validator) checkOwners(errs *violations, userID, orgID string) {
	if strings.TrimSpace(userID) == "" {
		errs.add("user_id is required")
	}
	if strings.TrimSpace(orgID) == "" {
		errs.add("organization_id is required")
	}
}

// checkDates applies the calendar rules. Start-date rules apply only to a newly supplied start,
// so a stay already in progress can still be extended.
func (v *Validator) checkDates(errs *violations, start, end time.Time, newStart bool) {
	if start.IsZero() {
		errs.add("start_date is required")
	}
	if end.IsZero() {
		errs.add("end_date is required")
	}
	if start.IsZero() || end.IsZero() {
		return
	}

	start, end = DateOnly(start), DateOnly(end)
	today := v.today()
	if !end.After(start) {
		errs.add("end_date must be after start_date")
	}
	if newStart {
		if start.Before(today) {
			errs.add("start_date must not be in the past")
		}
		if start.After(today.AddDate(maxLeadYears, 0, 0)) {
			errs.add("start_date must be within %d years", maxLeadYears)
		}
	} else if end.Before(today) {
		errs.add("end_date must not be in the past")
	}
	if end.Sub(start) > maxStayNights*24*time.Hour {
		errs.add("stay must not exceed %d nights", maxStayNights)
	}
}

func (v *Validator) checkResources(errs *violations, items []ResourceInput) {
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.ResourceID) == "" {
			errs.add("resources[%d].resource_id is required", i)
		} else if seen[item.ResourceID] {
			errs.add("resources[%d].resource_id %s is listed twice", i, item.ResourceID)
		}
		seen[item.ResourceID] = true
		if item.Price.IsNegative() {
			errs.add("resources[%d].price must not be negative", i)
		}
		if item.Quantity <= 0 {
			errs.add("resources[%d].quantity must be positive", i)
		}
	}
}

func (v *Validator) checkDetail(errs *violations, d DetailInput) {
	if strings.TrimSpace(d.Name) == "" {
		errs.add("detail.name is required")
	}
	if strings.TrimSpace(d.Email) == "" {
		errs.add("detail.email is required")
	} else if err := v.validate.Var(d.Email, "email"); err != nil {
		errs.add("detail.email %q is not a valid address", d.Email)
	}
	if d.Adults < 0 || d.Children < 0 || d.Infants < 0 || d.Pets < 0 {
		errs.add("detail occupancy counts must not be negative")
	}
	if d.Discount.IsNegative() {
		errs.add("detail.discount must not be negative")
	}
}
