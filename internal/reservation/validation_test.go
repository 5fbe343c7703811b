package reservation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

func details(t *testing.T, err error) []string {
	t.Helper()
	require.ErrorIs(t, err, ErrInvalidData)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	return appErr.Details
}

func TestValidateCreateDates(t *testing.T) {
	v := NewValidator(func() time.Time { return testNow })

	tests := []struct {
		name       string
		start, end string
		want       string
	}{
		{"past start", "2024-12-31", "2025-01-02", "start_date must not be in the past"},
		{"same day", "2025-02-01", "2025-02-01", "end_date must be after start_date"},
		{"too far ahead", "2027-01-02", "2027-01-04", "start_date must be within 2 years"},
		{"too long", "2025-02-01", "2025-03-04", "stay must not exceed 30 nights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateCreate(booking(tt.start, tt.end, "R1"))
			assert.Contains(t, details(t, err), tt.want)
		})
	}

	assert.NoError(t, v.ValidateCreate(booking("2025-01-01", "2025-01-31", "R1")))
}

func TestValidateCreateResources(t *testing.T) {
	v := NewValidator(func() time.Time { return testNow })
	req := booking("2025-02-01", "2025-02-03", "R1", "R1", "")
	req.Resources[0].Price = decimal.NewFromInt(-1)
	req.Resources[1].Quantity = 0

	got := details(t, v.ValidateCreate(req))
	assert.ElementsMatch(t, []string{
		"resources[0].price must not be negative",
		"resources[1].resource_id R1 is listed twice",
		"resources[1].quantity must be positive",
		"resources[2].resource_id is required",
	}, got)
}

func TestValidateOrganizationCreate(t *testing.T) {
	v := NewValidator(func() time.Time { return testNow })
	req := booking("2025-02-01", "2025-02-03")
	negative := decimal.NewFromInt(-5)
	req.TotalAmount = &negative

	assert.Contains(t, details(t, v.ValidateOrganizationCreate(req)), "total_amount must not be negative")

	zero := decimal.Zero
	req.TotalAmount = &zero
	assert.NoError(t, v.ValidateOrganizationCreate(req))
}

func TestValidateUpdateMergesDates(t *testing.T) {
	v := NewValidator(func() time.Time { return testNow })
	current := &Reservation{StartDate: day("2025-02-01"), EndDate: day("2025-02-05")}

	start := day("2025-02-06")
	assert.Contains(t, details(t, v.ValidateUpdate(current, UpdateRequest{StartDate: &start})), "end_date must be after start_date")

	end := day("2025-02-10")
	assert.NoError(t, v.ValidateUpdate(current, UpdateRequest{EndDate: &end}))
	assert.Contains(t, details(t, v.ValidateUpdate(current, UpdateRequest{Resources: []ResourceInput{}})), "at least one resource is required")
}

func TestValidateUpdateExtendsStayInProgress(t *testing.T) {
	v := NewValidator(func() time.Time { return testNow })
	current := &Reservation{StartDate: day("2024-12-28"), EndDate: day("2025-01-03")}

	end := day("2025-01-06")
	assert.NoError(t, v.ValidateUpdate(current, UpdateRequest{EndDate: &end}))

	past := day("2024-12-31")
	assert.Contains(t, details(t, v.ValidateUpdate(current, UpdateRequest{EndDate: &past})), "end_date must not be in the past")

	start := day("2024-12-29")
	assert.Contains(t, details(t, v.ValidateUpdate(current, UpdateRequest{StartDate: &start})), "start_date must not be in the past")
}
