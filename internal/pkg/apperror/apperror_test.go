package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsSentinelReachable(t *testing.T) {
	sentinel := New(http.StatusConflict, "invalid status transition")
	err := Wrap(sentinel, http.StatusConflict, "cannot move from Completed to Confirmed")

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, "cannot move from Completed to Confirmed", err.Error())

	wrapped := fmt.Errorf("confirm: %w", err)
	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, http.StatusConflict, appErr.Code)
}

func TestWithDetails(t *testing.T) {
	sentinel := New(http.StatusBadRequest, "invalid reservation data")
	err := WithDetails(sentinel, []string{"start_date is required", "email is invalid"})

	assert.True(t, errors.Is(err, sentinel))
	assert.Equal(t, http.StatusBadRequest, err.Code)
	assert.Len(t, err.Details, 2)
	assert.Empty(t, sentinel.Details)
}
