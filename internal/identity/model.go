package identity

import (
	"net/http"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var (
	ErrUserNotFound = apperror.New(http.StatusNotFound, "user not found")
	ErrInactiveUser = apperror.New(http.StatusUnprocessableEntity, "user is inactive")
)

// User is the subset of the identity service profile this service reads.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	IsActive    bool   `json:"is_active"`
}
