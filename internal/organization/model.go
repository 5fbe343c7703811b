package organization

import (
	"net/http"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

var ErrOrganizationNotFound = apperror.New(http.StatusNotFound, "organization not found")

// Organization is a venue owner or brand entity held by the organization directory.
type Organization struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// Roles as reported by the directory's membership endpoint.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Member is a user's membership in an organization.
type Member struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// CanManage reports whether the role may modify reservations made by other members.
func (m Member) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}
