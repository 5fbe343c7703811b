package auth

import "github.com/gin-gonic/gin"

const (
	userIDKey      = "userID"
	userEmailKey   = "userEmail"
	systemAdminKey = "isSystemAdmin"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// GetUserEmail returns the authenticated user's email or empty string.
func GetUserEmail(c *gin.Context) string {
	return c.GetString(userEmailKey)
}

// IsSystemAdmin reports whether the authenticated user holds the system admin role.
func IsSystemAdmin(c *gin.Context) bool {
	return c.GetBool(systemAdminKey)
}
