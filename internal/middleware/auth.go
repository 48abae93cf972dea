package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const UserIDKey = "user_id"

// DefaultUserID is the identity used when no X-User-ID header is supplied;
// single-user deployments never need to set the header.
const DefaultUserID = "default"

// ResolveUser is a stubbed identity middleware that extracts the user
// identity from the X-User-ID header. Each identity owns exactly one
// analysis session.
func ResolveUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-ID"))
		if userID == "" {
			userID = DefaultUserID
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// GetUserID retrieves the user identity from the context
func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(UserIDKey); exists {
		return userID.(string)
	}
	return DefaultUserID
}
