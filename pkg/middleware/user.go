package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader carries the caller identity set by the fronting gateway
	UserIDHeader = "X-User-ID"
	// ContextKeyUserID is the gin context key for the caller identity
	ContextKeyUserID = "user_id"
)

// UserContext copies the caller identity header into the gin context.
// Identity is asserted upstream; this service does not authenticate.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := strings.TrimSpace(c.GetHeader(UserIDHeader)); userID != "" {
			c.Set(ContextKeyUserID, userID)
		}
		c.Next()
	}
}

// GetUserID extracts the caller identity from gin context
func GetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}
