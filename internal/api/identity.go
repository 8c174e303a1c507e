package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// UserIDHeader carries the identity resolved by the upstream auth layer.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// RequireUser rejects requests without an authenticated identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
