package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/learnhub/backend/pkg/response"
)

// RequireRole admits callers whose token role is one of roles. It must run after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if !allowed[Role(c)] {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// HasRole reports whether the caller's role is any of roles.
func HasRole(c *gin.Context, roles ...string) bool {
	role := Role(c)
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
