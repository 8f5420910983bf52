package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnhub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUserEmail is the key for user email in gin context.
	ContextUserEmail = "user_email"
	// ContextStudentID is the key for the caller's student profile ID.
	ContextStudentID = "student_id"
)

// TokenValidator verifies a bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(token string) (userID uuid.UUID, email, role string, err error)
}

// StudentResolver maps a user to their student profile.
type StudentResolver interface {
	StudentIDByUserID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// JWT returns a middleware that validates JWT and sets user claims in context.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		userID, email, role, err := tokens.ValidateToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, role)
		c.Set(ContextUserEmail, email)
		c.Next()
	}
}

// RequireStudent resolves the caller's student profile; callers without one get 403.
func RequireStudent(students StudentResolver, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		studentID, err := students.StudentIDByUserID(c.Request.Context(), userID)
		if err != nil {
			logger.Debug("student profile lookup failed", zap.String("user_id", userID.String()), zap.Error(err))
			response.Forbidden(c, "student profile required")
			c.Abort()
			return
		}
		c.Set(ContextStudentID, studentID)
		c.Next()
	}
}

// UserID returns the authenticated user's ID.
func UserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// StudentID returns the caller's student profile ID set by RequireStudent.
func StudentID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextStudentID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// Role returns the authenticated user's role name, or "".
func Role(c *gin.Context) string {
	return c.GetString(ContextUserRole)
}
