package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/models"
)

// ContextUser holds the *models.User loaded by RoleMiddleware.
const ContextUser = "user"

// UserLoader is the part of core.UserService the role checks need.
type UserLoader interface {
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// RoleMiddleware loads the caller's profile and enforces roles. It must run
// after AuthMiddleware.VerifyToken.
type RoleMiddleware struct {
	users  UserLoader
	logger *zap.Logger
}

// NewRoleMiddleware creates a RoleMiddleware.
func NewRoleMiddleware(users UserLoader, logger *zap.Logger) *RoleMiddleware {
	return &RoleMiddleware{users: users, logger: logger}
}

func (m *RoleMiddleware) require(allowed func(*models.User) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(ContextUserID)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "User ID not found in token"})
			return
		}
		user, err := m.users.GetByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, core.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Profile not initialized", Details: "call POST /api/v1/users/initialize first"})
				return
			}
			m.logger.Error("Failed to load user for role check", zap.String("userId", userID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to load user profile"})
			return
		}
		if !allowed(user) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "Insufficient permissions"})
			return
		}
		c.Set(ContextUser, user)
		c.Next()
	}
}

// RequireUser loads any initialized user.
func (m *RoleMiddleware) RequireUser() gin.HandlerFunc {
	return m.require(func(*models.User) bool { return true })
}

// RequireSeller admits sellers and admins.
func (m *RoleMiddleware) RequireSeller() gin.HandlerFunc {
	return m.require((*models.User).IsSeller)
}

// RequireAdmin admits admins only.
func (m *RoleMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.require((*models.User).IsAdmin)
}

// CurrentUser returns the user stored by RoleMiddleware.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
