package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/middleware"
	"github.com/example/subsmarket/internal/models"
)

// requireCurrentUser returns the profile loaded by the role middleware and
// answers 401 when it is missing.
func requireCurrentUser(c *gin.Context) (*models.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok || user == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: user not found in context"})
		return nil, false
	}
	return user, true
}

// UserHandler handles user-profile related API endpoints.
type UserHandler struct {
	userService core.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(us core.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{userService: us, logger: logger}
}

// Initialize handles POST /api/v1/users/initialize. It runs after token
// verification only, since the profile may not exist yet.
func (h *UserHandler) Initialize(c *gin.Context) {
	userID := c.GetString(middleware.ContextUserID)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: User ID not found in context"})
		return
	}
	identity := core.Identity{
		UserID:      userID,
		Email:       c.GetString(middleware.ContextUserEmail),
		DisplayName: c.GetString(middleware.ContextUserDisplayName),
		PhoneNumber: c.GetString(middleware.ContextUserPhone),
	}

	user, created, err := h.userService.Initialize(c.Request.Context(), identity)
	if err != nil {
		h.logger.Error("Failed to initialize user", zap.String("userId", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to initialize user profile"})
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, InitializeResponse{User: user, Created: created})
}

// GetMe handles GET /api/v1/users/me.
func (h *UserHandler) GetMe(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMe handles PATCH /api/v1/users/me.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	updated, err := h.userService.UpdateProfile(c.Request.Context(), user.ID, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Heartbeat handles POST /api/v1/users/me/heartbeat.
func (h *UserHandler) Heartbeat(c *gin.Context) {
	user, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	if err := h.userService.Heartbeat(c.Request.Context(), user.ID); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Presence handles GET /api/v1/users/:userId/presence.
func (h *UserHandler) Presence(c *gin.Context) {
	presence, err := h.userService.Presence(c.Request.Context(), c.Param("userId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, presence)
}
