package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/models"
)

const maxConfigBody = 1 << 20

// AdminHandler serves coupons, users, configuration documents and the
// WhatsApp instance.
type AdminHandler struct {
	admin    core.AdminService
	whatsapp core.WhatsappService
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(admin core.AdminService, whatsapp core.WhatsappService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, whatsapp: whatsapp, logger: logger}
}

func (h *AdminHandler) ListCoupons(c *gin.Context) {
	coupons, err := h.admin.ListCoupons(c.Request.Context())
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, coupons)
}

func (h *AdminHandler) CreateCoupon(c *gin.Context) {
	var req models.CouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	coupon, err := h.admin.CreateCoupon(c.Request.Context(), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, coupon)
}

func (h *AdminHandler) DeleteCoupon(c *gin.Context) {
	if err := h.admin.DeleteCoupon(c.Request.Context(), c.Param("code")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.admin.ListUsers(c.Request.Context())
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req models.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	if err := h.admin.SetRole(c.Request.Context(), c.Param("userId"), req.Role); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Role updated"})
}

// DeleteUser removes the profile document. The auth account is untouched.
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.admin.DeleteUser(c.Request.Context(), c.Param("userId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) GetConfig(c *gin.Context) {
	cfg, err := h.admin.GetConfig(c.Request.Context(), c.Param("docId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// PutConfig passes the raw body through; each document has its own shape.
func (h *AdminHandler) PutConfig(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigBody))
	if err != nil || len(raw) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: "a JSON body is required"})
		return
	}
	cfg, err := h.admin.PutConfig(c.Request.Context(), c.Param("docId"), raw)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *AdminHandler) WhatsappStatus(c *gin.Context) {
	admin, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	st, err := h.whatsapp.Status(c.Request.Context(), admin)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// WhatsappConnect returns a pairing QR code for the instance.
func (h *AdminHandler) WhatsappConnect(c *gin.Context) {
	admin, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	qr, err := h.whatsapp.Connect(c.Request.Context(), admin)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, QRCodeResponse{QRCode: qr})
}

// WhatsappAwait blocks until the instance is paired or the connect timeout
// passes.
func (h *AdminHandler) WhatsappAwait(c *gin.Context) {
	admin, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	st, err := h.whatsapp.AwaitConnection(c.Request.Context(), admin)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
