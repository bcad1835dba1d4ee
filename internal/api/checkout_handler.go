package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/models"
)

// DefaultAwaitTimeout bounds GET /checkout/:checkoutId/await.
const DefaultAwaitTimeout = 25 * time.Second

// CheckoutHandler serves quotes, PIX checkouts and payment status.
type CheckoutHandler struct {
	checkout     core.CheckoutService
	awaitTimeout time.Duration
	logger       *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler.
func NewCheckoutHandler(checkout core.CheckoutService, awaitTimeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	if awaitTimeout <= 0 {
		awaitTimeout = DefaultAwaitTimeout
	}
	return &CheckoutHandler{checkout: checkout, awaitTimeout: awaitTimeout, logger: logger}
}

// Quote handles POST /api/v1/checkout/quote. An unknown coupon still answers
// 200 with the undiscounted price and an error message.
func (h *CheckoutHandler) Quote(c *gin.Context) {
	var req models.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	quote, err := h.checkout.Quote(c.Request.Context(), req.PlanID, req.CouponCode)
	if err != nil {
		if quote != nil && (errors.Is(err, core.ErrCouponNotFound) || errors.Is(err, core.ErrInvalidCoupon)) {
			c.JSON(http.StatusOK, gin.H{"quote": quote, "error": err.Error()})
			return
		}
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

// Start handles POST /api/v1/checkout.
func (h *CheckoutHandler) Start(c *gin.Context) {
	buyer, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	result, err := h.checkout.Start(c.Request.Context(), buyer, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Status handles GET /api/v1/checkout/:checkoutId.
func (h *CheckoutHandler) Status(c *gin.Context) {
	buyer, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	result, err := h.checkout.Status(c.Request.Context(), buyer, c.Param("checkoutId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Await handles GET /api/v1/checkout/:checkoutId/await. It long-polls until
// the payment settles; on timeout it answers the last known status.
func (h *CheckoutHandler) Await(c *gin.Context) {
	buyer, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.awaitTimeout)
	defer cancel()

	result, err := h.checkout.AwaitPayment(ctx, buyer, c.Param("checkoutId"))
	if errors.Is(err, context.DeadlineExceeded) {
		result, err = h.checkout.Status(c.Request.Context(), buyer, c.Param("checkoutId"))
	}
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
