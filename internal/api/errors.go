package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
)

// mapServiceErrorToStatus writes the HTTP answer for an error returned by a
// core service.
func mapServiceErrorToStatus(c *gin.Context, logger *zap.Logger, err error) {
	var statusCode int
	var errResponse ErrorResponse

	switch {
	case errors.Is(err, core.ErrUserNotFound),
		errors.Is(err, core.ErrServiceNotFound),
		errors.Is(err, core.ErrPlanNotFound),
		errors.Is(err, core.ErrTicketNotFound),
		errors.Is(err, core.ErrCheckoutNotFound),
		errors.Is(err, core.ErrDeliverableNotFound),
		errors.Is(err, core.ErrUnknownConfig):
		statusCode = http.StatusNotFound
		errResponse = ErrorResponse{Error: "Not found", Details: err.Error()}
	case errors.Is(err, core.ErrForbidden):
		statusCode = http.StatusForbidden
		errResponse = ErrorResponse{Error: core.ErrForbidden.Error(), Details: err.Error()}
	case errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrInvalidCoupon),
		errors.Is(err, core.ErrCouponNotFound),
		errors.Is(err, core.ErrInvalidMessage):
		statusCode = http.StatusBadRequest
		errResponse = ErrorResponse{Error: "Invalid request", Details: err.Error()}
	case errors.Is(err, core.ErrMediaTooLarge):
		statusCode = http.StatusRequestEntityTooLarge
		errResponse = ErrorResponse{Error: core.ErrMediaTooLarge.Error()}
	case errors.Is(err, core.ErrCouponExists),
		errors.Is(err, core.ErrDeliverableSold):
		statusCode = http.StatusConflict
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrTicketExpired),
		errors.Is(err, core.ErrCannotRenewFree):
		statusCode = http.StatusUnprocessableEntity
		errResponse = ErrorResponse{Error: err.Error()}
	case errors.Is(err, core.ErrPaymentNotConfigured),
		errors.Is(err, core.ErrWhatsappNotConfigured),
		errors.Is(err, core.ErrRecommendationNotConfigured):
		statusCode = http.StatusServiceUnavailable
		errResponse = ErrorResponse{Error: "Service not configured", Details: err.Error()}
	case errors.Is(err, core.ErrPaymentGateway),
		errors.Is(err, core.ErrWhatsappGateway),
		errors.Is(err, core.ErrRecommendation):
		statusCode = http.StatusBadGateway
		errResponse = ErrorResponse{Error: "Upstream provider error", Details: err.Error()}
	case errors.Is(err, core.ErrConnectTimeout):
		statusCode = http.StatusGatewayTimeout
		errResponse = ErrorResponse{Error: core.ErrConnectTimeout.Error()}
	case errors.Is(err, core.ErrFulfillmentFailed):
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: core.ErrFulfillmentFailed.Error(), Details: "Our team was notified and will contact you."}
	default:
		logger.Error("Unhandled service error", zap.String("path", c.Request.URL.Path), zap.Error(err))
		statusCode = http.StatusInternalServerError
		errResponse = ErrorResponse{Error: "An unexpected error occurred"}
	}
	c.JSON(statusCode, errResponse)
}
