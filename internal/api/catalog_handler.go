package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/subsmarket/internal/core"
	"github.com/example/subsmarket/internal/models"
)

// CatalogHandler serves services, plans and seller stock.
type CatalogHandler struct {
	catalog core.CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog core.CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

func (h *CatalogHandler) ListServices(c *gin.Context) {
	services, err := h.catalog.ListServices(c.Request.Context())
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (h *CatalogHandler) GetService(c *gin.Context) {
	svc, err := h.catalog.GetService(c.Request.Context(), c.Param("serviceId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *CatalogHandler) ListPlans(c *gin.Context) {
	plans, err := h.catalog.ListPlans(c.Request.Context(), c.Param("serviceId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *CatalogHandler) GetPlan(c *gin.Context) {
	plan, err := h.catalog.GetPlan(c.Request.Context(), c.Param("planId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// --- Admin service management ---

func (h *CatalogHandler) CreateService(c *gin.Context) {
	var req models.SubscriptionService
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	svc, err := h.catalog.CreateService(c.Request.Context(), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, svc)
}

func (h *CatalogHandler) UpdateService(c *gin.Context) {
	var req models.SubscriptionService
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	svc, err := h.catalog.UpdateService(c.Request.Context(), c.Param("serviceId"), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, svc)
}

func (h *CatalogHandler) DeleteService(c *gin.Context) {
	if err := h.catalog.DeleteService(c.Request.Context(), c.Param("serviceId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Seller plan management ---

func (h *CatalogHandler) ListSellerPlans(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	plans, err := h.catalog.ListSellerPlans(c.Request.Context(), seller)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *CatalogHandler) CreatePlan(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	var req models.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	plan, err := h.catalog.CreatePlan(c.Request.Context(), seller, req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, plan)
}

func (h *CatalogHandler) UpdatePlan(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	var req models.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	plan, err := h.catalog.UpdatePlan(c.Request.Context(), seller, c.Param("planId"), req)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *CatalogHandler) DeletePlan(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	if err := h.catalog.DeletePlan(c.Request.Context(), seller, c.Param("planId")); err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListDeliverables shows a plan's stock. Content is only readable by the
// owning seller; admins see it redacted.
func (h *CatalogHandler) ListDeliverables(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	items, err := h.catalog.ListDeliverables(c.Request.Context(), seller, c.Param("planId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) AddDeliverables(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	var req models.AddDeliverablesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}
	ids, err := h.catalog.AddDeliverables(c.Request.Context(), seller, c.Param("planId"), req.Contents)
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, AddDeliverablesResponse{IDs: ids})
}

func (h *CatalogHandler) DeleteDeliverable(c *gin.Context) {
	seller, ok := requireCurrentUser(c)
	if !ok {
		return
	}
	err := h.catalog.DeleteDeliverable(c.Request.Context(), seller, c.Param("planId"), c.Param("deliverableId"))
	if err != nil {
		mapServiceErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
