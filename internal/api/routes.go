package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/subsmarket/internal/middleware"
)

// Handlers groups every handler mounted by SetupRoutes.
type Handlers struct {
	Users           *UserHandler
	Catalog         *CatalogHandler
	Checkout        *CheckoutHandler
	Tickets         *TicketHandler
	Admin           *AdminHandler
	Recommendations *RecommendationHandler
}

// SetupRoutes configures the API routes for the application.
func SetupRoutes(router *gin.Engine, h Handlers, authMW *middleware.AuthMiddleware, roleMW *middleware.RoleMiddleware) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})

	apiV1 := router.Group("/api/v1")

	// Public catalog
	apiV1.GET("/services", h.Catalog.ListServices)
	apiV1.GET("/services/:serviceId", h.Catalog.GetService)
	apiV1.GET("/services/:serviceId/plans", h.Catalog.ListPlans)
	apiV1.GET("/plans/:planId", h.Catalog.GetPlan)

	authed := apiV1.Group("")
	authed.Use(authMW.VerifyToken())

	// Initialize runs before a profile exists, so it skips the role check.
	authed.POST("/users/initialize", h.Users.Initialize)

	member := authed.Group("")
	member.Use(roleMW.RequireUser())
	{
		member.GET("/users/me", h.Users.GetMe)
		member.PATCH("/users/me", h.Users.UpdateMe)
		member.POST("/users/me/heartbeat", h.Users.Heartbeat)
		member.GET("/users/:userId/presence", h.Users.Presence)

		member.POST("/checkout/quote", h.Checkout.Quote)
		member.POST("/checkout", h.Checkout.Start)
		member.GET("/checkout/:checkoutId", h.Checkout.Status)
		member.GET("/checkout/:checkoutId/await", h.Checkout.Await)

		member.GET("/tickets", h.Tickets.List)
		member.GET("/tickets/:ticketId", h.Tickets.Get)
		member.POST("/tickets/:ticketId/messages", h.Tickets.SendMessage)
		member.POST("/tickets/:ticketId/renew", h.Tickets.Renew)
		member.GET("/tickets/:ticketId/stream", h.Tickets.Stream)

		member.POST("/recommendations", h.Recommendations.Recommend)
	}

	seller := authed.Group("/seller")
	seller.Use(roleMW.RequireSeller())
	{
		seller.GET("/plans", h.Catalog.ListSellerPlans)
		seller.POST("/plans", h.Catalog.CreatePlan)
		seller.PUT("/plans/:planId", h.Catalog.UpdatePlan)
		seller.DELETE("/plans/:planId", h.Catalog.DeletePlan)
		seller.GET("/plans/:planId/deliverables", h.Catalog.ListDeliverables)
		seller.POST("/plans/:planId/deliverables", h.Catalog.AddDeliverables)
		seller.DELETE("/plans/:planId/deliverables/:deliverableId", h.Catalog.DeleteDeliverable)
	}

	admin := authed.Group("/admin")
	admin.Use(roleMW.RequireAdmin())
	{
		admin.POST("/services", h.Catalog.CreateService)
		admin.PUT("/services/:serviceId", h.Catalog.UpdateService)
		admin.DELETE("/services/:serviceId", h.Catalog.DeleteService)

		admin.GET("/coupons", h.Admin.ListCoupons)
		admin.POST("/coupons", h.Admin.CreateCoupon)
		admin.DELETE("/coupons/:code", h.Admin.DeleteCoupon)

		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:userId/role", h.Admin.SetRole)
		admin.DELETE("/users/:userId", h.Admin.DeleteUser)

		admin.GET("/configs/:docId", h.Admin.GetConfig)
		admin.PUT("/configs/:docId", h.Admin.PutConfig)

		admin.GET("/whatsapp/status", h.Admin.WhatsappStatus)
		admin.POST("/whatsapp/connect", h.Admin.WhatsappConnect)
		admin.POST("/whatsapp/await", h.Admin.WhatsappAwait)
	}
}
