package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, sysAdminMiddleware gin.HandlerFunc) {
	group := g.Group("/reservations")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/by-resources", h.ListByResources)
		group.GET("/report", h.Report)
		group.GET("/stats", h.Stats)
		group.GET("/stats/per-day", h.CountPerDay)
		group.GET("/stats/by-source", h.CountBySource)
		group.GET("/:id", h.Get)
		group.PATCH("/:id", h.Update)
		group.DELETE("/:id", h.Delete)
		group.POST("/:id/confirm", h.Confirm)
		group.POST("/:id/cancel", h.Cancel)
	}

	// === Organization Routes ===
	orgs := g.Group("/organizations/:org_id/reservations", authMiddleware)
	{
		orgs.POST("", h.CreateForOrganization)
		orgs.PATCH("/:id", h.UpdateForOrganization)
	}

	// === Front Desk Routes ===
	tickets := g.Group("/tickets", authMiddleware)
	{
		tickets.GET("/:code", h.GetTicket)
		tickets.POST("/:code/validate", h.ValidateTicket)
	}

	// === System Admin Routes ===
	clients := g.Group("/clients", authMiddleware, sysAdminMiddleware)
	{
		clients.GET("", h.SearchClients)
	}
}
