package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/admin"
	"github.com/escena-local/directory/internal/auth"
	"github.com/escena-local/directory/internal/claims"
	"github.com/escena-local/directory/internal/contact"
	"github.com/escena-local/directory/internal/emaillogs"
	"github.com/escena-local/directory/internal/entities"
	"github.com/escena-local/directory/internal/events"
	"github.com/escena-local/directory/internal/middleware"
	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/response"
)

// handlers groups everything the router mounts.
type handlers struct {
	auth     *auth.Handler
	entities *entities.Handler
	claims   *claims.Handler
	events   *events.Handler
	contact  *contact.Handler
	admin    *admin.Handler
	emails   *emaillogs.Handler
	ws       gin.HandlerFunc
}

func newRouter(h handlers, jwtService *auth.JWTService, corsOrigins []string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", h.auth.Login)
		authGroup.POST("/register", h.auth.Register)
	}

	// Public directory; a token, when present, unlocks member-only kinds
	router.GET("/entities/:kind", middleware.OptionalJWT(jwtService), h.entities.List)
	router.GET("/entities/:kind/:slug", middleware.OptionalJWT(jwtService), h.entities.Get)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/entities/:kind/claimable", h.entities.Claimable)
		api.POST("/entities/:kind", h.entities.Register)

		api.POST("/claims", h.claims.Submit)
		api.GET("/me/claims", h.claims.Mine)

		api.GET("/me/contact-access", h.contact.Access)
		api.POST("/contact", h.contact.Send)

		api.GET("/events/eligibility", h.events.Eligibility)
		api.POST("/events", h.events.Publish)
		api.PATCH("/events/:id", h.events.Reschedule)
	}

	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin))
	{
		adminGroup.GET("/pending", h.admin.Pending)
		adminGroup.GET("/queue", h.admin.Queue)
		adminGroup.GET("/users", h.auth.List)
		adminGroup.GET("/emails", h.emails.List)

		adminGroup.POST("/entities/:kind", h.admin.CreateEntity)
		adminGroup.GET("/entities/:kind/:slug", h.admin.GetEntity)
		adminGroup.PATCH("/entities/:kind/:id/approval", h.admin.SetApproval)
		adminGroup.POST("/entities/:kind/:id/reject", h.admin.RejectEntity)

		adminGroup.POST("/claims/:id/decision", h.admin.DecideClaim)
		adminGroup.POST("/claims/:id/reject", h.admin.RejectClaim)

		adminGroup.POST("/events", h.admin.PublishEvent)
	}

	// WebSocket (token in query; browsers cannot set headers on upgrade)
	router.GET("/ws/moderation", middleware.JWT(jwtService), middleware.RequireRole(models.RoleAdmin), h.ws)

	return router
}
