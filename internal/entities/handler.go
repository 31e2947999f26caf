package entities

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/httperr"
	"github.com/escena-local/directory/internal/middleware"
	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/response"
)

// RegisterRequest is the body for POST /entities/:kind.
type RegisterRequest struct {
	Slug         string `json:"slug" binding:"required"`
	Name         string `json:"name" binding:"required"`
	ContactEmail string `json:"contact_email"`
	City         string `json:"city"`
	Description  string `json:"description"`
}

// Handler serves the public directory and self-registration.
type Handler struct {
	svc    *moderation.Service
	logger *zap.Logger
}

// NewHandler creates an entities handler.
func NewHandler(svc *moderation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /entities/:kind. Promoters, organizers and associations are only
// listed to members.
func (h *Handler) List(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.svc.ListEntities(c.Request.Context(), kind, middleware.Role(c), limit)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /entities/:kind/:slug. Unapproved entities are not found; member-only
// kinds follow the same visibility as List.
func (h *Handler) Get(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	if !models.CanViewKind(middleware.Role(c), kind) {
		httperr.Write(c, h.logger, moderation.ErrUnauthorized)
		return
	}
	e, err := h.svc.GetEntityBySlug(c.Request.Context(), kind, c.Param("slug"), false)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// Claimable handles GET /entities/:kind/claimable?q=.
func (h *Handler) Claimable(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.svc.SearchClaimable(c.Request.Context(), kind, c.Query("q"), limit)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Register handles POST /entities/:kind. The entity starts unapproved and owned by the caller.
func (h *Handler) Register(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.RegisterEntity(c.Request.Context(), userID, moderation.EntityInput{
		Kind:         kind,
		Slug:         req.Slug,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		City:         req.City,
		Description:  req.Description,
	})
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.Created(c, e)
}
