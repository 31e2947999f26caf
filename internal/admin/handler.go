// Package admin serves the administrative moderation surface.
package admin

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/events"
	"github.com/escena-local/directory/internal/httperr"
	"github.com/escena-local/directory/internal/middleware"
	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/response"
)

// CreateEntityRequest is the body for POST /admin/entities/:kind.
type CreateEntityRequest struct {
	Slug         string `json:"slug" binding:"required"`
	Name         string `json:"name" binding:"required"`
	ContactEmail string `json:"contact_email"`
	City         string `json:"city"`
	Description  string `json:"description"`
}

// ApprovalRequest is the body for PATCH /admin/entities/:kind/:id/approval.
type ApprovalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// RejectRequest is the body for the reject endpoints. Reason is optional.
type RejectRequest struct {
	Reason *string `json:"reason"`
}

// DecisionRequest is the body for POST /admin/claims/:id/decision.
type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
}

// Handler serves admin moderation endpoints. Routes are mounted behind RequireRole(admin).
type Handler struct {
	svc    *moderation.Service
	logger *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(svc *moderation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// bindOptional binds a JSON body that may be absent. Anything present must be valid.
func bindOptional(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func actor(c *gin.Context) moderation.Actor {
	id, _ := middleware.UserID(c)
	return moderation.Actor{UserID: id, Role: middleware.Role(c)}
}

// Pending handles GET /admin/pending.
func (h *Handler) Pending(c *gin.Context) {
	response.OK(c, h.svc.PendingCounts(c.Request.Context()))
}

// Queue handles GET /admin/queue.
func (h *Handler) Queue(c *gin.Context) {
	q, err := h.svc.ListPendingQueue(c.Request.Context())
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, q)
}

// CreateEntity handles POST /admin/entities/:kind.
func (h *Handler) CreateEntity(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	var req CreateEntityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.svc.CreateEntity(c.Request.Context(), moderation.EntityInput{
		Kind:         kind,
		Slug:         req.Slug,
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		City:         req.City,
		Description:  req.Description,
	}, actor(c))
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.Created(c, e)
}

// GetEntity handles GET /admin/entities/:kind/:slug, unapproved entities included.
func (h *Handler) GetEntity(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	e, err := h.svc.GetEntityBySlug(c.Request.Context(), kind, c.Param("slug"), true)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// SetApproval handles PATCH /admin/entities/:kind/:id/approval.
func (h *Handler) SetApproval(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	id, ok := httperr.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req ApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "approved (bool) required")
		return
	}
	e, err := h.svc.SetApproval(c.Request.Context(), kind, id, *req.Approved, actor(c))
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// RejectEntity handles POST /admin/entities/:kind/:id/reject.
func (h *Handler) RejectEntity(c *gin.Context) {
	kind, ok := httperr.Kind(c)
	if !ok {
		return
	}
	id, ok := httperr.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !bindOptional(c, &req) {
		return
	}
	e, err := h.svc.RejectEntity(c.Request.Context(), kind, id, req.Reason, actor(c))
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, e)
}

// DecideClaim handles POST /admin/claims/:id/decision.
func (h *Handler) DecideClaim(c *gin.Context) {
	id, ok := httperr.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "decision must be approve or reject")
		return
	}
	claim, err := h.svc.DecideClaim(c.Request.Context(), id, models.ClaimDecision(req.Decision), actor(c))
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, claim)
}

// RejectClaim handles POST /admin/claims/:id/reject with an optional reason.
func (h *Handler) RejectClaim(c *gin.Context) {
	id, ok := httperr.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if !bindOptional(c, &req) {
		return
	}
	claim, err := h.svc.RejectClaim(c.Request.Context(), id, req.Reason, actor(c))
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, claim)
}

// PublishEvent handles POST /admin/events. Admin events are exempt from the window.
func (h *Handler) PublishEvent(c *gin.Context) {
	var req events.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	in, err := req.Input()
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	ev, err := h.svc.PublishExemptEvent(c.Request.Context(), actor(c), in)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.Created(c, ev)
}
