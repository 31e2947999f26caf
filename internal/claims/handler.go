package claims

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/httperr"
	"github.com/escena-local/directory/internal/middleware"
	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/response"
)

// SubmitRequest is the body for POST /claims.
type SubmitRequest struct {
	EntityKind string `json:"entity_kind" binding:"required"`
	EntityID   string `json:"entity_id" binding:"required,uuid"`
	Message    string `json:"message"`
}

// Handler serves the user side of the claim workflow.
type Handler struct {
	svc    *moderation.Service
	logger *zap.Logger
}

// NewHandler creates a claims handler.
func NewHandler(svc *moderation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Submit handles POST /claims.
func (h *Handler) Submit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	kind, ok := models.ParseEntityKind(req.EntityKind)
	if !ok {
		response.BadRequest(c, "invalid entity_kind")
		return
	}
	entityID, _ := uuid.Parse(req.EntityID)

	claim, err := h.svc.SubmitClaim(c.Request.Context(), userID, kind, entityID, req.Message)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.Created(c, claim)
}

// Mine handles GET /me/claims.
func (h *Handler) Mine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	list, err := h.svc.ListUserClaims(c.Request.Context(), userID)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
