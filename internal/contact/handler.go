package contact

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/httperr"
	"github.com/escena-local/directory/internal/middleware"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/response"
)

// MessageRequest is the body for POST /contact.
type MessageRequest struct {
	Subject string `json:"subject" binding:"required"`
	Body    string `json:"body" binding:"required"`
}

// AccessResponse is returned by GET /me/contact-access.
type AccessResponse struct {
	moderation.ContactDecision
	Message string `json:"message,omitempty"`
}

// Handler serves the member contact channel.
type Handler struct {
	svc    *moderation.Service
	logger *zap.Logger
}

// NewHandler creates a contact handler.
func NewHandler(svc *moderation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Access handles GET /me/contact-access.
func (h *Handler) Access(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	d, err := h.svc.CanAccessContact(c.Request.Context(), userID)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, AccessResponse{ContactDecision: d, Message: d.Message()})
}

// Send handles POST /contact.
func (h *Handler) Send(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.svc.SendContactMessage(c.Request.Context(), userID, moderation.ContactMessage{Subject: req.Subject, Body: req.Body})
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"message": "message sent"})
}
