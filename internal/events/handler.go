package events

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/httperr"
	"github.com/escena-local/directory/internal/middleware"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/response"
)

const dateLayout = "2006-01-02"

// EventRequest is the body for POST /events, PATCH /events/:id and POST /admin/events.
type EventRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Date        string `json:"date" binding:"required"` // YYYY-MM-DD
}

// Input converts the request into service input.
func (r EventRequest) Input() (moderation.EventInput, error) {
	d, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return moderation.EventInput{}, err
	}
	return moderation.EventInput{Title: r.Title, Description: r.Description, Date: d}, nil
}

// EligibilityResponse is returned by GET /events/eligibility.
type EligibilityResponse struct {
	moderation.Decision
	Message    string `json:"message,omitempty"`
	WindowFrom string `json:"window_from"`
	WindowTo   string `json:"window_to"`
}

// Handler serves event publication for operators.
type Handler struct {
	svc    *moderation.Service
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(svc *moderation.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Publish handles POST /events.
func (h *Handler) Publish(c *gin.Context) {
	userID, in, ok := h.bind(c)
	if !ok {
		return
	}
	ev, err := h.svc.PublishEvent(c.Request.Context(), userID, in)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.Created(c, ev)
}

// Reschedule handles PATCH /events/:id.
func (h *Handler) Reschedule(c *gin.Context) {
	eventID, ok := httperr.UUIDParam(c, "id")
	if !ok {
		return
	}
	userID, in, ok := h.bind(c)
	if !ok {
		return
	}
	ev, err := h.svc.RescheduleEvent(c.Request.Context(), userID, eventID, in)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	response.OK(c, ev)
}

// Eligibility handles GET /events/eligibility?date=YYYY-MM-DD&exclude=<event id>.
// A denial is a normal 200 answer here; the caller asked a question.
func (h *Handler) Eligibility(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return
	}
	date, err := time.Parse(dateLayout, c.Query("date"))
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return
	}
	var exclude *uuid.UUID
	if raw := c.Query("exclude"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "invalid exclude")
			return
		}
		exclude = &id
	}
	d, err := h.svc.CanPublishEvent(c.Request.Context(), userID, date, exclude)
	if err != nil {
		httperr.Write(c, h.logger, err)
		return
	}
	from, to := h.svc.Window(date)
	response.OK(c, EligibilityResponse{
		Decision:   d,
		Message:    d.Message(),
		WindowFrom: from.Format(dateLayout),
		WindowTo:   to.Format(dateLayout),
	})
}

func (h *Handler) bind(c *gin.Context) (uuid.UUID, moderation.EventInput, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Unauthorized(c, "missing user context")
		return uuid.Nil, moderation.EventInput{}, false
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return uuid.Nil, moderation.EventInput{}, false
	}
	in, err := req.Input()
	if err != nil {
		response.BadRequest(c, "date must be YYYY-MM-DD")
		return uuid.Nil, moderation.EventInput{}, false
	}
	return userID, in, true
}
