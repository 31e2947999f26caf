package emaillogs

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/response"
)

// Lister reads email logs.
type Lister interface {
	List(ctx context.Context, emailType string, limit int) ([]*models.EmailLog, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   Lister
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo Lister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/emails?type=&limit=. Mount behind RequireRole(admin).
func (h *Handler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit < 1 || limit > 500 {
		response.BadRequest(c, "limit must be between 1 and 500")
		return
	}
	logs, err := h.repo.List(c.Request.Context(), c.Query("type"), limit)
	if err != nil {
		h.logger.Error("list email logs failed", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
