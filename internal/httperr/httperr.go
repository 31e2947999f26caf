// Package httperr maps moderation errors onto the JSON response envelope.
package httperr

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/response"
)

// Write sends the response matching err. Policy denials are business outcomes and
// are logged at info; store failures were already logged by the service.
func Write(c *gin.Context, logger *zap.Logger, err error) {
	if pd, ok := moderation.AsPolicyDenied(err); ok {
		logger.Info("policy denied", zap.String("path", c.FullPath()), zap.String("reason", string(pd.Reason)))
		response.Denied(c, string(pd.Reason), pd.Reason.Message())
		return
	}
	switch {
	case errors.Is(err, moderation.ErrUnauthorized):
		response.Forbidden(c, "insufficient permissions")
	case errors.Is(err, moderation.ErrNotClaimable):
		response.Conflict(c, "this profile cannot be claimed")
	case errors.Is(err, moderation.ErrDuplicateClaim):
		response.Conflict(c, "you already have a pending claim for this profile")
	case errors.Is(err, moderation.ErrConflict):
		response.Conflict(c, "already exists")
	case errors.Is(err, moderation.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, moderation.ErrInvalidInput):
		response.BadRequest(c, strings.TrimPrefix(err.Error(), moderation.ErrInvalidInput.Error()+": "))
	default:
		if !errors.Is(err, moderation.ErrStoreFailure) {
			logger.Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(err))
		}
		response.Internal(c, "something went wrong")
	}
}

// Kind parses the :kind path parameter, answering 404 for unknown kinds.
func Kind(c *gin.Context) (models.EntityKind, bool) {
	k, ok := models.ParseEntityKind(c.Param("kind"))
	if !ok {
		response.NotFound(c, "unknown entity kind")
	}
	return k, ok
}

// UUIDParam parses a UUID path parameter, answering 400 when malformed.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
