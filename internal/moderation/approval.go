package moderation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

// SetApproval sets the approval flag of an entity. Approving an unapproved entity stamps
// ApprovedAt and ApprovedBy; revoking only clears the flag. Re-applying the current
// value succeeds and changes nothing, so the original approval audit is kept.
func (s *Service) SetApproval(ctx context.Context, kind models.EntityKind, id uuid.UUID, approved bool, actor Actor) (*models.Entity, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, ErrNotFound
	}
	e, err := s.entities.SetApproval(ctx, kind, id, ApprovalUpdate{
		Approved: approved,
		At:       s.now().UTC(),
		By:       actor.UserID,
	})
	if err != nil {
		return nil, s.storeErr("set approval", err)
	}
	s.logger.Info("entity approval set",
		zap.String("kind", string(kind)), zap.String("entity_id", id.String()),
		zap.Bool("approved", approved), zap.String("admin_id", actor.UserID.String()))
	s.queueChanged(ctx)
	return e, nil
}
