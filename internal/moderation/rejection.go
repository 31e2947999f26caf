package moderation

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
)

// RejectEntity hides an entity and tells its operator why. The recipient is the
// owner's account email, falling back to the entity's own contact address.
func (s *Service) RejectEntity(ctx context.Context, kind models.EntityKind, id uuid.UUID, reason *string, actor Actor) (*models.Entity, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if !kind.Valid() {
		return nil, ErrNotFound
	}
	reason = normalizeReason(reason)
	e, err := s.entities.SetApproval(ctx, kind, id, ApprovalUpdate{Approved: false})
	if err != nil {
		return nil, s.storeErr("reject entity", err)
	}
	s.logger.Info("entity rejected",
		zap.String("kind", string(kind)), zap.String("entity_id", id.String()),
		zap.Bool("with_reason", reason != nil), zap.String("admin_id", actor.UserID.String()))

	s.notify(ctx, Notification{
		Type:           models.EmailTypeEntityRejected,
		RecipientEmail: s.entityRecipient(ctx, e),
		Name:           e.Name,
		Reason:         reason,
		EntityKind:     kind,
		EntityID:       id,
		OccurredAt:     s.now().UTC(),
	})
	s.queueChanged(ctx)
	return e, nil
}

// RejectClaim closes a pending claim as rejected and tells the requester.
func (s *Service) RejectClaim(ctx context.Context, claimID uuid.UUID, reason *string, actor Actor) (*models.Claim, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	reason = normalizeReason(reason)
	if _, err := s.pendingClaim(ctx, claimID); err != nil {
		return nil, err
	}
	c, err := s.claims.Decide(ctx, claimID, models.ClaimStatusRejected, reason, s.now().UTC(), actor.UserID)
	if err != nil {
		return nil, s.storeErr("reject claim", err)
	}
	s.logger.Info("claim rejected",
		zap.String("claim_id", c.ID.String()), zap.String("user_id", c.UserID.String()),
		zap.Bool("with_reason", reason != nil), zap.String("admin_id", actor.UserID.String()))

	var recipient, name string
	if u, err := s.users.GetByID(ctx, c.UserID); err == nil {
		recipient = u.Email
	} else {
		s.logger.Warn("claim rejection: requester lookup failed", zap.String("user_id", c.UserID.String()), zap.Error(err))
	}
	if e, err := s.entities.GetByID(ctx, c.EntityKind, c.EntityID); err == nil {
		name = e.Name
	}
	s.notify(ctx, Notification{
		Type:           models.EmailTypeClaimRejected,
		RecipientEmail: recipient,
		Name:           name,
		Reason:         reason,
		EntityKind:     c.EntityKind,
		EntityID:       c.EntityID,
		ClaimID:        &c.ID,
		OccurredAt:     s.now().UTC(),
	})
	s.queueChanged(ctx)
	return c, nil
}

func (s *Service) entityRecipient(ctx context.Context, e *models.Entity) string {
	if e.OwnerUserID != nil {
		u, err := s.users.GetByID(ctx, *e.OwnerUserID)
		if err == nil && u.Email != "" {
			return u.Email
		}
		if err != nil {
			s.logger.Warn("owner lookup failed", zap.String("user_id", e.OwnerUserID.String()), zap.Error(err))
		}
	}
	return e.ContactEmail
}
