package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/sentinel"
)

const maxClaimMessage = 2000

// SubmitClaim records userID's request to operate an existing, public, unowned entity.
// The entity itself is not modified.
func (s *Service) SubmitClaim(ctx context.Context, userID uuid.UUID, kind models.EntityKind, entityID uuid.UUID, message string) (*models.Claim, error) {
	if !kind.Valid() {
		return nil, ErrNotFound
	}
	message = strings.TrimSpace(message)
	if len(message) > maxClaimMessage {
		return nil, invalid(fmt.Sprintf("message must be at most %d characters", maxClaimMessage))
	}
	e, err := s.entities.GetByID(ctx, kind, entityID)
	if err != nil {
		return nil, s.storeErr("get entity", err)
	}
	if e.Claimed() || !e.Approved {
		return nil, ErrNotClaimable
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.storeErr("get claimant", err)
	}
	if !canOperate(u.Role, kind) {
		return nil, ErrUnauthorized
	}

	c := &models.Claim{
		UserID:     userID,
		EntityKind: kind,
		EntityID:   entityID,
		Message:    message,
		Status:     models.ClaimStatusPending,
		CreatedAt:  s.now().UTC(),
	}
	// The store's uniqueness constraint is what guarantees one pending claim per pair.
	if err := s.claims.Create(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, ErrDuplicateClaim
		}
		return nil, s.storeErr("create claim", err)
	}
	s.logger.Info("claim submitted",
		zap.String("claim_id", c.ID.String()), zap.String("user_id", userID.String()),
		zap.String("kind", string(kind)), zap.String("entity_id", entityID.String()))
	s.queueChanged(ctx)
	return c, nil
}

// DecideClaim applies an administrator decision to a pending claim. Approval binds the
// entity to the claimant without touching its approval flag; rejection goes through
// the rejection protocol without a reason. Other pending claims on the same entity
// are left for the administrator to decide individually.
func (s *Service) DecideClaim(ctx context.Context, claimID uuid.UUID, decision models.ClaimDecision, actor Actor) (*models.Claim, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	switch decision {
	case models.ClaimApprove:
		return s.approveClaim(ctx, claimID, actor)
	case models.ClaimReject:
		return s.RejectClaim(ctx, claimID, nil, actor)
	default:
		return nil, invalid("decision must be approve or reject")
	}
}

func (s *Service) approveClaim(ctx context.Context, claimID uuid.UUID, actor Actor) (*models.Claim, error) {
	c, err := s.pendingClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	var (
		decided  *models.Claim
		entity   *models.Entity
		claimant *models.User
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		entity, err = s.entities.GetByID(ctx, c.EntityKind, c.EntityID)
		if err != nil {
			return s.storeErr("get entity", err)
		}
		if entity.OwnerUserID != nil && *entity.OwnerUserID != c.UserID {
			return fmt.Errorf("entity already claimed: %w", ErrConflict)
		}
		claimant, err = s.users.GetByID(ctx, c.UserID)
		if err != nil {
			return s.storeErr("get claimant", err)
		}
		// The claimant may have been promoted for another kind since submitting.
		if !canOperate(claimant.Role, c.EntityKind) {
			return fmt.Errorf("claimant operates a different kind: %w", ErrConflict)
		}
		if err := s.entities.SetOwner(ctx, c.EntityKind, c.EntityID, c.UserID); err != nil {
			return s.storeErr("set owner", err)
		}
		decided, err = s.claims.Decide(ctx, c.ID, models.ClaimStatusApproved, nil, s.now().UTC(), actor.UserID)
		if err != nil {
			return s.storeErr("decide claim", err)
		}
		if claimant.Role == models.RoleUser {
			role := models.RoleForKind(c.EntityKind)
			if err := s.users.UpdateRole(ctx, claimant.ID, role); err != nil {
				return s.storeErr("promote claimant", err)
			}
			claimant.Role = role
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("claim approved",
		zap.String("claim_id", c.ID.String()), zap.String("user_id", c.UserID.String()),
		zap.String("kind", string(c.EntityKind)), zap.String("entity_id", c.EntityID.String()),
		zap.String("admin_id", actor.UserID.String()))
	s.notify(ctx, Notification{
		Type:           models.EmailTypeClaimApproved,
		RecipientEmail: claimant.Email,
		Name:           entity.Name,
		EntityKind:     c.EntityKind,
		EntityID:       c.EntityID,
		ClaimID:        &decided.ID,
		OccurredAt:     s.now().UTC(),
	})
	s.queueChanged(ctx)
	return decided, nil
}

// pendingClaim loads a claim and reports ErrNotFound unless it is still pending.
func (s *Service) pendingClaim(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	c, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeErr("get claim", err)
	}
	if !c.Pending() {
		return nil, fmt.Errorf("claim already %s: %w", c.Status, ErrNotFound)
	}
	return c, nil
}

// ListUserClaims returns the claims submitted by userID, newest first.
func (s *Service) ListUserClaims(ctx context.Context, userID uuid.UUID) ([]*models.Claim, error) {
	list, err := s.claims.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storeErr("list claims", err)
	}
	return list, nil
}

// isDomainErr reports whether err already belongs to the domain taxonomy.
func isDomainErr(err error) bool {
	_, denied := AsPolicyDenied(err)
	return denied ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrStoreFailure)
}

// canOperate reports whether a user with role may come to operate an entity of kind:
// basic users are promoted on approval, operators stay within their own kind.
func canOperate(role models.Role, kind models.EntityKind) bool {
	return role == models.RoleUser || role == models.RoleForKind(kind)
}
