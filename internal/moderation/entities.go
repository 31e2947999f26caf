package moderation

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/sentinel"
)

// Slug must be lowercase alphanumeric and hyphens only, 2–64 chars.
var slugRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// EntityInput holds the descriptive fields of a new entity.
type EntityInput struct {
	Kind         models.EntityKind
	Slug         string
	Name         string
	ContactEmail string
	City         string
	Description  string
}

func (in *EntityInput) normalize() error {
	if !in.Kind.Valid() {
		return invalid("unknown entity kind")
	}
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if !slugRegex.MatchString(in.Slug) {
		return invalid("slug must be 2–64 chars, lowercase letters, numbers, hyphens only")
	}
	in.Name = strings.TrimSpace(in.Name)
	if len(in.Name) < 1 || len(in.Name) > 255 {
		return invalid("name must be 1–255 characters")
	}
	in.ContactEmail = strings.TrimSpace(in.ContactEmail)
	if in.ContactEmail != "" {
		if _, err := mail.ParseAddress(in.ContactEmail); err != nil {
			return invalid("contact_email is not a valid address")
		}
	}
	in.City = strings.TrimSpace(in.City)
	in.Description = strings.TrimSpace(in.Description)
	return nil
}

func (in EntityInput) entity() *models.Entity {
	return &models.Entity{
		Kind:         in.Kind,
		Slug:         in.Slug,
		Name:         in.Name,
		ContactEmail: in.ContactEmail,
		City:         in.City,
		Description:  in.Description,
	}
}

// CreateEntity adds a platform-created entity. It is approved at creation and unowned.
func (s *Service) CreateEntity(ctx context.Context, in EntityInput, actor Actor) (*models.Entity, error) {
	if !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e := in.entity()
	e.Approved = true
	e.ApprovedAt = &now
	e.ApprovedBy = &actor.UserID
	e.CreatedByPlatform = true
	if err := s.entities.Create(ctx, e); err != nil {
		return nil, s.storeErr("create entity", err)
	}
	s.logger.Info("entity created by platform",
		zap.String("kind", string(e.Kind)), zap.String("entity_id", e.ID.String()), zap.String("admin_id", actor.UserID.String()))
	return e, nil
}

// RegisterEntity adds a self-registered entity owned by userID. It starts unapproved
// and enters the moderation queue. A basic user is promoted to the kind's operator
// role; an operator of another kind cannot register.
func (s *Service) RegisterEntity(ctx context.Context, userID uuid.UUID, in EntityInput) (*models.Entity, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var e *models.Entity
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return s.storeErr("get user", err)
		}
		if !canOperate(u.Role, in.Kind) {
			return ErrUnauthorized
		}
		if _, err := s.entities.GetByOwner(ctx, in.Kind, userID); err == nil {
			return fmt.Errorf("user already operates a %s: %w", in.Kind, ErrConflict)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return s.storeErr("get operated entity", err)
		}
		e = in.entity()
		e.OwnerUserID = &userID
		if err := s.entities.Create(ctx, e); err != nil {
			return s.storeErr("create entity", err)
		}
		if u.Role == models.RoleUser {
			if err := s.users.UpdateRole(ctx, userID, models.RoleForKind(in.Kind)); err != nil {
				return s.storeErr("promote user", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity registered",
		zap.String("kind", string(e.Kind)), zap.String("entity_id", e.ID.String()), zap.String("user_id", userID.String()))
	s.queueChanged(ctx)
	return e, nil
}

// GetEntityBySlug returns an entity by slug. Unapproved entities are only returned
// when includeUnapproved is set (administrative views).
func (s *Service) GetEntityBySlug(ctx context.Context, kind models.EntityKind, slug string, includeUnapproved bool) (*models.Entity, error) {
	if !kind.Valid() {
		return nil, ErrNotFound
	}
	e, err := s.entities.GetBySlug(ctx, kind, strings.ToLower(strings.TrimSpace(slug)), !includeUnapproved)
	if err != nil {
		return nil, s.storeErr("get entity by slug", err)
	}
	return e, nil
}

// ListEntities returns approved entities of kind visible to a viewer with role.
func (s *Service) ListEntities(ctx context.Context, kind models.EntityKind, viewer models.Role, limit int) ([]*models.Entity, error) {
	if !kind.Valid() {
		return nil, ErrNotFound
	}
	if !models.CanViewKind(viewer, kind) {
		return nil, ErrUnauthorized
	}
	list, err := s.entities.ListApproved(ctx, kind, clampLimit(limit))
	if err != nil {
		return nil, s.storeErr("list entities", err)
	}
	return list, nil
}

// SearchClaimable returns approved, unowned entities of kind whose name matches query.
func (s *Service) SearchClaimable(ctx context.Context, kind models.EntityKind, query string, limit int) ([]*models.Entity, error) {
	if !kind.Valid() {
		return nil, ErrNotFound
	}
	list, err := s.entities.SearchClaimable(ctx, kind, strings.TrimSpace(query), clampLimit(limit))
	if err != nil {
		return nil, s.storeErr("search claimable", err)
	}
	return list, nil
}

func clampLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}
