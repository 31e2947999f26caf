package entities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/internal/moderation"
	"github.com/escena-local/directory/pkg/database"
	"github.com/escena-local/directory/pkg/sentinel"
)

// tables maps each kind to its table. Table names are never taken from input.
var tables = map[models.EntityKind]string{
	models.KindAct:         "acts",
	models.KindVenue:       "venues",
	models.KindFestival:    "festivals",
	models.KindPromoter:    "promoters",
	models.KindOrganizer:   "organizers",
	models.KindAssociation: "associations",
}

const columns = `id, slug, name, COALESCE(contact_email,''), COALESCE(city,''), COALESCE(description,''),
	approved, approved_at, approved_by, owner_user_id, created_by_platform, created_at, updated_at`

// Repository persists all six entity kinds.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an entity repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func table(kind models.EntityKind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("entity kind %q: %w", kind, sentinel.ErrNotFound)
	}
	return t, nil
}

func scan(kind models.EntityKind, row pgx.Row) (*models.Entity, error) {
	e := models.Entity{Kind: kind}
	err := row.Scan(&e.ID, &e.Slug, &e.Name, &e.ContactEmail, &e.City, &e.Description,
		&e.Approved, &e.ApprovedAt, &e.ApprovedBy, &e.OwnerUserID, &e.CreatedByPlatform, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) one(ctx context.Context, kind models.EntityKind, where string, args ...any) (*models.Entity, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, columns, t, where)
	e, err := scan(kind, database.Conn(ctx, r.pool).QueryRow(ctx, q, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *Repository) many(ctx context.Context, kind models.EntityKind, where, order string, args ...any) ([]*models.Entity, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY %s`, columns, t, where, order)
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Entity{}
	for rows.Next() {
		e, err := scan(kind, rows)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

// Create inserts e and fills its generated fields. Slug or owner collisions return sentinel.ErrConflict.
func (r *Repository) Create(ctx context.Context, e *models.Entity) error {
	t, err := table(e.Kind)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO %s (slug, name, contact_email, city, description, approved, approved_at, approved_by, owner_user_id, created_by_platform)
		VALUES ($1, $2, NULLIF($3,''), NULLIF($4,''), NULLIF($5,''), $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`, t)
	err = database.Conn(ctx, r.pool).QueryRow(ctx, q,
		e.Slug, e.Name, e.ContactEmail, e.City, e.Description,
		e.Approved, e.ApprovedAt, e.ApprovedBy, e.OwnerUserID, e.CreatedByPlatform,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID returns an entity of kind by ID.
func (r *Repository) GetByID(ctx context.Context, kind models.EntityKind, id uuid.UUID) (*models.Entity, error) {
	return r.one(ctx, kind, `id = $1`, id)
}

// GetBySlug returns an entity by slug, optionally only when approved.
func (r *Repository) GetBySlug(ctx context.Context, kind models.EntityKind, slug string, approvedOnly bool) (*models.Entity, error) {
	if approvedOnly {
		return r.one(ctx, kind, `slug = $1 AND approved = TRUE`, slug)
	}
	return r.one(ctx, kind, `slug = $1`, slug)
}

// GetByOwner returns the entity of kind operated by userID.
func (r *Repository) GetByOwner(ctx context.Context, kind models.EntityKind, userID uuid.UUID) (*models.Entity, error) {
	return r.one(ctx, kind, `owner_user_id = $1`, userID)
}

// SetApproval writes the approval flag. Approving also stamps approved_at and approved_by.
func (r *Repository) SetApproval(ctx context.Context, kind models.EntityKind, id uuid.UUID, u moderation.ApprovalUpdate) (*models.Entity, error) {
	t, err := table(kind)
	if err != nil {
		return nil, err
	}
	// Stamps and updated_at only move on a transition; re-applying the current value
	// leaves the row as it was.
	q := fmt.Sprintf(`UPDATE %s SET
			approved    = $2::boolean,
			approved_at = CASE WHEN $2::boolean AND NOT approved THEN $3::timestamptz ELSE approved_at END,
			approved_by = CASE WHEN $2::boolean AND NOT approved THEN $4::uuid ELSE approved_by END,
			updated_at  = CASE WHEN approved = $2::boolean THEN updated_at ELSE NOW() END
		WHERE id = $1 RETURNING %s`, t, columns)
	e, err := scan(kind, database.Conn(ctx, r.pool).QueryRow(ctx, q, id, u.Approved, u.At, u.By))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// SetOwner binds the entity to userID unless someone else already owns it.
func (r *Repository) SetOwner(ctx context.Context, kind models.EntityKind, id, userID uuid.UUID) error {
	t, err := table(kind)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET owner_user_id = $2, updated_at = NOW()
		WHERE id = $1 AND (owner_user_id IS NULL OR owner_user_id = $2)`, t)
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, id, userID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, kind, id); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	return nil
}

// CountAwaitingReview counts self-registered entities of kind that are not approved.
func (r *Repository) CountAwaitingReview(ctx context.Context, kind models.EntityKind) (int, error) {
	t, err := table(kind)
	if err != nil {
		return 0, err
	}
	var n int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE approved = FALSE AND owner_user_id IS NOT NULL`, t)
	if err := database.Conn(ctx, r.pool).QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// ListAwaitingReview lists the entities CountAwaitingReview counts, oldest first.
func (r *Repository) ListAwaitingReview(ctx context.Context, kind models.EntityKind) ([]*models.Entity, error) {
	return r.many(ctx, kind, `approved = FALSE AND owner_user_id IS NOT NULL`, `created_at`)
}

// ListApproved lists public entities of kind by name.
func (r *Repository) ListApproved(ctx context.Context, kind models.EntityKind, limit int) ([]*models.Entity, error) {
	return r.many(ctx, kind, `approved = TRUE`, `name LIMIT $1`, limit)
}

// SearchClaimable lists public, unowned entities of kind whose name contains query.
func (r *Repository) SearchClaimable(ctx context.Context, kind models.EntityKind, query string, limit int) ([]*models.Entity, error) {
	return r.many(ctx, kind, `approved = TRUE AND owner_user_id IS NULL AND name ILIKE '%' || $1 || '%'`, `name LIMIT $2`, query, limit)
}
