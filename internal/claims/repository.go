package claims

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/database"
	"github.com/escena-local/directory/pkg/sentinel"
)

const columns = `id, user_id, entity_kind, entity_id, COALESCE(message,''), status, rejection_reason, decided_at, decided_by, created_at`

// Repository handles claims persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a claims repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scan(row pgx.Row) (*models.Claim, error) {
	var c models.Claim
	err := row.Scan(&c.ID, &c.UserID, &c.EntityKind, &c.EntityID, &c.Message, &c.Status,
		&c.RejectionReason, &c.DecidedAt, &c.DecidedBy, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.Claim, error) {
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Claim{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Create inserts a pending claim. The uq_claims_pending index turns a second pending
// claim for the same user and entity into sentinel.ErrConflict.
func (r *Repository) Create(ctx context.Context, c *models.Claim) error {
	const q = `INSERT INTO claims (user_id, entity_kind, entity_id, message, status)
		VALUES ($1, $2, $3, NULLIF($4,''), $5)
		RETURNING id, created_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, c.UserID, string(c.EntityKind), c.EntityID, c.Message, string(c.Status)).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return err
	}
	return nil
}

// GetByID returns a claim by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Claim, error) {
	c, err := scan(database.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+columns+` FROM claims WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Decide moves a pending claim to status. The status guard in the WHERE clause makes
// a concurrent second decision match nothing.
func (r *Repository) Decide(ctx context.Context, id uuid.UUID, status models.ClaimStatus, reason *string, at time.Time, by uuid.UUID) (*models.Claim, error) {
	const q = `UPDATE claims SET status = $2, rejection_reason = $3, decided_at = $4, decided_by = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + columns
	c, err := scan(database.Conn(ctx, r.pool).QueryRow(ctx, q, id, string(status), reason, at, by))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// CountPending counts claims awaiting a decision.
func (r *Repository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE status = 'pending'`).Scan(&n)
	return n, err
}

// ListPending returns pending claims, oldest first.
func (r *Repository) ListPending(ctx context.Context) ([]*models.Claim, error) {
	return r.list(ctx, `SELECT `+columns+` FROM claims WHERE status = 'pending' ORDER BY created_at`)
}

// ListByUser returns userID's claims, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Claim, error) {
	return r.list(ctx, `SELECT `+columns+` FROM claims WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}
