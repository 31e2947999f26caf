package events

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

const columns = `id, created_by_user_id, title, COALESCE(description,''), event_date, event_limit_exempt, created_at, updated_at`

// Repository handles events persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an events repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scan(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(&e.ID, &e.CreatedByUserID, &e.Title, &e.Description, &e.Date, &e.EventLimitExempt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Date = models.EventDay(e.Date)
	return &e, nil
}

// Create inserts an event.
func (r *Repository) Create(ctx context.Context, e *models.Event) error {
	const q = `INSERT INTO events (created_by_user_id, title, description, event_date, event_limit_exempt)
		VALUES ($1, $2, NULLIF($3,''), $4, $5)
		RETURNING id, created_at, updated_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q, e.CreatedByUserID, e.Title, e.Description, e.Date, e.EventLimitExempt).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

// GetByID returns an event by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e, err := scan(database.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+columns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// UpdateSchedule writes the title, description and date of e.
func (r *Repository) UpdateSchedule(ctx context.Context, e *models.Event) error {
	const q = `UPDATE events SET title = $2, description = NULLIF($3,''), event_date = $4, updated_at = NOW()
		WHERE id = $1 RETURNING updated_at`
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, e.ID, e.Title, e.Description, e.Date).Scan(&e.UpdatedAt)
	if database.IsNoRows(err) {
		return sentinel.ErrNotFound
	}
	return err
}

// CountInWindow counts userID's non-exempt events dated within [from, to].
func (r *Repository) CountInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time, exclude *uuid.UUID) (int, error) {
	const q = `SELECT COUNT(*) FROM events
		WHERE created_by_user_id = $1
		  AND event_limit_exempt = FALSE
		  AND event_date BETWEEN $2 AND $3
		  AND ($4::uuid IS NULL OR id <> $4)`
	var n int
	err := database.Conn(ctx, r.pool).QueryRow(ctx, q, userID, from, to, exclude).Scan(&n)
	return n, err
}

// Serialize runs fn in a transaction holding a transaction-scoped advisory lock on
// userID. Publications by the same user queue behind each other until commit.
func (r *Repository) Serialize(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error {
	return database.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := database.Conn(ctx, r.pool).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "events:"+userID.String()); err != nil {
			return err
		}
		return fn(ctx)
	})
}
