package emaillogs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/escena-local/directory/internal/models"
	"github.com/escena-local/directory/pkg/database"
	"github.com/escena-local/directory/pkg/sentinel"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a log row and fills its ID and creation time.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (email_type, recipient_email, subject, entity_kind, entity_id, claim_id, status)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6, $7)
		RETURNING id, created_at`
	return database.Conn(ctx, r.pool).QueryRow(ctx, q,
		el.EmailType, el.RecipientEmail, el.Subject, el.EntityKind, el.EntityID, el.ClaimID, el.Status,
	).Scan(&el.ID, &el.CreatedAt)
}

// MarkSent records a successful hand-off.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.mark(ctx, `UPDATE email_logs SET status = 'sent', sent_at = $2, error_message = NULL WHERE id = $1`, id, at)
}

// MarkFailed records a failed hand-off with its error text.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.mark(ctx, `UPDATE email_logs SET status = 'failed', error_message = $2 WHERE id = $1`, id, reason)
}

func (r *Repository) mark(ctx context.Context, q string, args ...any) error {
	tag, err := database.Conn(ctx, r.pool).Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns email logs, newest first, optionally filtered by type.
func (r *Repository) List(ctx context.Context, emailType string, limit int) ([]*models.EmailLog, error) {
	const q = `SELECT id, email_type, recipient_email, subject, entity_kind, entity_id, claim_id, status, sent_at, error_message, created_at
		FROM email_logs
		WHERE ($1 = '' OR email_type = $1)
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := database.Conn(ctx, r.pool).Query(ctx, q, emailType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		var el models.EmailLog
		var subject, errMsg *string
		if err := rows.Scan(&el.ID, &el.EmailType, &el.RecipientEmail, &subject, &el.EntityKind, &el.EntityID, &el.ClaimID,
			&el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
			return nil, err
		}
		if subject != nil {
			el.Subject = *subject
		}
		if errMsg != nil {
			el.ErrorMessage = *errMsg
		}
		list = append(list, &el)
	}
	return list, rows.Err()
}
