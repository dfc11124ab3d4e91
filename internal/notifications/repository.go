package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists notification records.
type Repository struct {
	db rowQuerier
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("notifications: pgx pool required")
	}
	return &Repository{db: pool}
}

func newRepositoryWithQuerier(q rowQuerier) *Repository {
	return &Repository{db: q}
}

// Create inserts a notification and fills in its id and timestamp.
func (r *Repository) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	query := `
		INSERT INTO notifications (id, user_id, title, message, type, related_type, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	if err := r.db.QueryRow(ctx, query,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.Related.Type, n.Related.ID,
	).Scan(&n.CreatedAt); err != nil {
		return fmt.Errorf("notifications: insert: %w", err)
	}
	return nil
}
