package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends to auth_events. No update or delete statements exist.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO auth_events (id, type, user_id, email, ip_address, user_agent, message, created_at)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7, $8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.UserID,
		e.Email,
		e.IPAddress,
		e.UserAgent,
		e.Message,
		e.CreatedAt,
	)
	return err
}
