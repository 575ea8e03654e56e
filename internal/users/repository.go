package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cms-api/pkg/utils"

	"github.com/google/uuid"
)

// NOTE: This repository assumes the schema in migrations/schema.sql:
// - roles (id, name)
// - users (id, email UNIQUE, username UNIQUE, full_name, password_hash, role_id -> roles.id)

var _ Store = (*PostgresRepo)(nil)

type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const selectUser = `
SELECT u.id, u.email, u.username, u.full_name, u.password_hash, u.role_id, r.name, u.created_at, u.updated_at
FROM users u
JOIN roles r ON r.id = u.role_id
`

func (r *PostgresRepo) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.findOne(ctx, selectUser+`WHERE u.email = $1`, NormalizeEmail(email))
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Not a uuid can never match; avoid a cast error from Postgres.
		return User{}, ErrNotFound
	}
	return r.findOne(ctx, selectUser+`WHERE u.id = $1`, id)
}

func (r *PostgresRepo) findOne(ctx context.Context, q string, arg any) (User, error) {
	var u User
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FullName,
		&u.PasswordHash,
		&u.RoleID,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) Create(ctx context.Context, u User) (User, error) {
	u.Email = NormalizeEmail(u.Email)
	if err := validateNew(u); err != nil {
		return User{}, err
	}

	now := r.clock().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		role, err := roleByID(ctx, tx, u.RoleID)
		if err != nil {
			return err
		}
		u.Role = role.Name

		const q = `
INSERT INTO users (id, email, username, full_name, password_hash, role_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
		if _, err := tx.ExecContext(ctx, q,
			u.ID,
			u.Email,
			u.Username,
			u.FullName,
			u.PasswordHash,
			u.RoleID,
			u.CreatedAt,
			u.UpdatedAt,
		); err != nil {
			return mapUniqueViolation(err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func roleByID(ctx context.Context, q queryRower, id string) (Role, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Role{}, ErrInvalidRole
	}
	var role Role
	if err := q.QueryRowContext(ctx, `SELECT id, name FROM roles WHERE id = $1`, id).Scan(&role.ID, &role.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Role{}, ErrInvalidRole
		}
		return Role{}, err
	}
	return role, nil
}

func mapUniqueViolation(err error) error {
	constraint, ok := utils.UniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case "users_email_key":
		return ErrEmailTaken
	case "users_username_key":
		return ErrUsernameTaken
	default:
		return err
	}
}
