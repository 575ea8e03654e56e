package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("users: not found")
	ErrEmailTaken    = errors.New("users: email already registered")
	ErrUsernameTaken = errors.New("users: username already taken")
	ErrInvalidRole   = errors.New("users: invalid role")
	ErrInvalidUser   = errors.New("users: invalid user")
)

// Store is the persistence contract the auth subsystem depends on.
// Lookups return ErrNotFound when nothing matches.
type Store interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id string) (User, error)
	// Create assigns ID and timestamps when empty and resolves Role from RoleID.
	Create(ctx context.Context, u User) (User, error)
}

func validateNew(u User) error {
	if u.Email == "" || u.Username == "" || u.PasswordHash == "" {
		return ErrInvalidUser
	}
	if u.RoleID == "" {
		return ErrInvalidRole
	}
	return nil
}
