package auth

import (
	"context"
	"errors"
	"sync"

	"cms-api/internal/users"
)

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// CredentialValidator checks an email/password pair against the user store.
type CredentialValidator struct {
	store users.Store
}

func NewCredentialValidator(store users.Store) *CredentialValidator {
	return &CredentialValidator{store: store}
}

// Validate returns the matching user, or ErrInvalidCredentials for both an
// unknown email and a wrong password. An unknown email still runs one bcrypt
// comparison so the two cases are not distinguishable by latency.
// Store failures other than not-found are returned as is.
func (v *CredentialValidator) Validate(ctx context.Context, email, password string) (users.User, error) {
	u, err := v.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			users.ValidatePassword(users.User{PasswordHash: unknownUserHash()}, password)
			return users.User{}, ErrInvalidCredentials
		}
		return users.User{}, err
	}
	if !users.ValidatePassword(u, password) {
		return users.User{}, ErrInvalidCredentials
	}
	return u, nil
}

func unknownUserHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = users.HashPassword("unknown-user-placeholder")
	})
	return dummyHash
}
