package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is a stored account. PasswordHash is never serialized.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	RoleID       string    `json:"role_id" db:"role_id"`
	Role         string    `json:"role" db:"role_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type Role struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// NormalizeEmail is applied on every write and lookup so that lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UsernameFromEmail derives a default username from the local part of an email.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(NormalizeEmail(email), "@")
	return local
}

// SuffixedUsername appends a short random suffix to base, for when a derived
// username is already taken.
func SuffixedUsername(base string) string {
	return base + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
