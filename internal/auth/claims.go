package auth

import (
	"cms-api/internal/users"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Principal is the identity snapshot embedded in a token at issuance time.
// Role changes in the store are only visible after the next issuance, so the
// staleness of Role is bounded by the access token TTL.
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func PrincipalFromUser(u users.User) Principal {
	return Principal{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

// Claims are the only supported JWT claims shape for this service.
// sub carries the user id; access and refresh tokens share the same shape and
// differ only by Type and exp.
type Claims struct {
	jwt.RegisteredClaims

	Email    string    `json:"email"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	Type     TokenType `json:"type"`
}

func (c Claims) Principal() Principal {
	return Principal{ID: c.Subject, Email: c.Email, Username: c.Username, Role: c.Role}
}
