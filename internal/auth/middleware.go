package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Guard verifies the access token of an incoming request. It keeps no
// per-request state.
type Guard struct {
	tokens  *Manager
	extract TokenExtractor
	clock   func() time.Time
}

func NewGuard(m *Manager) *Guard {
	return &Guard{tokens: m, extract: DefaultTokenExtractor(), clock: time.Now}
}

// Authenticate extracts and verifies the access token. Errors are *Error.
func (g *Guard) Authenticate(r *http.Request) (Principal, error) {
	raw := g.extract(r)
	if raw == "" {
		return Principal{}, ErrMissingToken
	}
	claims, err := g.tokens.Verify(raw, TokenTypeAccess, g.clock())
	if err != nil {
		return Principal{}, err
	}
	return claims.Principal(), nil
}

// RequireAccessToken verifies an access token and injects the principal into
// the request context. It never refreshes; use Refresher.AutoRefresh for that.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(g *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.Authenticate(c.Request)
		if err != nil {
			Reject(c, err)
			return
		}
		attach(c, p)
		c.Next()
	}
}

// Reject records err for the ErrorClassifier and stops the chain. The status is
// set without writing headers so the classifier can still write the body.
func Reject(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Status(http.StatusUnauthorized)
	c.Abort()
}
