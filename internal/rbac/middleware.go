package rbac

import (
	"net/http"

	"cms-api/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the principal's role is one of allowed.
// admin bypasses all checks.
//
// The role is the one embedded in the access token, so a role change in the
// store takes effect at the next issuance (at most one access TTL later).
// Must run after the auth guard.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}

		if IsAdmin(role) {
			c.Next()
			return
		}

		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
