package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
)

type ctxKey int

const (
	ctxPrincipal ctxKey = iota
)

const ginPrincipalKey = "principal"

var ErrNoPrincipal = errors.New("principal not in context")

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipal, p)
}

func PrincipalFrom(ctx context.Context) (Principal, error) {
	if p, ok := ctx.Value(ctxPrincipal).(Principal); ok && p.ID != "" {
		return p, nil
	}
	return Principal{}, ErrNoPrincipal
}

func Role(ctx context.Context) (string, error) {
	p, err := PrincipalFrom(ctx)
	if err != nil || p.Role == "" {
		return "", errors.New("role not in context")
	}
	return p.Role, nil
}

// attach injects the principal into the request context and, for handler
// convenience, into the gin context.
func attach(c *gin.Context, p Principal) {
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
	c.Set(ginPrincipalKey, p)
}

// CurrentPrincipal returns the principal attached by the guard.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	if v, ok := c.Get(ginPrincipalKey); ok {
		if p, ok := v.(Principal); ok {
			return p, true
		}
	}
	p, err := PrincipalFrom(c.Request.Context())
	return p, err == nil
}
