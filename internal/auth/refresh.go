package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"cms-api/internal/audit"
	"cms-api/internal/users"
	"cms-api/pkg/logger"
	"cms-api/pkg/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
)

const (
	pathExplicit  = "explicit"
	pathAutomatic = "automatic"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// RefresherConfig wires a Refresher. Audit and Metrics may be nil.
type RefresherConfig struct {
	Tokens  *Manager
	Users   users.Store
	Cookies *CookieManager
	Audit   *audit.Service
	Metrics *metrics.Auth
}

// Refresher re-issues token pairs from refresh tokens, either on an explicit
// request or automatically when a protected request arrives with an expired
// access token.
//
// Concurrent renewals presenting the same refresh token share one user lookup
// and one issuance.
type Refresher struct {
	tokens  *Manager
	users   users.Store
	cookies *CookieManager
	audit   *audit.Service
	metrics *metrics.Auth
	clock   func() time.Time
	group   singleflight.Group
}

func NewRefresher(cfg RefresherConfig) *Refresher {
	return &Refresher{
		tokens:  cfg.Tokens,
		users:   cfg.Users,
		cookies: cfg.Cookies,
		audit:   cfg.Audit,
		metrics: cfg.Metrics,
		clock:   time.Now,
	}
}

// Renewal is the outcome of a successful refresh. User is re-read from the
// store, so role or profile changes since the refresh token was issued apply.
type Renewal struct {
	Pair TokenPair
	User users.User
}

/* ===================== EXPLICIT PATH ===================== */

// Refresh verifies raw as a refresh token and issues a new pair. A token of the
// wrong type fails with "Invalid token type"; any other verification failure
// with "Invalid refresh token". Cookies are left untouched on failure.
func (o *Refresher) Refresh(ctx context.Context, raw string) (Renewal, error) {
	if raw == "" {
		o.metrics.Refresh(pathExplicit, outcomeFailure)
		return Renewal{}, ErrRefreshMissing
	}

	claims, err := o.tokens.Verify(raw, TokenTypeRefresh, o.clock())
	if err != nil {
		o.metrics.Refresh(pathExplicit, outcomeFailure)
		if KindOf(err) == KindTokenTypeMismatch {
			return Renewal{}, err
		}
		return Renewal{}, newError(KindInvalidRefreshToken, msgInvalidRefresh, err)
	}

	r, err := o.reissue(ctx, raw, claims)
	if err != nil {
		o.metrics.Refresh(pathExplicit, outcomeFailure)
		return Renewal{}, err
	}
	o.metrics.Refresh(pathExplicit, outcomeSuccess)
	return r, nil
}

/* ===================== AUTOMATIC PATH ===================== */

// AutoRefresh guards a route like RequireAccessToken, and additionally
// recovers from TOKEN_EXPIRED once: it renews the pair from the refresh
// cookie, writes both cookies, injects the new access token as the request's
// bearer credential and verifies again before running the handler.
//
// Any failure during recovery clears both cookies and answers
// "Token refresh failed, please login again". Every other error kind is
// terminal. A second expiry is never recovered.
func (o *Refresher) AutoRefresh(g *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.Authenticate(c.Request)
		if err != nil && KindOf(err).Refreshable() {
			p, err = o.renewExpired(c, g)
		}
		if err != nil {
			Reject(c, err)
			return
		}
		attach(c, p)
		c.Next()
	}
}

func (o *Refresher) renewExpired(c *gin.Context, g *Guard) (Principal, error) {
	log := logger.FromGin(c)

	fail := func(cause error) (Principal, error) {
		o.cookies.ClearAuthCookies(c.Writer)
		o.metrics.Refresh(pathAutomatic, outcomeFailure)
		o.audit.Record(c.Request.Context(), audit.Event{
			Type:      audit.EventTypeRefreshFailed,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   "automatic refresh failed",
		})
		log.Info("automatic refresh failed", "kind", KindOf(cause), "err", cause)
		return Principal{}, newError(KindRefreshFailed, msgRefreshFailed, cause)
	}

	ck, err := c.Request.Cookie(RefreshCookieName)
	if err != nil || ck.Value == "" {
		return fail(ErrRefreshMissing)
	}

	claims, err := o.tokens.Verify(ck.Value, TokenTypeRefresh, o.clock())
	if err != nil {
		return fail(err)
	}

	r, err := o.reissue(c.Request.Context(), ck.Value, claims)
	if err != nil {
		return fail(err)
	}

	o.cookies.SetAuthCookies(c.Writer, r.Pair)
	c.Request.Header.Set(authorizationHeader, "Bearer "+r.Pair.AccessToken)

	p, err := g.Authenticate(c.Request)
	if err != nil {
		return fail(err)
	}

	o.metrics.Refresh(pathAutomatic, outcomeSuccess)
	o.audit.Record(c.Request.Context(), audit.Event{
		Type:      audit.EventTypeTokenRefreshed,
		UserID:    r.User.ID,
		Email:     r.User.Email,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Message:   "automatic refresh",
	})
	log.Info("access token renewed", "user_id", r.User.ID)
	return p, nil
}

/* ===================== SHARED ===================== */

// reissue looks up the token's subject and signs a new pair. Calls carrying the
// same refresh token while one is in flight wait for and share its result.
func (o *Refresher) reissue(ctx context.Context, raw string, claims Claims) (Renewal, error) {
	sum := sha256.Sum256([]byte(raw))
	v, err, _ := o.group.Do(hex.EncodeToString(sum[:]), func() (any, error) {
		// Detached from the first caller's cancellation; other waiters depend on it.
		u, err := o.users.FindByID(context.WithoutCancel(ctx), claims.Subject)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return nil, newError(KindUserNotFound, msgUserNotFound, err)
			}
			return nil, err
		}
		pair, err := o.tokens.IssuePair(o.clock(), PrincipalFromUser(u))
		if err != nil {
			return nil, err
		}
		return Renewal{Pair: pair, User: u}, nil
	})
	if err != nil {
		return Renewal{}, err
	}
	return v.(Renewal), nil
}
