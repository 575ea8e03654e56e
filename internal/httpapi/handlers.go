package httpapi

import (
	"errors"
	"net/http"
	"time"

	"cms-api/internal/audit"
	"cms-api/internal/auth"
	"cms-api/internal/users"
	"cms-api/pkg/logger"
	"cms-api/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
// Audit, Metrics and Limiter are optional.
type Handlers struct {
	Users       users.Store
	Tokens      *auth.Manager
	Credentials *auth.CredentialValidator
	Cookies     *auth.CookieManager
	Refresher   *auth.Refresher
	Audit       *audit.Service
	Metrics     *metrics.Auth
	Limiter     LoginLimiter
	Clock       func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func toUserResponse(u users.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

// startSession issues a pair for u, writes both cookies and returns the body
// shared by register, login and refresh. The refresh token only travels in
// its cookie.
func (h Handlers) startSession(c *gin.Context, u users.User) (sessionResponse, bool) {
	pair, err := h.Tokens.IssuePair(h.now(), auth.PrincipalFromUser(u))
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "user_id", u.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return sessionResponse{}, false
	}
	h.Cookies.SetAuthCookies(c.Writer, pair)
	return sessionResponse{AccessToken: pair.AccessToken, User: toUserResponse(u)}, true
}

func (h Handlers) event(c *gin.Context, t audit.EventType, userID, email, msg string) {
	h.Audit.Record(c.Request.Context(), audit.Event{
		Type:      t,
		UserID:    userID,
		Email:     users.NormalizeEmail(email),
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Message:   msg,
	})
}

// --- Register ---

const maxUsernameRetries = 3

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	RoleID   string `json:"role_id" binding:"required"`
	Username string `json:"username"`
}

// Register creates a user and signs them in.
func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email, password, full_name, role_id required"})
		return
	}
	hash, err := users.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, users.ErrPasswordTooShort) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Password must be at least 6 characters"})
			return
		}
		if errors.Is(err, users.ErrPasswordTooLong) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Password must be at most 72 bytes"})
			return
		}
		logger.FromGin(c).Error("password hashing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	derived := req.Username == ""
	if derived {
		req.Username = users.UsernameFromEmail(req.Email)
	}

	newUser := users.User{
		Email:        req.Email,
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: hash,
		RoleID:       req.RoleID,
	}
	u, err := h.Users.Create(c.Request.Context(), newUser)
	// A derived username that collides gets a random suffix instead of a 409.
	for attempt := 0; derived && errors.Is(err, users.ErrUsernameTaken) && attempt < maxUsernameRetries; attempt++ {
		newUser.Username = users.SuffixedUsername(req.Username)
		u, err = h.Users.Create(c.Request.Context(), newUser)
	}
	switch {
	case errors.Is(err, users.ErrEmailTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	case errors.Is(err, users.ErrUsernameTaken):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Username already taken"})
		return
	case errors.Is(err, users.ErrInvalidRole):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	case err != nil:
		logger.FromGin(c).Error("user create failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	resp, ok := h.startSession(c, u)
	if !ok {
		return
	}
	h.event(c, audit.EventTypeRegistered, u.ID, u.Email, "user registered")
	c.JSON(http.StatusCreated, resp)
}

// --- Login ---

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login validates credentials and issues a token pair. Unknown email and wrong
// password are indistinguishable to the client.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}
	ctx := c.Request.Context()
	log := logger.FromGin(c)

	key := loginThrottleKey(req.Email, c.ClientIP())
	if h.Limiter != nil {
		allowed, err := h.Limiter.Allow(ctx, key)
		if err != nil {
			// Fail open when Redis is unreachable.
			log.Warn("login limiter unavailable", "err", err)
		} else if !allowed {
			h.Metrics.Login("throttled")
			h.event(c, audit.EventTypeLoginThrottled, "", req.Email, "too many attempts")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many login attempts, try again later"})
			return
		}
	}

	u, err := h.Credentials.Validate(ctx, req.Email, req.Password)
	if err != nil {
		if auth.KindOf(err) == auth.KindInvalidCredentials {
			h.Metrics.Login("failure")
			h.event(c, audit.EventTypeLoginFailed, "", req.Email, "invalid credentials")
			auth.Reject(c, err)
			return
		}
		log.Error("credential lookup failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	if h.Limiter != nil {
		if err := h.Limiter.Reset(ctx, key); err != nil {
			log.Warn("login limiter reset failed", "err", err)
		}
	}

	resp, ok := h.startSession(c, u)
	if !ok {
		return
	}
	h.Metrics.Login("success")
	h.event(c, audit.EventTypeLoginSucceeded, u.ID, u.Email, "")
	c.JSON(http.StatusOK, resp)
}

// --- Refresh ---

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair. The refresh cookie wins
// over a refresh_token body field. Cookies are not cleared on failure.
func (h Handlers) Refresh(c *gin.Context) {
	raw := ""
	if ck, err := c.Request.Cookie(auth.RefreshCookieName); err == nil {
		raw = ck.Value
	}
	if raw == "" {
		var req refreshRequest
		// Body is optional; an empty or non-JSON body means no token.
		_ = c.ShouldBindJSON(&req)
		raw = req.RefreshToken
	}

	r, err := h.Refresher.Refresh(c.Request.Context(), raw)
	if err != nil {
		if auth.KindOf(err) != "" {
			h.event(c, audit.EventTypeRefreshFailed, "", "", string(auth.KindOf(err)))
			auth.Reject(c, err)
			return
		}
		logger.FromGin(c).Error("refresh failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}

	h.Cookies.SetAuthCookies(c.Writer, r.Pair)
	h.event(c, audit.EventTypeTokenRefreshed, r.User.ID, r.User.Email, "explicit refresh")
	c.JSON(http.StatusOK, sessionResponse{AccessToken: r.Pair.AccessToken, User: toUserResponse(r.User)})
}

// --- Logout ---

// Logout clears both auth cookies. Tokens are stateless, so anything already
// issued stays valid until it expires.
func (h Handlers) Logout(c *gin.Context) {
	h.Cookies.ClearAuthCookies(c.Writer)
	h.event(c, audit.EventTypeLoggedOut, "", "", "")
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// --- Profile ---

type profileResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile returns the caller's current record from the store.
func (h Handlers) Profile(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		auth.Reject(c, auth.ErrMissingToken)
		return
	}
	u, err := h.Users.FindByID(c.Request.Context(), p.ID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			auth.Reject(c, auth.ErrUserNotFound)
			return
		}
		logger.FromGin(c).Error("profile lookup failed", "user_id", p.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile lookup failed"})
		return
	}
	c.JSON(http.StatusOK, profileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	})
}

// Me echoes the identity carried by the access token, without a store lookup.
func (h Handlers) Me(c *gin.Context) {
	p, ok := auth.CurrentPrincipal(c)
	if !ok {
		auth.Reject(c, auth.ErrMissingToken)
		return
	}
	c.JSON(http.StatusOK, userResponse{ID: p.ID, Username: p.Username, Email: p.Email, Role: p.Role})
}

// AdminPing is a minimal admin-only endpoint.
func (h Handlers) AdminPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
