package auth

import (
	"errors"
	"time"

	"cms-api/internal/config"
	"cms-api/pkg/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Manager signs and verifies tokens with a single process-wide HS256 secret.
// It is built once at startup and is read-only afterwards.
type Manager struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	leeway     time.Duration
	metrics    *metrics.Auth
}

type ManagerOption func(*Manager)

func WithMetrics(a *metrics.Auth) ManagerOption {
	return func(m *Manager) { m.metrics = a }
}

func NewManager(cfg config.AuthConfig, opts ...ManagerOption) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.AccessTokenTTL < time.Second || cfg.RefreshTokenTTL < time.Second {
		return nil, errors.New("token TTLs must be at least 1s")
	}

	m := &Manager{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.JWTIssuer,
		audience:   cfg.JWTAudience,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		leeway:     cfg.Leeway,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TTL returns the lifetime of the given token type. Cookie Max-Age is derived from it.
func (m *Manager) TTL(t TokenType) time.Duration {
	if t == TokenTypeRefresh {
		return m.refreshTTL
	}
	return m.accessTTL
}

/* ===================== ISSUE TOKENS ===================== */

func (m *Manager) IssuePair(now time.Time, p Principal) (TokenPair, error) {
	access, err := m.Issue(now, p, TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := m.Issue(now, p, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Issue signs a single token. exp - iat equals the TTL for the token type.
func (m *Manager) Issue(now time.Time, p Principal, tokenType TokenType) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    m.issuer,
			Audience:  audienceOrNil(m.audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(tokenType))),
			// jti keeps two tokens issued in the same second distinct.
			ID: uuid.NewString(),
		},
		Email:    p.Email,
		Username: p.Username,
		Role:     p.Role,
		Type:     tokenType,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", err
	}
	m.metrics.TokenIssued(string(tokenType))
	return signed, nil
}

/* ===================== VERIFY TOKEN ===================== */

// Verify checks signature first, then exp/iat/iss/aud, then the claim shape and
// type. Every failure is returned as *Error; the signature is checked before
// exp, so a tampered token is never reported as expired.
func (m *Manager) Verify(tokenString string, expected TokenType, now time.Time) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(m.leeway),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, Classify(err)
	}

	if claims.Subject == "" || claims.Email == "" {
		return Claims{}, newError(KindInvalidPayload, msgInvalidPayload, nil)
	}
	if claims.Type != expected {
		return Claims{}, newError(KindTokenTypeMismatch, msgInvalidType, nil)
	}
	return claims, nil
}

func audienceOrNil(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}
