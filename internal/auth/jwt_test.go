package auth

import (
	"strings"
	"testing"
	"time"

	"cms-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1700000000, 0).UTC()

var testPrincipal = Principal{ID: "user-1", Email: "ada@example.com", Username: "ada", Role: "editor"}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret-with-enough-entropy-0123456789",
		JWTIssuer:       "cms-api",
		JWTAudience:     "cms-web",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)
	return m
}

func TestNewManager_RequiresSecretAndTTLs(t *testing.T) {
	_, err := NewManager(config.AuthConfig{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	require.Error(t, err)

	_, err = NewManager(config.AuthConfig{JWTSecret: "s", RefreshTokenTTL: time.Hour})
	require.Error(t, err)

	// A sub-second TTL would truncate to a zero cookie Max-Age.
	_, err = NewManager(config.AuthConfig{JWTSecret: "s", AccessTokenTTL: 500 * time.Millisecond, RefreshTokenTTL: time.Hour})
	require.Error(t, err)
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newTestManager(t)

	pair, err := m.IssuePair(testNow, testPrincipal)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, testNow.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, testPrincipal, claims.Principal())
	require.Equal(t, TokenTypeAccess, claims.Type)
	require.Equal(t, "cms-api", claims.Issuer)
	require.Equal(t, jwt.ClaimStrings{"cms-web"}, claims.Audience)
}

func TestIssue_LifetimeMatchesTTL(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.IssuePair(testNow, testPrincipal)
	require.NoError(t, err)

	access, err := m.Verify(pair.AccessToken, TokenTypeAccess, testNow)
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, access.ExpiresAt.Sub(access.IssuedAt.Time))

	refresh, err := m.Verify(pair.RefreshToken, TokenTypeRefresh, testNow)
	require.NoError(t, err)
	require.Equal(t, 7*24*time.Hour, refresh.ExpiresAt.Sub(refresh.IssuedAt.Time))
}

func TestIssue_SameSecondTokensDiffer(t *testing.T) {
	m := newTestManager(t)
	a, err := m.IssuePair(testNow, testPrincipal)
	require.NoError(t, err)
	b, err := m.IssuePair(testNow, testPrincipal)
	require.NoError(t, err)
	require.NotEqual(t, a.AccessToken, b.AccessToken)
	require.NotEqual(t, a.RefreshToken, b.RefreshToken)
}

func TestVerify_RejectsWrongTokenType(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.IssuePair(testNow, testPrincipal)
	require.NoError(t, err)

	_, err = m.Verify(pair.RefreshToken, TokenTypeAccess, testNow)
	require.Equal(t, KindTokenTypeMismatch, KindOf(err))

	_, err = m.Verify(pair.AccessToken, TokenTypeRefresh, testNow)
	require.Equal(t, KindTokenTypeMismatch, KindOf(err))
}

func TestVerify_ExpiredOneSecondPastExp(t *testing.T) {
	m := newTestManager(t)
	tok, err := m.Issue(testNow, testPrincipal, TokenTypeAccess)
	require.NoError(t, err)

	_, err = m.Verify(tok, TokenTypeAccess, testNow.Add(15*time.Minute+time.Second))
	require.Equal(t, KindTokenExpired, KindOf(err))
	require.True(t, KindOf(err).Refreshable())
}

func TestVerify_TamperedTokenIsMalformed(t *testing.T) {
	m := newTestManager(t)
	pair, err := m.IssuePair(testNow, testPrincipal)
	require.NoError(t, err)

	// Refresh payload under the access signature.
	access := strings.Split(pair.AccessToken, ".")
	refresh := strings.Split(pair.RefreshToken, ".")
	forged := access[0] + "." + refresh[1] + "." + access[2]

	_, err = m.Verify(forged, TokenTypeRefresh, testNow)
	require.Equal(t, KindTokenMalformed, KindOf(err))

	// Still malformed once it would also be expired.
	_, err = m.Verify(forged, TokenTypeRefresh, testNow.Add(30*24*time.Hour))
	require.Equal(t, KindTokenMalformed, KindOf(err))
}

func TestVerify_RejectsForeignTokens(t *testing.T) {
	m := newTestManager(t)

	other, err := NewManager(config.AuthConfig{
		JWTSecret:       "another-secret-another-secret-another",
		JWTIssuer:       "cms-api",
		JWTAudience:     "cms-web",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	foreign, err := other.Issue(testNow, testPrincipal, TokenTypeAccess)
	require.NoError(t, err)

	wrongAud, err := NewManager(config.AuthConfig{
		JWTSecret:       string(m.secret),
		JWTIssuer:       "cms-api",
		JWTAudience:     "someone-else",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	require.NoError(t, err)
	audTok, err := wrongAud.Issue(testNow, testPrincipal, TokenTypeAccess)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		Email: "ada@example.com",
		Type:  TokenTypeAccess,
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret":   foreign,
		"wrong audience": audTok,
		"alg none":       unsigned,
		"garbage":        "not-a-jwt",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.Verify(tok, TokenTypeAccess, testNow)
			require.Equal(t, KindTokenMalformed, KindOf(err))
		})
	}
}

func TestVerify_MissingIdentityClaimsIsInvalidPayload(t *testing.T) {
	m := newTestManager(t)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "cms-api",
			Audience:  jwt.ClaimStrings{"cms-web"},
			IssuedAt:  jwt.NewNumericDate(testNow),
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}).SignedString(m.secret)
	require.NoError(t, err)

	_, err = m.Verify(tok, TokenTypeAccess, testNow)
	require.Equal(t, KindInvalidPayload, KindOf(err))
}
