package auth

import (
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerScheme        = "bearer"

	// CookieAuthHeader must equal "true" (any case) for the access cookie to be read.
	CookieAuthHeader = "X-Use-Cookie-Auth"
)

// TokenExtractor pulls a raw token from one request source.
// It returns "" when the source holds no token.
type TokenExtractor func(r *http.Request) string

// AuthHeaderTokenExtractor reads "Authorization: Bearer <token>".
// Other schemes are treated as absent so later extractors still run.
func AuthHeaderTokenExtractor(r *http.Request) string {
	parts := strings.Fields(r.Header.Get(authorizationHeader))
	if len(parts) != 2 || !strings.EqualFold(parts[0], bearerScheme) {
		return ""
	}
	return parts[1]
}

// CookieTokenExtractor reads the named cookie unconditionally.
func CookieTokenExtractor(name string) TokenExtractor {
	return func(r *http.Request) string {
		ck, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return ck.Value
	}
}

// OptInCookieTokenExtractor reads the named cookie only when the request
// carries optInHeader set to "true". Browsers must declare cookie auth
// explicitly; an undeclared cookie is ignored even if it holds a valid token.
func OptInCookieTokenExtractor(name, optInHeader string) TokenExtractor {
	read := CookieTokenExtractor(name)
	return func(r *http.Request) string {
		if !strings.EqualFold(strings.TrimSpace(r.Header.Get(optInHeader)), "true") {
			return ""
		}
		return read(r)
	}
}

// MultiTokenExtractor runs extractors in order; the first non-empty token wins.
func MultiTokenExtractor(extractors ...TokenExtractor) TokenExtractor {
	return func(r *http.Request) string {
		for _, ex := range extractors {
			if tok := ex(r); tok != "" {
				return tok
			}
		}
		return ""
	}
}

// DefaultTokenExtractor is the bearer header, then the opt-in access cookie.
func DefaultTokenExtractor() TokenExtractor {
	return MultiTokenExtractor(
		AuthHeaderTokenExtractor,
		OptInCookieTokenExtractor(AccessCookieName, CookieAuthHeader),
	)
}
