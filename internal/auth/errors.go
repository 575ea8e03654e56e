package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Kind classifies an auth failure. Retry decisions are made on Kind, never on Message.
type Kind string

const (
	KindTokenMissing        Kind = "TOKEN_MISSING"
	KindTokenExpired        Kind = "TOKEN_EXPIRED"
	KindTokenMalformed      Kind = "TOKEN_MALFORMED"
	KindTokenTypeMismatch   Kind = "TOKEN_TYPE_MISMATCH"
	KindInvalidPayload      Kind = "INVALID_PAYLOAD"
	KindInvalidCredentials  Kind = "INVALID_CREDENTIALS"
	KindInvalidRefreshToken Kind = "INVALID_REFRESH_TOKEN"
	KindUserNotFound        Kind = "USER_NOT_FOUND"
	KindRefreshFailed       Kind = "REFRESH_FAILED"
)

const (
	msgMissingToken       = "Missing token"
	msgTokenExpired       = "Token has expired"
	msgInvalidToken       = "Invalid token"
	msgInvalidPayload     = "Invalid token payload"
	msgInvalidType        = "Invalid token type"
	msgInvalidCredentials = "Invalid credentials"
	msgInvalidRefresh     = "Invalid refresh token"
	msgRefreshMissing     = "Refresh token not provided"
	msgUserNotFound       = "User not found"
	msgRefreshFailed      = "Token refresh failed, please login again"
)

// Error is the structured error carried through the request pipeline.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

var (
	ErrMissingToken       = newError(KindTokenMissing, msgMissingToken, nil)
	ErrInvalidCredentials = newError(KindInvalidCredentials, msgInvalidCredentials, nil)
	ErrRefreshMissing     = newError(KindInvalidRefreshToken, msgRefreshMissing, nil)
	ErrUserNotFound       = newError(KindUserNotFound, msgUserNotFound, nil)
)

// KindOf returns the Kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Refreshable reports whether a failure of this kind may be recovered by one refresh.
func (k Kind) Refreshable() bool {
	return k == KindTokenExpired
}

// Classify maps a token library error to a typed Error.
// An expired token with a valid signature is TOKEN_EXPIRED; every other
// parse or validation failure (bad signature, bad encoding, wrong alg,
// issuer/audience mismatch) is TOKEN_MALFORMED.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return newError(KindTokenExpired, msgTokenExpired, err)
	}
	return newError(KindTokenMalformed, msgInvalidToken, err)
}

var tokenLibraryErrors = []error{
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenExpired,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenInvalidId,
	jwt.ErrTokenInvalidClaims,
	jwt.ErrInvalidKey,
	jwt.ErrInvalidKeyType,
}

func isTokenLibraryError(err error) bool {
	for _, target := range tokenLibraryErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
