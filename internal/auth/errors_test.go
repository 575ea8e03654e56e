package auth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestKindOf_FollowsWrapChain(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrInvalidCredentials)
	require.Equal(t, KindInvalidCredentials, KindOf(wrapped))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestClassify(t *testing.T) {
	require.Nil(t, Classify(nil))

	expired := fmt.Errorf("%w: %w", jwt.ErrTokenInvalidClaims, jwt.ErrTokenExpired)
	require.Equal(t, KindTokenExpired, Classify(expired).Kind)
	require.Equal(t, "Token has expired", Classify(expired).Message)

	require.Equal(t, KindTokenMalformed, Classify(jwt.ErrTokenSignatureInvalid).Kind)
	require.Equal(t, KindTokenMalformed, Classify(jwt.ErrTokenMalformed).Kind)
	require.Equal(t, "Invalid token", Classify(jwt.ErrTokenMalformed).Message)

	// Already classified errors pass through.
	require.Same(t, ErrMissingToken, Classify(ErrMissingToken))
}

func TestOnlyExpiryIsRefreshable(t *testing.T) {
	for _, k := range []Kind{
		KindTokenMissing,
		KindTokenMalformed,
		KindTokenTypeMismatch,
		KindInvalidPayload,
		KindInvalidCredentials,
		KindInvalidRefreshToken,
		KindUserNotFound,
		KindRefreshFailed,
	} {
		require.False(t, k.Refreshable(), k)
	}
	require.True(t, KindTokenExpired.Refreshable())
}

func TestIsTokenLibraryError(t *testing.T) {
	require.True(t, isTokenLibraryError(fmt.Errorf("x: %w", jwt.ErrTokenNotValidYet)))
	require.False(t, isTokenLibraryError(errors.New("db down")))
}
