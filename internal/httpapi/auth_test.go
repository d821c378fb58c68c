package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"gudangpos/backend/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewAuthManager("another-test-secret-0123456789abcdef", 15*time.Minute)

	user := domain.UserAccount{ID: "usr-1", Email: "kasir@toko.test", Role: domain.RoleStaff}
	token, expiresAt, err := manager.IssueToken(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, time.Minute)

	actor, err := manager.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "usr-1", actor.ID)
	require.Equal(t, "kasir@toko.test", actor.Email)
	require.Equal(t, domain.RoleStaff, actor.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewAuthManager("secret-one-0123456789abcdef-0123456789", time.Minute)
	verifier := NewAuthManager("secret-two-0123456789abcdef-0123456789", time.Minute)

	token, _, err := issuer.IssueToken(domain.UserAccount{ID: "usr-1", Email: "a@b.c", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	// Bypass the constructor's TTL floor to mint an already-expired token.
	manager := &AuthManager{secret: []byte("expired-test-secret-0123456789abcdef"), tokenTTL: -time.Minute}

	token, _, err := manager.IssueToken(domain.UserAccount{ID: "usr-1", Email: "a@b.c", Role: domain.RoleAdmin})
	require.NoError(t, err)

	_, err = manager.ParseToken(token)
	require.Error(t, err)
}

func TestParseTokenRejectsUnsignedAlg(t *testing.T) {
	manager := NewAuthManager("alg-test-secret-0123456789abcdef-xyz", time.Minute)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "usr-1"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = manager.ParseToken(token)
	require.Error(t, err)
}
