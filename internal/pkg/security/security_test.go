package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", "Parley", time.Hour)
	token, err := issuer.GenerateToken(UserClaims{UserID: "u1", Email: "a@b.c", DisplayName: "Alice"})
	require.NoError(t, err)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "u1", claims.Subject)

	sig, err := ExtractSignature(token)
	require.NoError(t, err)
	assert.NotEmpty(t, sig)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	token, err := NewTokenIssuer("secret", "Parley", time.Hour).GenerateToken(UserClaims{UserID: "u1"})
	require.NoError(t, err)

	_, err = NewTokenIssuer("other", "Parley", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	expired := NewTokenIssuer("secret", "Parley", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.GenerateToken(UserClaims{UserID: "u1"})
	require.NoError(t, err)
	_, err = expired.ValidateToken(old)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NoError(t, CheckPasswordHash("hunter22", hash))
	assert.ErrorIs(t, CheckPasswordHash("wrong", hash), ErrInvalidCredentials)

	_, err = HashPassword("")
	assert.Error(t, err)
}
