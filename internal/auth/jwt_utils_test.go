package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	token, err := iss.GenerateToken(7, "ana@loja.com", "admin")
	require.NoError(t, err)

	claims, err := iss.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "ana@loja.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	other, err := NewIssuer("another-secret", time.Hour).GenerateToken(1, "x@y.z", "admin")
	require.NoError(t, err)
	_, err = iss.ValidateToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	claims := &Claims{UserID: 1, Role: "admin"}
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = iss.ValidateToken(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.ValidateToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswords(t *testing.T) {
	_, err := HashPassword("12345")
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("segredo1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "segredo1"))
	assert.False(t, CheckPassword(hash, "segredo2"))
}
