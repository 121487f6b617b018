package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-secret", 15*time.Minute, 24*time.Hour)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateAccessToken(Identity{UserID: "u1", Name: "Jane", Email: "jane@example.com", IsAdmin: true})
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Jane", claims.Name)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "u1", claims.Subject)
}

func TestGenerateAccessToken_RequiresUserID(t *testing.T) {
	_, err := newTestManager().GenerateAccessToken(Identity{Name: "nobody"})
	assert.Error(t, err)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, err := newTestManager().GenerateAccessToken(Identity{UserID: "u1"})
	require.NoError(t, err)

	other := NewJWTManager("other-secret", time.Minute, time.Minute)
	_, err = other.ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	m := newTestManager()
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	token, err := m.GenerateAccessToken(Identity{UserID: "u1"})
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(16 * time.Minute) }
	_, err = m.ValidateAccessToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{
		UserID:           "u1",
		Type:             typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newTestManager().ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateRefreshToken("u1")
	require.NoError(t, err)

	claims, err := m.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	m := newTestManager()
	refresh, err := m.GenerateRefreshToken("u1")
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(refresh)
	assert.Error(t, err)

	access, err := m.GenerateAccessToken(Identity{UserID: "u1"})
	require.NoError(t, err)
	_, err = m.ValidateRefreshToken(access)
	assert.Error(t, err)
}

func TestTokenValidator(t *testing.T) {
	m := newTestManager()
	token, err := m.GenerateAccessToken(Identity{UserID: "u1", Name: "Jane"})
	require.NoError(t, err)

	c, err := m.TokenValidator()(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.False(t, c.IsAdmin)

	_, err = m.TokenValidator()("garbage")
	assert.Error(t, err)
}
