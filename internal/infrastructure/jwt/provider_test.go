package jwtinfra

import (
	"errors"
	"testing"
	"time"

	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, secret string) *Provider {
	t.Helper()
	p, err := NewProvider(&config.Config{
		JWTSecretKey: secret,
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_RequiresSecret(t *testing.T) {
	_, err := NewProvider(&config.Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestAccessToken_RoundTrip(t *testing.T) {
	p := newTestProvider(t, "test-secret")

	token, expiresAt, err := p.SignAccess("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := p.Verify(token, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, TypeAccess, claims.TokenType)
	assert.Empty(t, claims.ID)
}

func TestRefreshToken_RoundTrip(t *testing.T) {
	p := newTestProvider(t, "test-secret")

	token, jti, _, err := p.SignRefresh("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, jti)

	claims, err := p.Verify(token, TypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID())
	assert.Equal(t, jti, claims.ID)
}

func TestVerify_WrongSecret(t *testing.T) {
	p := newTestProvider(t, "secret-a")
	other := newTestProvider(t, "secret-b")

	token, _, err := p.SignAccess("user-1")
	require.NoError(t, err)

	_, err = other.Verify(token, TypeAccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestVerify_TypeMismatch(t *testing.T) {
	p := newTestProvider(t, "test-secret")

	refresh, _, _, err := p.SignRefresh("user-1")
	require.NoError(t, err)

	_, err = p.Verify(refresh, TypeAccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestVerify_Expired(t *testing.T) {
	p, err := NewProvider(&config.Config{
		JWTSecretKey: "test-secret",
		AccessTTL:    -time.Minute,
		RefreshTTL:   time.Hour,
	})
	require.NoError(t, err)

	token, _, err := p.SignAccess("user-1")
	require.NoError(t, err)

	_, err = p.Verify(token, TypeAccess)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}

func TestVerify_StaticTokenAccessOnly(t *testing.T) {
	p, err := NewProvider(&config.Config{
		JWTSecretKey:       "test-secret",
		AccessTTL:          15 * time.Minute,
		RefreshTTL:         time.Hour,
		StaticAccessTokens: map[string]string{"ops-token": "user-42"},
	})
	require.NoError(t, err)

	claims, err := p.Verify("ops-token", TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID())

	// The allow-list must never short-circuit refresh token verification.
	_, err = p.Verify("ops-token", TypeRefresh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidToken))
}
