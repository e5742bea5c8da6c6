package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/domain"
	jwtinfra "github.com/go-auth-sms/internal/infrastructure/jwt"
	redisinfra "github.com/go-auth-sms/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSvc(t *testing.T) (Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	provider, err := jwtinfra.NewProvider(&config.Config{
		JWTSecretKey: "test-secret",
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
	})
	require.NoError(t, err)

	return NewService(ServiceDeps{
		Store:       redisinfra.NewStoreWithClient(client),
		JWTProvider: provider,
	}), mr
}

func TestIssuePair_RegistersRefreshJTI(t *testing.T) {
	svc, mr := newSvc(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
	// Access TTL < refresh TTL by configuration.
	assert.True(t, pair.RefreshTokenExpiresAt.After(pair.AccessTokenExpiresAt))

	claims, err := svc.DecodeRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, mr.Exists("auth:rt:user-1:"+claims.ID))

	require.NoError(t, svc.AssertRefreshLive(ctx, claims))
}

func TestRefreshToken_OneTimeUse(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)

	claims, err := svc.DecodeRefresh(pair.RefreshToken)
	require.NoError(t, err)

	// First rotation succeeds.
	require.NoError(t, svc.AssertRefreshLive(ctx, claims))
	require.NoError(t, svc.Revoke(ctx, claims, false))

	// Replaying the same token now fails as revoked.
	err = svc.AssertRefreshLive(ctx, claims)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenRevoked))
}

func TestRevoke_EnsureExists(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)
	claims, err := svc.DecodeRefresh(pair.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, claims, true))

	// Second explicit logout with the same token must fail.
	err = svc.Revoke(ctx, claims, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenRevoked))

	// Without ensureExists the delete is a silent no-op.
	assert.NoError(t, svc.Revoke(ctx, claims, false))
}

func TestRevokeAll(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()

	var claims []*jwtinfra.Claims
	for i := 0; i < 3; i++ {
		pair, err := svc.IssuePair(ctx, "user-1")
		require.NoError(t, err)
		c, err := svc.DecodeRefresh(pair.RefreshToken)
		require.NoError(t, err)
		claims = append(claims, c)
	}
	otherPair, err := svc.IssuePair(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, "user-1"))

	for _, c := range claims {
		err := svc.AssertRefreshLive(ctx, c)
		assert.True(t, errors.Is(err, domain.ErrTokenRevoked))
	}

	// Other users' tokens stay live.
	otherClaims, err := svc.DecodeRefresh(otherPair.RefreshToken)
	require.NoError(t, err)
	assert.NoError(t, svc.AssertRefreshLive(ctx, otherClaims))
}

func TestRefreshJTI_ExpiresWithToken(t *testing.T) {
	svc, mr := newSvc(t)
	ctx := context.Background()

	pair, err := svc.IssuePair(ctx, "user-1")
	require.NoError(t, err)
	claims, err := svc.DecodeRefresh(pair.RefreshToken)
	require.NoError(t, err)

	mr.FastForward(25 * time.Hour)

	err = svc.AssertRefreshLive(ctx, claims)
	assert.True(t, errors.Is(err, domain.ErrTokenRevoked))
}
