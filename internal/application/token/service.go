package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-auth-sms/internal/domain"
	jwtinfra "github.com/go-auth-sms/internal/infrastructure/jwt"
)

// Service manages token pairs and the server-side refresh-token registry.
// Access tokens are purely cryptographic; only refresh jtis are recorded so
// they can be revoked and rotated one-time-use.
type Service interface {
	IssuePair(ctx context.Context, userID string) (*domain.TokenPair, error)
	DecodeAccess(tokenStr string) (*jwtinfra.Claims, error)
	DecodeRefresh(tokenStr string) (*jwtinfra.Claims, error)
	AssertRefreshLive(ctx context.Context, claims *jwtinfra.Claims) error
	Revoke(ctx context.Context, claims *jwtinfra.Claims, ensureExists bool) error
	RevokeAll(ctx context.Context, userID string) error
}

type kvStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)
}

type signer interface {
	SignAccess(userID string) (string, time.Time, error)
	SignRefresh(userID string) (token, jti string, expiresAt time.Time, err error)
	Verify(tokenStr, expectedType string) (*jwtinfra.Claims, error)
}

type service struct {
	store kvStore
	jwt   signer
}

type ServiceDeps struct {
	Store       kvStore
	JWTProvider signer
}

func NewService(deps ServiceDeps) Service {
	return &service{store: deps.Store, jwt: deps.JWTProvider}
}

func refreshKey(userID, jti string) string {
	return "auth:rt:" + userID + ":" + jti
}

func (s *service) IssuePair(ctx context.Context, userID string) (*domain.TokenPair, error) {
	access, accessExp, err := s.jwt.SignAccess(userID)
	if err != nil {
		return nil, err
	}
	refresh, jti, refreshExp, err := s.jwt.SignRefresh(userID)
	if err != nil {
		return nil, err
	}

	ttl := time.Until(refreshExp)
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := s.store.Set(ctx, refreshKey(userID, jti), "1", ttl); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		TokenType:             "bearer",
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

func (s *service) DecodeAccess(tokenStr string) (*jwtinfra.Claims, error) {
	return s.jwt.Verify(tokenStr, jwtinfra.TypeAccess)
}

func (s *service) DecodeRefresh(tokenStr string) (*jwtinfra.Claims, error) {
	claims, err := s.jwt.Verify(tokenStr, jwtinfra.TypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("refresh token missing identifier: %w", domain.ErrInvalidToken)
	}
	return claims, nil
}

// AssertRefreshLive fails with ErrTokenRevoked when the token's jti is no
// longer registered, i.e. it was rotated, logged out, or the account was
// deactivated.
func (s *service) AssertRefreshLive(ctx context.Context, claims *jwtinfra.Claims) error {
	exists, err := s.store.Exists(ctx, refreshKey(claims.Subject, claims.ID))
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("refresh token %s: %w", claims.ID, domain.ErrTokenRevoked)
	}
	return nil
}

// Revoke deletes the registered jti. With ensureExists (explicit logout) a
// no-op delete fails with ErrTokenRevoked.
func (s *service) Revoke(ctx context.Context, claims *jwtinfra.Claims, ensureExists bool) error {
	removed, err := s.store.Delete(ctx, refreshKey(claims.Subject, claims.ID))
	if err != nil {
		return err
	}
	if ensureExists && removed == 0 {
		return fmt.Errorf("refresh token %s: %w", claims.ID, domain.ErrTokenRevoked)
	}
	return nil
}

// RevokeAll deletes every refresh jti registered for userID; used on account
// deactivation.
func (s *service) RevokeAll(ctx context.Context, userID string) error {
	keys, err := s.store.ScanPrefix(ctx, "auth:rt:"+userID+":")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.store.Delete(ctx, keys...); err != nil {
		return err
	}
	slog.Info("revoked all refresh tokens", "user_id", userID, "count", len(keys))
	return nil
}
