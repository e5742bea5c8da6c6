package ticket

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/domain"
)

// Service issues and consumes single-use verification tickets. A ticket
// records "this phone was just proven for this scene" so the follow-up action
// (registration, account deletion) can happen moments later without another
// SMS round-trip.
type Service interface {
	Issue(ctx context.Context, scene domain.SmsScene, phone string) (value string, expiresAt time.Time, err error)
	Consume(ctx context.Context, scene domain.SmsScene, phone, value string) error
}

type kvStore interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
}

type service struct {
	store kvStore
	ttl   time.Duration
}

func NewService(cfg *config.Config, store kvStore) Service {
	return &service{store: store, ttl: cfg.SMSTicketTTL}
}

func ticketKey(scene domain.SmsScene, phone, value string) string {
	return "auth:sms:ticket:" + string(scene) + ":" + phone + ":" + value
}

func (s *service) Issue(ctx context.Context, scene domain.SmsScene, phone string) (string, time.Time, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", time.Time{}, err
	}
	value := base64.RawURLEncoding.EncodeToString(b)

	expiresAt := time.Now().UTC().Add(s.ttl)
	if err := s.store.Set(ctx, ticketKey(scene, phone, value), "1", s.ttl); err != nil {
		return "", time.Time{}, err
	}
	return value, expiresAt, nil
}

// Consume atomically deletes the presence key. A delete affecting zero keys
// means the ticket is unknown, expired or already used; all three read the
// same to the caller.
func (s *service) Consume(ctx context.Context, scene domain.SmsScene, phone, value string) error {
	removed, err := s.store.Delete(ctx, ticketKey(scene, phone, value))
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("ticket invalid or already used: %w", domain.ErrInvalidVerificationCode)
	}
	return nil
}
