package smscode

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/go-auth-sms/internal/config"
	"github.com/go-auth-sms/internal/domain"
)

// Service runs the per-(scene, phone) verification-code state machine:
// issue with cooldown and daily-ceiling checks, bounded-attempt verification,
// consume-once on success. All state lives in the ephemeral store under
// code/cooldown/daily keys with their own TTLs.
type Service interface {
	Send(ctx context.Context, scene domain.SmsScene, phone string) error
	Verify(ctx context.Context, scene domain.SmsScene, phone, code string) error
}

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

type smsSender interface {
	SendCode(ctx context.Context, phone, code string) error
}

// codeRecord is the single serialized shape shared by the writer (Send) and
// the reader (Verify); nothing else touches the code key's value.
type codeRecord struct {
	Code     string `json:"code"`
	Attempts int    `json:"attempts"`
}

type service struct {
	store       kvStore
	sender      smsSender
	codeLength  int
	codeTTL     time.Duration
	cooldown    time.Duration
	maxAttempts int
	dailyLimit  int
}

type ServiceDeps struct {
	Store  kvStore
	Sender smsSender
}

func NewService(cfg *config.Config, deps ServiceDeps) Service {
	return &service{
		store:       deps.Store,
		sender:      deps.Sender,
		codeLength:  cfg.SMSCodeLength,
		codeTTL:     cfg.SMSCodeTTL,
		cooldown:    cfg.SMSResendCooldown,
		maxAttempts: cfg.SMSMaxAttempts,
		dailyLimit:  cfg.SMSDailyLimit,
	}
}

func codeKey(scene domain.SmsScene, phone string) string {
	return "auth:sms:code:" + string(scene) + ":" + phone
}

func cooldownKey(scene domain.SmsScene, phone string) string {
	return "auth:sms:cooldown:" + string(scene) + ":" + phone
}

func dailyKey(scene domain.SmsScene, phone string, now time.Time) string {
	return "auth:sms:daily:" + string(scene) + ":" + phone + ":" + now.UTC().Format("20060102")
}

// Send issues a fresh code for (scene, phone). Rate limits are checked before
// anything is generated, so a blocked attempt consumes no code and no quota.
// The cooldown marker and daily counter are only touched after the SMS
// actually went out.
func (s *service) Send(ctx context.Context, scene domain.SmsScene, phone string) error {
	if s.sender == nil {
		return fmt.Errorf("sms transport not configured: %w", domain.ErrSmsSendFailed)
	}
	if err := s.enforceLimits(ctx, scene, phone); err != nil {
		return err
	}

	code, err := s.generateCode()
	if err != nil {
		return err
	}
	record, err := json.Marshal(codeRecord{Code: code, Attempts: 0})
	if err != nil {
		return err
	}
	key := codeKey(scene, phone)
	if err := s.store.Set(ctx, key, string(record), s.codeTTL); err != nil {
		return err
	}

	if err := s.sender.SendCode(ctx, phone, code); err != nil {
		// No cooldown should survive a failed delivery.
		if _, delErr := s.store.Delete(ctx, key); delErr != nil {
			slog.Warn("failed to clean up code after send failure", "scene", scene, "err", delErr)
		}
		return fmt.Errorf("deliver code to %s: %w", phone, domain.ErrSmsSendFailed)
	}

	if err := s.store.Set(ctx, cooldownKey(scene, phone), "1", s.cooldown); err != nil {
		return err
	}
	return s.incrementDailyCount(ctx, scene, phone)
}

// Verify compares code against the stored record. A missing, expired or
// corrupt record reads the same as a wrong code so callers cannot probe
// whether a code was ever sent.
func (s *service) Verify(ctx context.Context, scene domain.SmsScene, phone, code string) error {
	key := codeKey(scene, phone)
	record, ok := s.loadRecord(ctx, key)
	if !ok {
		return fmt.Errorf("no code for scene %s: %w", scene, domain.ErrInvalidVerificationCode)
	}

	if code != record.Code {
		s.recordFailedAttempt(ctx, key, record)
		return fmt.Errorf("code mismatch: %w", domain.ErrInvalidVerificationCode)
	}

	// Delete-and-check so two concurrent verifies cannot both succeed.
	removed, err := s.store.Delete(ctx, key)
	if err != nil {
		return err
	}
	if removed == 0 {
		return fmt.Errorf("code already consumed: %w", domain.ErrInvalidVerificationCode)
	}
	return nil
}

func (s *service) enforceLimits(ctx context.Context, scene domain.SmsScene, phone string) error {
	blocked, err := s.store.Exists(ctx, cooldownKey(scene, phone))
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("resend cooldown active: %w", domain.ErrTooManyRequests)
	}

	raw, err := s.store.Get(ctx, dailyKey(scene, phone, time.Now()))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if raw != "" {
		if count, convErr := strconv.Atoi(raw); convErr == nil && count >= s.dailyLimit {
			return fmt.Errorf("daily send limit reached: %w", domain.ErrTooManyRequests)
		}
	}
	return nil
}

func (s *service) incrementDailyCount(ctx context.Context, scene domain.SmsScene, phone string) error {
	key := dailyKey(scene, phone, time.Now())
	count, err := s.store.Incr(ctx, key)
	if err != nil {
		return err
	}
	if count == 1 {
		return s.store.Expire(ctx, key, secondsUntilEndOfDay(time.Now()))
	}
	return nil
}

// loadRecord treats any store error or malformed payload as "record absent";
// a corrupted entry degrades to "request a new code" rather than a fault.
func (s *service) loadRecord(ctx context.Context, key string) (*codeRecord, bool) {
	raw, err := s.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Warn("code record read failed", "err", err)
		}
		return nil, false
	}
	var record codeRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil || record.Code == "" {
		slog.Warn("discarding malformed code record", "key", key)
		return nil, false
	}
	return &record, true
}

// recordFailedAttempt bumps the attempt counter preserving the record's
// remaining TTL; at the ceiling the record is purged, forcing a fresh send.
func (s *service) recordFailedAttempt(ctx context.Context, key string, record *codeRecord) {
	record.Attempts++
	if record.Attempts >= s.maxAttempts {
		if _, err := s.store.Delete(ctx, key); err != nil {
			slog.Warn("failed to purge code at attempt ceiling", "err", err)
		}
		return
	}

	remaining, err := s.store.TTL(ctx, key)
	if err != nil || remaining <= 0 {
		remaining = s.codeTTL
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.store.Set(ctx, key, string(raw), remaining); err != nil {
		slog.Warn("failed to persist attempt counter", "err", err)
	}
}

func (s *service) generateCode() (string, error) {
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.codeLength)), nil)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", s.codeLength, n), nil
}

func secondsUntilEndOfDay(now time.Time) time.Duration {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	d := midnight.Sub(now)
	if d < time.Second {
		d = time.Second
	}
	return d
}
