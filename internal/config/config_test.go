package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "users", cfg.UsersTable)
	assert.Equal(t, 25*time.Hour, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 6, cfg.SMSCodeLength)
	assert.Equal(t, 5*time.Minute, cfg.SMSCodeTTL)
	assert.Equal(t, time.Minute, cfg.SMSResendCooldown)
	assert.Equal(t, 5, cfg.SMSMaxAttempts)
	assert.Equal(t, 20, cfg.SMSDailyLimit)
	assert.Equal(t, 10*time.Minute, cfg.SMSTicketTTL)
	assert.Empty(t, cfg.StaticAccessTokens)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "8080")
	t.Setenv("SMS_CODE_LENGTH", "4")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg := Load()
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, 4, cfg.SMSCodeLength)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("SMS_DAILY_LIMIT_PER_PHONE", "not-a-number")
	cfg := Load()
	assert.Equal(t, 20, cfg.SMSDailyLimit)
}

func TestParseStaticTokens(t *testing.T) {
	assert.Empty(t, parseStaticTokens(""))

	got := parseStaticTokens("tok-1:user-1, tok-2:user-2")
	assert.Equal(t, map[string]string{"tok-1": "user-1", "tok-2": "user-2"}, got)

	// A bare entry maps the token to itself.
	got = parseStaticTokens("opaque-token")
	assert.Equal(t, map[string]string{"opaque-token": "opaque-token"}, got)

	// Entries missing either half are dropped.
	got = parseStaticTokens("tok-1:,:user-2,tok-3:user-3")
	assert.Equal(t, map[string]string{"tok-3": "user-3"}, got)
}
