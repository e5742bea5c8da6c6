package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	UsersTable     string
	SNSRegion      string

	JWTSecretKey string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	// StaticAccessTokens maps literal token values to user ids.
	// Honoured for access tokens only; empty outside test/ops bootstrap.
	StaticAccessTokens map[string]string

	SMSCodeLength      int
	SMSCodeTTL         time.Duration
	SMSResendCooldown  time.Duration
	SMSMaxAttempts     int
	SMSDailyLimit      int
	SMSTicketTTL       time.Duration
	SMSAccessKeyID     string
	SMSAccessKeySecret string

	AllowedOrigins []string // CORS allowed origins
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		UsersTable:     getEnv("DYNAMO_TABLE_USERS", "users"),
		SNSRegion:      getEnv("SNS_REGION", "us-east-1"),

		JWTSecretKey:       getEnv("JWT_SECRET_KEY", ""),
		AccessTTL:          time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 1500)) * time.Minute,
		RefreshTTL:         time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRE_MINUTES", 10080)) * time.Minute,
		StaticAccessTokens: parseStaticTokens(getEnv("STATIC_ACCESS_TOKENS", "")),

		SMSCodeLength:     getEnvInt("SMS_CODE_LENGTH", 6),
		SMSCodeTTL:        time.Duration(getEnvInt("SMS_CODE_TTL_SECONDS", 300)) * time.Second,
		SMSResendCooldown: time.Duration(getEnvInt("SMS_RESEND_COOLDOWN_SECONDS", 60)) * time.Second,
		SMSMaxAttempts:    getEnvInt("SMS_MAX_ATTEMPTS", 5),
		SMSDailyLimit:     getEnvInt("SMS_DAILY_LIMIT_PER_PHONE", 20),
		SMSTicketTTL:      time.Duration(getEnvInt("SMS_TICKET_TTL_SECONDS", 600)) * time.Second,

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

// parseStaticTokens parses "token:user_id,token2:user_id2". A bare entry with
// no colon maps the token to itself.
func parseStaticTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if token, userID, ok := strings.Cut(part, ":"); ok {
			if token != "" && userID != "" {
				tokens[token] = userID
			}
			continue
		}
		tokens[part] = part
	}
	return tokens
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
