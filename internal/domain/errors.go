package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInactiveUser            = errors.New("inactive user")
	ErrUserAlreadyExists       = errors.New("user already exists")
	ErrInvalidToken            = errors.New("invalid token")
	ErrTokenRevoked            = errors.New("token revoked")
	ErrInvalidVerificationCode = errors.New("invalid verification code")
	ErrTooManyRequests         = errors.New("too many requests")
	ErrSmsSendFailed           = errors.New("sms send failed")

	// ErrNotFound signals absence from a repository or the ephemeral store.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a storage-layer uniqueness violation.
	ErrConflict   = errors.New("conflict")
	ErrBadRequest = errors.New("bad request")
)
