package domain

import "time"

// SmsScene names the business scenario a verification code belongs to.
// Codes, cooldowns and tickets are all scoped per (scene, phone).
type SmsScene string

const (
	SceneRegister      SmsScene = "register"
	SceneLogin         SmsScene = "login"
	SceneAccountDelete SmsScene = "account_delete"
)

// ValidScene reports whether s is one of the known scenes.
func ValidScene(s SmsScene) bool {
	switch s {
	case SceneRegister, SceneLogin, SceneAccountDelete:
		return true
	}
	return false
}

// TokenPair is the access/refresh pair returned by every successful authentication.
type TokenPair struct {
	TokenType             string    `json:"token_type"`
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// SmsVerification is the result of verifying an SMS code.
// Outcome is "login" (TokenPair set) or "ticket" (VerificationTicket set).
type SmsVerification struct {
	Outcome            string     `json:"outcome"`
	TokenPair          *TokenPair `json:"token_pair,omitempty"`
	VerificationTicket string     `json:"verification_ticket,omitempty"`
	TicketExpiresAt    *time.Time `json:"ticket_expires_at,omitempty"`
}

type RegisterRequest struct {
	Username           string `json:"username" validate:"required,min=3,max=50"`
	Phone              string `json:"phone" validate:"required,min=6,max=20"`
	Password           string `json:"password" validate:"required,min=6,max=128"`
	VerificationTicket string `json:"verification_ticket" validate:"required"`
}

type PasswordLoginRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=100"`
	Password   string `json:"password" validate:"required,min=6,max=128"`
}

type SmsSendRequest struct {
	Phone string   `json:"phone" validate:"required,min=6,max=20"`
	Scene SmsScene `json:"scene" validate:"required"`
}

type SmsVerifyRequest struct {
	Phone string   `json:"phone" validate:"required,min=6,max=20"`
	Code  string   `json:"code" validate:"required,min=4,max=10"`
	Scene SmsScene `json:"scene" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AccountDeleteRequest carries either the current password or a consumed
// account_delete ticket; a blank password counts as absent.
type AccountDeleteRequest struct {
	Password           string `json:"password"`
	VerificationTicket string `json:"verification_ticket"`
}
