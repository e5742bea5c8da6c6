package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/go-auth-sms/internal/application/smscode"
	"github.com/go-auth-sms/internal/application/ticket"
	"github.com/go-auth-sms/internal/application/token"
	"github.com/go-auth-sms/internal/domain"
	"github.com/go-auth-sms/internal/pkg/id"
	"github.com/go-auth-sms/internal/pkg/password"
)

// Service composes the credential, code, ticket and token services into the
// public authentication workflows. It holds no mutable state across requests;
// everything ephemeral lives in the store behind the sub-services.
type Service interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenPair, error)
	LoginWithPassword(ctx context.Context, req domain.PasswordLoginRequest) (*domain.TokenPair, error)
	SendSMSCode(ctx context.Context, req domain.SmsSendRequest) error
	VerifySMSCode(ctx context.Context, req domain.SmsVerifyRequest) (*domain.SmsVerification, error)
	Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error)
	Logout(ctx context.Context, req domain.LogoutRequest, currentUserID string) error
	GetProfile(ctx context.Context, userID string) (*domain.User, error)
	DeleteAccount(ctx context.Context, req domain.AccountDeleteRequest, userID string) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Reactivate(ctx context.Context, userID, oldUsername, username, passwordHash string, phoneVerifiedAt time.Time) error
	SetActive(ctx context.Context, userID string, active bool) error
}

type service struct {
	users   userStore
	tokens  token.Service
	codes   smscode.Service
	tickets ticket.Service
}

type ServiceDeps struct {
	UserRepo  userStore
	TokenSvc  token.Service
	CodeSvc   smscode.Service
	TicketSvc ticket.Service
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:   deps.UserRepo,
		tokens:  deps.TokenSvc,
		codes:   deps.CodeSvc,
		tickets: deps.TicketSvc,
	}
}

// Register creates (or reactivates) a user whose phone ownership was proven
// by a register-scene ticket, then issues a token pair.
func (s *service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.TokenPair, error) {
	phoneUser, err := s.ensurePhoneAvailable(ctx, req.Phone)
	if err != nil {
		return nil, err
	}
	// An inactive owner of the phone may reclaim their old username.
	allowedUserID := ""
	if phoneUser != nil {
		allowedUserID = phoneUser.UserID
	}
	if err := s.ensureUsernameAvailable(ctx, req.Username, allowedUserID); err != nil {
		return nil, err
	}
	if err := assertPasswordComplexity(req.Password); err != nil {
		return nil, err
	}
	if err := s.tickets.Consume(ctx, domain.SceneRegister, req.Phone, req.VerificationTicket); err != nil {
		return nil, err
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if phoneUser != nil {
		if err := s.users.Reactivate(ctx, phoneUser.UserID, phoneUser.Username, req.Username, hash, now); err != nil {
			return nil, conflictToExists(err)
		}
		return s.tokens.IssuePair(ctx, phoneUser.UserID)
	}

	user := &domain.User{
		UserID:          id.New(),
		Username:        req.Username,
		Phone:           req.Phone,
		PasswordHash:    hash,
		IsActive:        true,
		PhoneVerifiedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, conflictToExists(err)
	}
	return s.tokens.IssuePair(ctx, user.UserID)
}

// LoginWithPassword resolves the identifier as username or phone. Unknown
// identifier and wrong password produce the identical error.
func (s *service) LoginWithPassword(ctx context.Context, req domain.PasswordLoginRequest) (*domain.TokenPair, error) {
	user, err := s.users.GetByIdentifier(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown identifier: %w", domain.ErrInvalidCredentials)
		}
		return nil, err
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, fmt.Errorf("password mismatch: %w", domain.ErrInvalidCredentials)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account deactivated: %w", domain.ErrInactiveUser)
	}
	return s.tokens.IssuePair(ctx, user.UserID)
}

// SendSMSCode gates the send by scene, then delegates to the code service.
func (s *service) SendSMSCode(ctx context.Context, req domain.SmsSendRequest) error {
	if !domain.ValidScene(req.Scene) {
		return fmt.Errorf("unknown scene %q: %w", req.Scene, domain.ErrBadRequest)
	}
	if req.Scene == domain.SceneRegister {
		if _, err := s.ensurePhoneAvailable(ctx, req.Phone); err != nil {
			return err
		}
	} else {
		if _, err := s.requireActiveUserByPhone(ctx, req.Phone); err != nil {
			return err
		}
	}
	return s.codes.Send(ctx, req.Scene, req.Phone)
}

// VerifySMSCode checks the code, then branches by scene: login issues a pair
// directly, register and account_delete hand back a single-use ticket.
func (s *service) VerifySMSCode(ctx context.Context, req domain.SmsVerifyRequest) (*domain.SmsVerification, error) {
	if !domain.ValidScene(req.Scene) {
		return nil, fmt.Errorf("unknown scene %q: %w", req.Scene, domain.ErrBadRequest)
	}
	if err := s.codes.Verify(ctx, req.Scene, req.Phone, req.Code); err != nil {
		return nil, err
	}

	switch req.Scene {
	case domain.SceneLogin:
		user, err := s.requireActiveUserByPhone(ctx, req.Phone)
		if err != nil {
			return nil, err
		}
		pair, err := s.tokens.IssuePair(ctx, user.UserID)
		if err != nil {
			return nil, err
		}
		return &domain.SmsVerification{Outcome: "login", TokenPair: pair}, nil

	case domain.SceneRegister:
		if _, err := s.ensurePhoneAvailable(ctx, req.Phone); err != nil {
			return nil, err
		}

	default: // account delete requires an existing active user
		if _, err := s.requireActiveUserByPhone(ctx, req.Phone); err != nil {
			return nil, err
		}
	}

	value, expiresAt, err := s.tickets.Issue(ctx, req.Scene, req.Phone)
	if err != nil {
		return nil, err
	}
	return &domain.SmsVerification{
		Outcome:            "ticket",
		VerificationTicket: value,
		TicketExpiresAt:    &expiresAt,
	}, nil
}

// Refresh rotates one-time refresh tokens: the presented jti is revoked
// before the replacement pair is issued, so a token can never be replayed.
func (s *service) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.TokenPair, error) {
	claims, err := s.tokens.DecodeRefresh(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.AssertRefreshLive(ctx, claims); err != nil {
		return nil, err
	}
	if err := s.tokens.Revoke(ctx, claims, false); err != nil {
		return nil, err
	}
	return s.tokens.IssuePair(ctx, claims.Subject)
}

func (s *service) Logout(ctx context.Context, req domain.LogoutRequest, currentUserID string) error {
	claims, err := s.tokens.DecodeRefresh(req.RefreshToken)
	if err != nil {
		return err
	}
	if claims.Subject != currentUserID {
		return fmt.Errorf("refresh token does not belong to caller: %w", domain.ErrInvalidToken)
	}
	return s.tokens.Revoke(ctx, claims, true)
}

func (s *service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("unknown user: %w", domain.ErrInvalidCredentials)
		}
		return nil, err
	}
	return user, nil
}

// DeleteAccount deactivates the caller's account after a password check or an
// account_delete ticket, then revokes every live refresh token. Calling it on
// an already-inactive account is a silent no-op.
func (s *service) DeleteAccount(ctx context.Context, req domain.AccountDeleteRequest, userID string) error {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("unknown user: %w", domain.ErrInvalidCredentials)
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	if req.Password != "" {
		if !password.Verify(req.Password, user.PasswordHash) {
			return fmt.Errorf("password mismatch: %w", domain.ErrInvalidCredentials)
		}
	} else {
		if req.VerificationTicket == "" {
			return fmt.Errorf("password or ticket required: %w", domain.ErrInvalidVerificationCode)
		}
		if err := s.tickets.Consume(ctx, domain.SceneAccountDelete, user.Phone, req.VerificationTicket); err != nil {
			return err
		}
	}

	if err := s.users.SetActive(ctx, user.UserID, false); err != nil {
		return err
	}
	return s.tokens.RevokeAll(ctx, user.UserID)
}

// ensurePhoneAvailable fails when an active user owns the phone. It returns
// the inactive owner (if any) so registration can reactivate that row.
func (s *service) ensurePhoneAvailable(ctx context.Context, phone string) (*domain.User, error) {
	existing, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if existing.IsActive {
		return nil, fmt.Errorf("phone already registered: %w", domain.ErrUserAlreadyExists)
	}
	return existing, nil
}

// ensureUsernameAvailable allows an inactive user (allowedUserID) to reuse
// their own username during reactivation.
func (s *service) ensureUsernameAvailable(ctx context.Context, username, allowedUserID string) error {
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if existing.UserID != allowedUserID {
		return fmt.Errorf("username taken: %w", domain.ErrUserAlreadyExists)
	}
	return nil
}

func (s *service) requireActiveUserByPhone(ctx context.Context, phone string) (*domain.User, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("phone not registered: %w", domain.ErrInvalidCredentials)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("account deactivated: %w", domain.ErrInactiveUser)
	}
	return user, nil
}

// assertPasswordComplexity requires at least 6 characters, a letter or digit,
// and a symbol.
func assertPasswordComplexity(pwd string) error {
	if len(pwd) < 6 {
		return fmt.Errorf("password too short: %w", domain.ErrInvalidCredentials)
	}
	hasAlnum, hasSymbol := false, false
	for _, ch := range pwd {
		switch {
		case unicode.IsLetter(ch) || unicode.IsDigit(ch):
			hasAlnum = true
		default:
			hasSymbol = true
		}
	}
	if !hasAlnum || !hasSymbol {
		return fmt.Errorf("password needs a letter or digit and a symbol: %w", domain.ErrInvalidCredentials)
	}
	return nil
}

// conflictToExists converts a storage-layer uniqueness race (two concurrent
// registrations passing the pre-checks) into the caller-visible kind.
func conflictToExists(err error) error {
	if errors.Is(err, domain.ErrConflict) {
		return fmt.Errorf("uniqueness race: %w", domain.ErrUserAlreadyExists)
	}
	return err
}
