// Package services contains server-side business logic. This file implements
// AuthService, which handles registration, credential login, email
// verification and password reset via one-time codes, and single-session
// JWT issuance.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/murichu/go-auth-service/internal/common"
	"github.com/murichu/go-auth-service/internal/dbx"
	"github.com/murichu/go-auth-service/internal/server/auth"
	"github.com/murichu/go-auth-service/internal/server/config"
	mailer "github.com/murichu/go-auth-service/internal/server/mail"
	"github.com/murichu/go-auth-service/internal/server/models"
	"github.com/murichu/go-auth-service/internal/server/otp"
	"github.com/murichu/go-auth-service/internal/server/repositories/repomanager"
)

// minPasswordLength applies to registration and password reset.
const minPasswordLength = 10

// Session identifies the authenticated principal extracted from a valid
// token and checked against the stored session id.
type Session struct {
	UserID    string
	SessionID string
}

// Profile is the subset of account state exposed to authenticated clients.
type Profile struct {
	Name              string
	IsAccountVerified bool
}

// AuthService provides the account lifecycle operations:
//   - Register / Login / Logout with a single active session per user
//   - SendVerifyOtp / VerifyEmail for account verification
//   - SendResetOtp / ResetPassword for credential recovery
//   - ValidateToken for request authentication
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	otpEngine                    *otp.Engine
	mailer                       mailer.Sender
	jwtSecret                    []byte
	sessionTokenValidityDuration time.Duration
	now                          func() time.Time
}

// NewAuthService constructs an AuthService using repositories, the OTP
// engine, a mail sender, and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, engine *otp.Engine, sender mailer.Sender, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		otpEngine:                    engine,
		mailer:                       sender,
		jwtSecret:                    []byte(cfg.SecretKey),
		sessionTokenValidityDuration: cfg.SessionTokenValidityDuration,
		now:                          time.Now,
	}
}

// Register creates a new unverified account, opens its first session, and
// sends a welcome email. The account and session survive a mail failure;
// in that case the minted token is returned together with
// common.ErrEmailDelivery so the caller can still hand out the session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (string, error) {
	if name == "" || email == "" || password == "" {
		return "", common.ErrMissingFields
	}
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return "", common.ErrInvalidEmail
	}
	if !isStrongPassword(password) {
		return "", common.ErrWeakPassword
	}

	repo := s.repomanager.Users(s.db)
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return "", common.ErrConflict
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("error checking for existing user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", common.ErrInternal
	}

	user := &models.User{
		ID:               uuid.NewString(),
		Email:            email,
		Name:             name,
		PasswordHash:     hash,
		CurrentSessionID: auth.NewSessionID(),
		CreatedAt:        s.now(),
	}
	if _, err := repo.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return "", common.ErrConflict
		}
		return "", fmt.Errorf("error creating user: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, user.CurrentSessionID, s.jwtSecret, s.sessionTokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}

	body, err := mailer.WelcomeBody(user.Name, user.Email)
	if err != nil {
		return token, common.ErrEmailDelivery
	}
	if err := s.mailer.Send(ctx, user.Email, mailer.SubjectWelcome, body); err != nil {
		return token, common.ErrEmailDelivery
	}

	return token, nil
}

// Login verifies credentials and rotates the session id, which invalidates
// any token minted for a previous session. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", common.ErrMissingFields
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrInvalidCredentials
		}
		return "", fmt.Errorf("error searching user: %w", err)
	}
	if !auth.CheckPasswordHash(user.PasswordHash, password) {
		return "", common.ErrInvalidCredentials
	}

	user.CurrentSessionID = auth.NewSessionID()
	if err := repo.Update(ctx, user); err != nil {
		return "", fmt.Errorf("error rotating session: %w", err)
	}

	token, err := auth.GenerateToken(user.ID, user.CurrentSessionID, s.jwtSecret, s.sessionTokenValidityDuration)
	if err != nil {
		return "", common.ErrInternal
	}
	return token, nil
}

// Logout clears the stored session id so the presented token, and any other
// token for that session, stops validating.
func (s *AuthService) Logout(ctx context.Context, session Session) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("error searching user: %w", err)
	}
	if user.CurrentSessionID != "" && user.CurrentSessionID != session.SessionID {
		return common.ErrSessionMismatch
	}

	user.CurrentSessionID = ""
	if err := repo.Update(ctx, user); err != nil {
		return fmt.Errorf("error clearing session: %w", err)
	}
	return nil
}

// ValidateToken parses and verifies a session token, then checks that the
// embedded session id still matches the one stored for the user. A stored
// empty session id (logged out everywhere) does not block validation; the
// mismatch case does.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (Session, error) {
	userID, sessionID, err := auth.ParseToken(tokenString, s.jwtSecret)
	if err != nil {
		return Session{}, err
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return Session{}, common.ErrNotFound
		}
		return Session{}, fmt.Errorf("error searching user: %w", err)
	}
	if user.CurrentSessionID != "" && user.CurrentSessionID != sessionID {
		return Session{}, common.ErrSessionMismatch
	}

	return Session{UserID: userID, SessionID: sessionID}, nil
}

// SendVerifyOtp issues a verification code for an unverified account and
// emails it. The code is persisted before the send, so a mail failure does
// not roll back the cooldown stamp.
func (s *AuthService) SendVerifyOtp(ctx context.Context, userID string) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("error searching user: %w", err)
	}
	if user.IsAccountVerified {
		return common.ErrAlreadyVerified
	}

	code, err := s.otpEngine.Issue(user, otp.PurposeVerify)
	if err != nil {
		return err
	}
	if err := repo.Update(ctx, user); err != nil {
		return fmt.Errorf("error storing otp: %w", err)
	}

	body, err := mailer.VerifyOTPBody(user.Email, code)
	if err != nil {
		return common.ErrEmailDelivery
	}
	if err := s.mailer.Send(ctx, user.Email, mailer.SubjectVerifyOTP, body); err != nil {
		return common.ErrEmailDelivery
	}
	return nil
}

// VerifyEmail checks the submitted code and, on success, marks the account
// verified and consumes the code so it cannot be replayed.
func (s *AuthService) VerifyEmail(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return common.ErrMissingFields
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		user, err := repo.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrNotFound
			}
			return fmt.Errorf("error searching user: %w", err)
		}

		if err := s.otpEngine.Validate(user, otp.PurposeVerify, code); err != nil {
			return err
		}

		user.IsAccountVerified = true
		otp.Clear(user, otp.PurposeVerify)
		if err := repo.Update(ctx, user); err != nil {
			return fmt.Errorf("error storing verification: %w", err)
		}
		return nil
	})
}

// SendResetOtp issues a password reset code for the account with the given
// email and sends it there. An unknown email yields common.ErrNotFound.
func (s *AuthService) SendResetOtp(ctx context.Context, email string) error {
	if email == "" {
		return common.ErrMissingFields
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return fmt.Errorf("error searching user: %w", err)
	}

	code, err := s.otpEngine.Issue(user, otp.PurposeReset)
	if err != nil {
		return err
	}
	if err := repo.Update(ctx, user); err != nil {
		return fmt.Errorf("error storing otp: %w", err)
	}

	body, err := mailer.ResetOTPBody(user.Email, code)
	if err != nil {
		return common.ErrEmailDelivery
	}
	if err := s.mailer.Send(ctx, user.Email, mailer.SubjectPasswordReset, body); err != nil {
		return common.ErrEmailDelivery
	}
	return nil
}

// ResetPassword validates the reset code and replaces the password hash in
// one transaction, consuming the code. The new password must satisfy the
// same policy as registration. Existing sessions stay valid; only the
// credential changes.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword, confirmPassword string) error {
	if email == "" || code == "" || newPassword == "" || confirmPassword == "" {
		return common.ErrMissingFields
	}
	if newPassword != confirmPassword {
		return common.ErrPasswordMismatch
	}
	if !isStrongPassword(newPassword) {
		return common.ErrWeakPassword
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)
		user, err := repo.GetByEmail(ctx, normalizeEmail(email))
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrNotFound
			}
			return fmt.Errorf("error searching user: %w", err)
		}

		if err := s.otpEngine.Validate(user, otp.PurposeReset, code); err != nil {
			return err
		}

		hash, err := auth.HashPassword(newPassword)
		if err != nil {
			return common.ErrInternal
		}
		user.PasswordHash = hash
		otp.Clear(user, otp.PurposeReset)
		if err := repo.Update(ctx, user); err != nil {
			return fmt.Errorf("error storing password: %w", err)
		}
		return nil
	})
}

// GetProfile returns the display data for an authenticated user.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return &Profile{Name: user.Name, IsAccountVerified: user.IsAccountVerified}, nil
}

// --- helpers below ---

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// isStrongPassword requires length and a mix of character classes, matching
// the policy enforced at registration.
func isStrongPassword(password string) bool {
	if len(password) < minPasswordLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}
