// Package otp implements the one-time-code engine: generation, bcrypt
// hashing, resend rate limiting, and validation for the two OTP purposes
// carried on the user record (account verification and password reset).
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/murichu/go-auth-service/internal/common"
	"github.com/murichu/go-auth-service/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// Purpose selects which OTP field group on the user record an operation
// works against.
type Purpose int

const (
	PurposeVerify Purpose = iota
	PurposeReset
)

const (
	// DefaultCooldown is the minimum interval between OTP issuances for the
	// same purpose.
	DefaultCooldown = 3 * time.Minute

	// DefaultTTL is how long an issued OTP stays valid.
	DefaultTTL = 15 * time.Minute

	bcryptCost = 10
)

// RateLimitError reports how long the caller must wait before the next
// issuance. It matches common.ErrRateLimited under errors.Is.
type RateLimitError struct {
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("please wait %d minute(s) before requesting a new OTP", e.WaitMinutes())
}

func (e *RateLimitError) Unwrap() error { return common.ErrRateLimited }

// WaitMinutes returns the remaining wait rounded up to whole minutes.
func (e *RateLimitError) WaitMinutes() int {
	return int((e.Wait + time.Minute - 1) / time.Minute)
}

// Generate returns a 6-digit numeric code drawn uniformly from
// 100000–999999 using a cryptographically secure source.
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Engine issues and validates OTPs against the field groups on a user
// record. It mutates the record in memory only; persisting the record is the
// caller's job.
type Engine struct {
	cooldown time.Duration
	ttl      time.Duration
	now      func() time.Time
}

// NewEngine constructs an engine with the given resend cooldown and OTP
// lifetime.
func NewEngine(cooldown, ttl time.Duration) *Engine {
	return NewEngineWithClock(cooldown, ttl, time.Now)
}

// NewEngineWithClock is NewEngine with an injectable clock for tests.
func NewEngineWithClock(cooldown, ttl time.Duration, now func() time.Time) *Engine {
	return &Engine{cooldown: cooldown, ttl: ttl, now: now}
}

// Issue enforces the resend cooldown, then generates a fresh OTP, stores its
// bcrypt hash and expiry on the record, stamps the last-sent time, and
// returns the plaintext code for out-of-band delivery. The stored hash is
// one-way; the code is never recoverable from the record.
func (e *Engine) Issue(user *models.User, purpose Purpose) (string, error) {
	nowMs := e.now().UnixMilli()

	lastSentAt := user.OtpLastSentAt
	if purpose == PurposeReset {
		lastSentAt = user.ResetOtpLastSentAt
	}
	if lastSentAt > 0 {
		elapsed := time.Duration(nowMs-lastSentAt) * time.Millisecond
		if elapsed < e.cooldown {
			return "", &RateLimitError{Wait: e.cooldown - elapsed}
		}
	}

	code, err := Generate()
	if err != nil {
		return "", fmt.Errorf("otp generation: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("otp hashing: %w", err)
	}

	expireAt := nowMs + e.ttl.Milliseconds()
	switch purpose {
	case PurposeReset:
		user.ResetOtpHash = string(hash)
		user.ResetOtpExpireAt = expireAt
		user.ResetOtpLastSentAt = nowMs
	default:
		user.VerifyOtpHash = string(hash)
		user.VerifyOtpExpireAt = expireAt
		user.OtpLastSentAt = nowMs
	}

	return code, nil
}

// Validate checks a candidate code against the record's stored hash for the
// given purpose. A cleared OTP or a failed hash compare yields
// common.ErrOTPInvalid; a matching hash past its expiry yields
// common.ErrOTPExpired. Clearing the fields on success is the caller's job.
func (e *Engine) Validate(user *models.User, purpose Purpose, candidate string) error {
	hash := user.VerifyOtpHash
	expireAt := user.VerifyOtpExpireAt
	if purpose == PurposeReset {
		hash = user.ResetOtpHash
		expireAt = user.ResetOtpExpireAt
	}

	if hash == "" || candidate == "" {
		return common.ErrOTPInvalid
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)) != nil {
		return common.ErrOTPInvalid
	}
	if expireAt < e.now().UnixMilli() {
		return common.ErrOTPExpired
	}

	return nil
}

// Clear zeroes the hash and expiry pair for the given purpose. A cleared OTP
// can never validate again.
func Clear(user *models.User, purpose Purpose) {
	switch purpose {
	case PurposeReset:
		user.ResetOtpHash = ""
		user.ResetOtpExpireAt = 0
	default:
		user.VerifyOtpHash = ""
		user.VerifyOtpExpireAt = 0
	}
}
