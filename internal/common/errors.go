// Package common contains shared constants and sentinel errors used across
// the auth service components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")

	// Validation errors.
	ErrMissingFields    = errors.New("missing details")
	ErrInvalidEmail     = errors.New("invalid email format")
	ErrWeakPassword     = errors.New("weak password")
	ErrPasswordMismatch = errors.New("passwords do not match")

	// Credential and token errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("no token provided")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrSessionMismatch    = errors.New("session expired or invalid")

	// OTP lifecycle errors.
	ErrOTPInvalid      = errors.New("invalid otp")
	ErrOTPExpired      = errors.New("otp expired")
	ErrRateLimited     = errors.New("rate limited")
	ErrAlreadyVerified = errors.New("account already verified")

	// Infrastructure errors (generic/internal flow control).
	ErrEmailDelivery = errors.New("failed to send email")
	ErrInternal      = errors.New("internal error")
)
