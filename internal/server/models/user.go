package models

import "time"

// User is the single credential record per account. All authentication state
// lives on this record: the password hash, the verification flag, the OTP
// material for both purposes, and the one live session id.
//
// OTP expiry fields are epoch milliseconds; zero means "no OTP set". A hash
// field and its paired expiry are always written and cleared together.
type User struct {
	ID    string
	Email string
	Name  string

	PasswordHash string

	IsAccountVerified bool

	VerifyOtpHash     string
	VerifyOtpExpireAt int64
	OtpLastSentAt     int64

	ResetOtpHash       string
	ResetOtpExpireAt   int64
	ResetOtpLastSentAt int64

	// CurrentSessionID holds the only valid session id for this user, or ""
	// when logged out. A token is valid only while its session id matches.
	CurrentSessionID string

	CreatedAt time.Time
}
