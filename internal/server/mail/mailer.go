// Package mail delivers transactional messages (welcome, verification OTP,
// password reset OTP) over SMTP. The client is built once at startup and
// shared; services depend on the Sender interface so tests can substitute a
// fake.
package mail

import "context"

// Sender sends a single HTML message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
