package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
)

// SMTPSender implements Sender over an authenticated SMTP connection.
type SMTPSender struct {
	client *gomail.Client
	from   string
}

// NewSMTPSender builds the process-wide SMTP client. Credentials come from
// configuration; the sender address doubles as the From header.
func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	client, err := gomail.NewClient(host,
		gomail.WithPort(port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(username),
		gomail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp client init: %w", err)
	}

	return &SMTPSender{client: client, from: from}, nil
}

// Send delivers one HTML message. The context bounds dialing and delivery.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlBody)

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
