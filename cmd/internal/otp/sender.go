package otp

import (
	"context"
	"log/slog"
)

// Sender delivers a one-time code to an email address.
// Real SMTP/provider integrations live outside this repo.
type Sender interface {
	SendCode(ctx context.Context, email, code string) error
}

// NoopSender discards codes (tests).
type NoopSender struct{}

// SendCode implements Sender.
func (NoopSender) SendCode(_ context.Context, _, _ string) error { return nil }

// LogSender writes codes to the log. Dev use only.
type LogSender struct {
	Log *slog.Logger
}

// SendCode implements Sender.
func (s LogSender) SendCode(_ context.Context, email, code string) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("otp.mail.dev", "email", email, "code", code)
	return nil
}
