// Package mailer renders and delivers account emails.
package mailer

import (
	"context"
	"fmt"
	"strings"

	"maternity-companion-server/internal/config"

	"go.uber.org/zap"
)

const (
	TemplateVerifyEmail   = "verify-email"
	TemplatePasswordReset = "password-reset"
)

// Sender delivers a single email.
type Sender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template is a message with {{key}} placeholders.
type Template struct {
	Subject string
	Body    string
}

var templates = map[string]Template{
	TemplateVerifyEmail: {
		Subject: "Verify your email address",
		Body: "Hi {{name}},\n\nWelcome! Confirm your email address by opening this link:\n{{link}}\n\n" +
			"The link expires in {{expires}}. If you did not create an account you can ignore this email.",
	},
	TemplatePasswordReset: {
		Subject: "Reset your password",
		Body: "Hi {{name}},\n\nWe received a request to reset your password. Choose a new one here:\n{{link}}\n\n" +
			"The link expires in {{expires}}. If you did not ask for this, your password is unchanged.",
	},
}

// Render fills a template. Placeholders missing from data are left as-is.
func Render(templateID string, data map[string]string) (subject, body string, err error) {
	t, ok := templates[templateID]
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}
	subject, body = t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// LogSender writes emails to the log instead of delivering them.
type LogSender struct {
	from   string
	logger *zap.Logger
}

// SendEmail logs the envelope at info and the body at debug.
func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info("Email sent to log transport",
		zap.String("from", s.from),
		zap.String("to", to),
		zap.String("subject", subject),
	)
	s.logger.Debug("Email body", zap.String("to", to), zap.String("body", body))
	return nil
}

// New returns the sender for cfg.Transport. Only the log transport is built in.
func New(cfg config.MailerConfig, logger *zap.Logger) (Sender, error) {
	switch cfg.Transport {
	case "", "log":
		return &LogSender{from: cfg.DefaultFrom, logger: logger}, nil
	default:
		return nil, fmt.Errorf("unsupported MAILER_TRANSPORT %q", cfg.Transport)
	}
}
