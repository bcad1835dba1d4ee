package core

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/example/subsmarket/pkg/mailer"
)

// MailSender is satisfied by *mailer.Mailer.
type MailSender interface {
	Send(recipient, subject, body string) error
}

type mailAlerter struct {
	mail   MailSender
	to     string
	logger *zap.Logger
}

// NewMailAlerter e-mails alerts to the operator address. Delivery problems are
// logged, never returned, so an alert cannot break the flow that raised it.
func NewMailAlerter(mail MailSender, to string, logger *zap.Logger) Alerter {
	return &mailAlerter{mail: mail, to: to, logger: logger}
}

func (a *mailAlerter) Alert(_ context.Context, subject, body string) {
	a.logger.Warn("Operator alert", zap.String("subject", subject), zap.String("body", body))
	if a.mail == nil || a.to == "" {
		return
	}
	if err := a.mail.Send(a.to, "[subsmarket] "+subject, body); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			a.logger.Debug("Alert e-mail skipped, SMTP not configured")
			return
		}
		a.logger.Error("Failed to e-mail operator alert", zap.Error(err))
	}
}
