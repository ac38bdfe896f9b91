// Package alerting delivers operational alerts (permanently undeliverable
// messages, retry exhaustion) to a human. Email via SendGrid in production,
// log-only everywhere else.
package alerting

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/tidynest/selenas/pkg/logging"
)

// Alerter sends one operational alert. Implementations must be safe for
// concurrent use.
type Alerter interface {
	Alert(ctx context.Context, subject, body string) error
}

// EmailAlerter sends alerts through SendGrid.
type EmailAlerter struct {
	client    *sendgrid.Client
	fromName  string
	fromEmail string
	toEmail   string
	logger    *logging.Logger
}

func NewEmailAlerter(apiKey, fromName, fromEmail, toEmail string, logger *logging.Logger) *EmailAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &EmailAlerter{
		client:    sendgrid.NewSendClient(apiKey),
		fromName:  fromName,
		fromEmail: fromEmail,
		toEmail:   toEmail,
		logger:    logger,
	}
}

var _ Alerter = (*EmailAlerter)(nil)

func (a *EmailAlerter) Alert(ctx context.Context, subject, body string) error {
	from := mail.NewEmail(a.fromName, a.fromEmail)
	to := mail.NewEmail("", a.toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, body)

	resp, err := a.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("alerting: send email: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alerting: send email: status %d", resp.StatusCode)
	}
	a.logger.Info("alert email sent", "subject", subject)
	return nil
}

// LogAlerter writes alerts to the log. The default when SendGrid is not
// configured.
type LogAlerter struct {
	logger *logging.Logger
}

func NewLogAlerter(logger *logging.Logger) *LogAlerter {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogAlerter{logger: logger}
}

var _ Alerter = (*LogAlerter)(nil)

func (a *LogAlerter) Alert(_ context.Context, subject, body string) error {
	a.logger.Error("operational alert", "subject", subject, "body", body)
	return nil
}
