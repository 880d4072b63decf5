package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/config"
)

// SendGridNotifier sends email through the SendGrid v3 API
type SendGridNotifier struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
}

// NewSendGridNotifier creates a notifier that talks to the public SendGrid API
func NewSendGridNotifier(cfg *config.MailConfig) *SendGridNotifier {
	return newSendGridNotifier(cfg, "")
}

// newSendGridNotifier targets host instead of the default API host when set
func newSendGridNotifier(cfg *config.MailConfig, host string) *SendGridNotifier {
	request := sendgrid.GetRequest(cfg.SendGridAPIKey, "/v3/mail/send", host)
	request.Method = "POST"

	return &SendGridNotifier{
		client:      &sendgrid.Client{Request: request},
		fromName:    cfg.FromName,
		fromAddress: cfg.FromAddress,
	}
}

// SendMessage sends one email in a single attempt
func (n *SendGridNotifier) SendMessage(ctx context.Context, to, subject, body string) error {
	from := sgmail.NewEmail(n.fromName, n.fromAddress)
	recipient := sgmail.NewEmail("", to)
	message := sgmail.NewSingleEmail(from, subject, recipient, body, "")

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return &DeliveryError{Recipient: to, Err: err}
	}
	if response.StatusCode >= 400 {
		return &DeliveryError{
			Recipient: to,
			Err:       fmt.Errorf("sendgrid responded with status %d: %s", response.StatusCode, response.Body),
		}
	}

	logrus.WithField("to", to).Info("Email sent via SendGrid")
	return nil
}
