package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sirupsen/logrus"

	"appointment-notifier/internal/config"
)

// GmailNotifier sends email through the Gmail API
type GmailNotifier struct {
	service     *gmail.Service
	fromName    string
	fromAddress string
}

// tokenRefreshTimeout bounds each OAuth2 token exchange
const tokenRefreshTimeout = 15 * time.Second

// NewGmailNotifier creates a Gmail API notifier authorized by a refresh token
func NewGmailNotifier(cfg *config.MailConfig) (*GmailNotifier, error) {
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: tokenRefreshTimeout})

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailSendScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailNotifier{
		service:     service,
		fromName:    cfg.FromName,
		fromAddress: cfg.FromAddress,
	}, nil
}

// SendMessage sends one email in a single attempt
func (n *GmailNotifier) SendMessage(ctx context.Context, to, subject, body string) error {
	raw, err := buildMessage(n.fromName, n.fromAddress, to, subject, body, time.Now())
	if err != nil {
		return &DeliveryError{Recipient: to, Err: err}
	}

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	sent, err := n.service.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return &DeliveryError{Recipient: to, Err: err}
	}

	logrus.WithFields(logrus.Fields{
		"to":         to,
		"message_id": sent.Id,
	}).Info("Email sent via Gmail API")
	return nil
}

// TestConnection checks that the Gmail credentials are usable
func (n *GmailNotifier) TestConnection(ctx context.Context) error {
	if _, err := n.service.Users.GetProfile("me").Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to test Gmail API connection: %w", err)
	}
	return nil
}
