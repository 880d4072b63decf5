package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"appointment-notifier/internal/config"
	"appointment-notifier/internal/model"
)

// Notifier delivers a single plain-text email. A failed delivery is reported
// as a *DeliveryError; Notifiers never retry on their own.
type Notifier interface {
	SendMessage(ctx context.Context, to, subject, body string) error
}

// AppointmentSource is the read-only view of the appointment store
type AppointmentSource interface {
	FetchAllAppointments(ctx context.Context) ([]model.Appointment, error)
}

// NewNotifier builds the Notifier selected by cfg.Provider
func NewNotifier(cfg *config.MailConfig) (Notifier, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderGmail:
		return NewGmailNotifier(cfg)
	case config.ProviderSendGrid:
		return NewSendGridNotifier(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

// buildMessage renders an RFC 5322 text/plain message
func buildMessage(fromName, fromAddress, to, subject, body string, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Name: fromName, Address: fromAddress}})
	h.SetAddressList("To", []*mail.Address{{Address: to}})
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "UTF-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}

	return buf.Bytes(), nil
}
