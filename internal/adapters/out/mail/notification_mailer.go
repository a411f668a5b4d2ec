// backend/internal/adapters/out/mail/notification_mailer.go
package mail

import (
	"context"
	"strings"

	notifdom "assetmarket/internal/domain/notification"
)

// EmailClient は実際のメール送信クライアント（SendGrid など）を抽象化したインターフェースです。
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

// NotificationMailer delivers marketplace notifications by email.
type NotificationMailer struct {
	client      EmailClient
	fromAddress string
}

func NewNotificationMailer(client EmailClient, fromAddress string) *NotificationMailer {
	return &NotificationMailer{
		client:      client,
		fromAddress: strings.TrimSpace(fromAddress),
	}
}

func (m *NotificationMailer) Name() string { return "mail" }

// Deliver returns ErrChannelUnavailable when the wallet has no email on file.
func (m *NotificationMailer) Deliver(ctx context.Context, to notifdom.Recipient, n notifdom.Notification) error {
	email := strings.TrimSpace(to.Email)
	if email == "" {
		return notifdom.ErrChannelUnavailable
	}

	body := n.Body() + "\n\n-- \nAsset Market"
	return m.client.Send(ctx, m.fromAddress, email, n.Subject(), body)
}
