// backend/internal/adapters/out/push/fcm_client.go
package push

import (
	"context"
	"fmt"
	"log"
	"strings"

	"firebase.google.com/go/v4/messaging"

	notifdom "assetmarket/internal/domain/notification"
)

// MessageSender は *messaging.Client の Send 部分だけを切り出したものです。
type MessageSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMClient delivers notifications to the device registered for a wallet.
type FCMClient struct {
	sender MessageSender
}

func NewFCMClient(sender MessageSender) *FCMClient {
	return &FCMClient{sender: sender}
}

func (c *FCMClient) Name() string { return "push" }

func (c *FCMClient) Deliver(ctx context.Context, to notifdom.Recipient, n notifdom.Notification) error {
	token := strings.TrimSpace(to.DeviceToken)
	if token == "" {
		return notifdom.ErrChannelUnavailable
	}
	if c == nil || c.sender == nil {
		return fmt.Errorf("push: messaging client is nil")
	}

	data := make(map[string]string, len(n.Payload)+1)
	for k, v := range n.Payload {
		data[k] = v
	}
	data["kind"] = string(n.Kind)

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: n.Subject(),
			Body:  n.Body(),
		},
		Data: data,
	}

	id, err := c.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("push: fcm send: %w", err)
	}
	log.Printf("[push] sent kind=%s wallet=%s messageId=%s", n.Kind, to.WalletAddress, id)
	return nil
}
