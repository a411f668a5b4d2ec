// backend/internal/domain/notification/entity.go
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindBidReceived Kind = "bid_received"
	KindAssetSold   Kind = "asset_sold"
)

// Notification is one addressed, best-effort message.
// Recipient is a wallet address; channels resolve it to an email or device.
type Notification struct {
	Kind      Kind
	Recipient string
	Payload   map[string]string
	CreatedAt time.Time
}

func New(kind Kind, recipient string, payload map[string]string, now time.Time) Notification {
	p := make(map[string]string, len(payload))
	for k, v := range payload {
		p[k] = strings.TrimSpace(v)
	}
	return Notification{
		Kind:      kind,
		Recipient: strings.TrimSpace(recipient),
		Payload:   p,
		CreatedAt: now.UTC(),
	}
}

func (n Notification) Validate() error {
	if n.Kind == "" {
		return ErrKindRequired
	}
	if n.Recipient == "" {
		return ErrRecipientRequired
	}
	return nil
}

// Subject / Body render the human-readable message shared by mail and push.
func (n Notification) Subject() string {
	switch n.Kind {
	case KindBidReceived:
		return fmt.Sprintf("New bid on %s", n.assetLabel())
	case KindAssetSold:
		return fmt.Sprintf("%s has been sold", n.assetLabel())
	default:
		return "Marketplace update"
	}
}

func (n Notification) Body() string {
	switch n.Kind {
	case KindBidReceived:
		return fmt.Sprintf(
			"A new bid of %s ETH was placed on %s by %s.",
			n.Payload["amountEth"], n.assetLabel(), n.Payload["bidder"],
		)
	case KindAssetSold:
		return fmt.Sprintf(
			"%s was purchased by %s for %s ETH.\n\nSettlement reference: %s",
			n.assetLabel(), n.Payload["buyer"], n.Payload["priceEth"], n.Payload["settlementReference"],
		)
	default:
		return ""
	}
}

func (n Notification) assetLabel() string {
	if name := n.Payload["assetName"]; name != "" {
		return name
	}
	if id := n.Payload["assetId"]; id != "" {
		return "asset " + id
	}
	return "your asset"
}

// Recipient is the contact data registered for a wallet.
type Recipient struct {
	WalletAddress string
	Email         string
	DeviceToken   string
}

// RecipientDirectory resolves a wallet address to contact data.
type RecipientDirectory interface {
	Lookup(ctx context.Context, walletAddress string) (Recipient, error)
}

var (
	ErrKindRequired       = errors.New("notification: kind is required")
	ErrRecipientRequired  = errors.New("notification: recipient is required")
	ErrRecipientNotFound  = errors.New("notification: recipient not found")
	ErrChannelUnavailable = errors.New("notification: channel has no address for recipient")
)
