// backend/internal/adapters/out/firestore/recipient_directory_fs.go
package firestore

import (
	"context"
	"errors"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	notifdom "assetmarket/internal/domain/notification"
)

var ErrRecipientDirectoryNotConfigured = errors.New("recipient_directory_fs: not configured")

// RecipientDirectoryFS resolves wallet -> contact data from recipients/{walletAddress}.
type RecipientDirectoryFS struct {
	Client     *firestore.Client
	Collection string
}

func NewRecipientDirectoryFS(client *firestore.Client) *RecipientDirectoryFS {
	return &RecipientDirectoryFS{Client: client, Collection: "recipients"}
}

type recipientDoc struct {
	Email       string `firestore:"email"`
	DeviceToken string `firestore:"deviceToken"`
}

func (d *RecipientDirectoryFS) Lookup(ctx context.Context, walletAddress string) (notifdom.Recipient, error) {
	if d == nil || d.Client == nil {
		return notifdom.Recipient{}, ErrRecipientDirectoryNotConfigured
	}
	wallet := strings.TrimSpace(walletAddress)
	if wallet == "" {
		return notifdom.Recipient{}, notifdom.ErrRecipientRequired
	}
	col := strings.TrimSpace(d.Collection)
	if col == "" {
		col = "recipients"
	}

	snap, err := d.Client.Collection(col).Doc(wallet).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return notifdom.Recipient{}, notifdom.ErrRecipientNotFound
		}
		return notifdom.Recipient{}, err
	}
	var doc recipientDoc
	if err := snap.DataTo(&doc); err != nil {
		return notifdom.Recipient{}, err
	}
	return notifdom.Recipient{
		WalletAddress: wallet,
		Email:         strings.TrimSpace(doc.Email),
		DeviceToken:   strings.TrimSpace(doc.DeviceToken),
	}, nil
}

// Register upserts contact data for a wallet.
func (d *RecipientDirectoryFS) Register(ctx context.Context, r notifdom.Recipient) error {
	if d == nil || d.Client == nil {
		return ErrRecipientDirectoryNotConfigured
	}
	wallet := strings.TrimSpace(r.WalletAddress)
	if wallet == "" {
		return notifdom.ErrRecipientRequired
	}
	col := strings.TrimSpace(d.Collection)
	if col == "" {
		col = "recipients"
	}
	_, err := d.Client.Collection(col).Doc(wallet).Set(ctx, recipientDoc{
		Email:       strings.TrimSpace(r.Email),
		DeviceToken: strings.TrimSpace(r.DeviceToken),
	})
	return err
}
