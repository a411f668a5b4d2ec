// backend/internal/adapters/out/db/recipient_directory_sql.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbcommon "assetmarket/internal/adapters/out/db/common"
	notifdom "assetmarket/internal/domain/notification"
)

const recipientsTableDDL = `
CREATE TABLE IF NOT EXISTS recipients (
  wallet_address TEXT PRIMARY KEY,
  email          TEXT NOT NULL DEFAULT '',
  device_token   TEXT NOT NULL DEFAULT '',
  updated_at     BIGINT NOT NULL
);
`

// RecipientDirectorySQL maps wallet addresses to notification contacts.
// Addresses are stored lower-cased.
type RecipientDirectorySQL struct {
	DB      *sql.DB
	Dialect dbcommon.Dialect
}

func NewRecipientDirectorySQL(db *sql.DB, dialect dbcommon.Dialect) *RecipientDirectorySQL {
	return &RecipientDirectorySQL{DB: db, Dialect: dialect}
}

func (d *RecipientDirectorySQL) EnsureSchema(ctx context.Context) error {
	if err := dbcommon.ExecScript(ctx, d.DB, recipientsTableDDL); err != nil {
		return fmt.Errorf("ensure recipients schema: %w", err)
	}
	return nil
}

func (d *RecipientDirectorySQL) Lookup(ctx context.Context, walletAddress string) (notifdom.Recipient, error) {
	w := strings.ToLower(strings.TrimSpace(walletAddress))
	if w == "" {
		return notifdom.Recipient{}, notifdom.ErrRecipientRequired
	}

	run := dbcommon.GetRunner(ctx, d.DB)
	var r notifdom.Recipient
	err := run.QueryRowContext(ctx,
		d.Dialect.Rebind(`SELECT wallet_address, email, device_token FROM recipients WHERE wallet_address = ?`),
		w,
	).Scan(&r.WalletAddress, &r.Email, &r.DeviceToken)
	if errors.Is(err, sql.ErrNoRows) {
		return notifdom.Recipient{}, notifdom.ErrRecipientNotFound
	}
	if err != nil {
		return notifdom.Recipient{}, fmt.Errorf("lookup recipient: %w", err)
	}
	return r, nil
}

// Register upserts the contact data for a wallet.
func (d *RecipientDirectorySQL) Register(ctx context.Context, r notifdom.Recipient) error {
	w := strings.ToLower(strings.TrimSpace(r.WalletAddress))
	if w == "" {
		return notifdom.ErrRecipientRequired
	}

	run := dbcommon.GetRunner(ctx, d.DB)
	_, err := run.ExecContext(ctx, d.Dialect.Rebind(`
INSERT INTO recipients (wallet_address, email, device_token, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (wallet_address) DO UPDATE SET
  email = excluded.email,
  device_token = excluded.device_token,
  updated_at = excluded.updated_at`),
		w, strings.TrimSpace(r.Email), strings.TrimSpace(r.DeviceToken), dbcommon.ToMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("register recipient: %w", err)
	}
	return nil
}
