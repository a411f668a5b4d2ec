// backend/internal/adapters/out/db/asset_repository_sql.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	dbcommon "assetmarket/internal/adapters/out/db/common"
	assetdom "assetmarket/internal/domain/asset"
	"assetmarket/internal/infra/ids"
)

// AssetRepositorySQL is the persistence gateway on PostgreSQL or SQLite.
// Bids and purchases run in one transaction each; on PostgreSQL the asset row
// is locked with SELECT ... FOR UPDATE.
type AssetRepositorySQL struct {
	DB      *sql.DB
	Dialect dbcommon.Dialect
	now     func() time.Time
}

func NewAssetRepositorySQL(db *sql.DB, dialect dbcommon.Dialect) *AssetRepositorySQL {
	return &AssetRepositorySQL{DB: db, Dialect: dialect, now: time.Now}
}

// EnsureSchema creates tables and indexes when they do not exist yet.
func (r *AssetRepositorySQL) EnsureSchema(ctx context.Context) error {
	if r == nil || r.DB == nil {
		return errors.New("asset repository sql: db is nil")
	}
	if err := dbcommon.ExecScript(ctx, r.DB, assetdom.AssetsTableDDL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	log.Printf("[DB] schema ready dialect=%s", r.Dialect)
	return nil
}

const assetColumns = `
  id, name, description, category, price_eth, sale_type, royalty_percent, supply,
  image_url, image_content_hash, metadata_url, content_hash,
  token_id, contract_address, transaction_hash,
  owner_wallet_address, creator_address, listed,
  highest_bid_eth, highest_bidder, bid_count, created_at, updated_at`

// ========================
// Writer
// ========================

func (r *AssetRepositorySQL) CreateAsset(ctx context.Context, in assetdom.CreateAssetInput) (string, error) {
	if r == nil || r.DB == nil {
		return "", errors.New("asset repository sql: db is nil")
	}
	rec, err := assetdom.NewRecord(ids.New(), in, r.now())
	if err != nil {
		return "", err
	}

	run := dbcommon.GetRunner(ctx, r.DB)
	q := r.Dialect.Rebind(`
INSERT INTO assets (` + assetColumns + `
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = run.ExecContext(ctx, q,
		rec.ID, rec.Name, rec.Description, rec.Category, rec.PriceETH, string(rec.SaleType),
		rec.RoyaltyPercent, rec.Supply,
		rec.ImageURL, rec.ImageContentHash, rec.MetadataURL, rec.ContentHash,
		rec.TokenID, rec.ContractAddress, rec.TransactionHash,
		rec.OwnerWalletAddress, rec.CreatorAddress, rec.Listed,
		rec.HighestBidETH, rec.HighestBidder, rec.BidCount,
		dbcommon.ToMillis(rec.CreatedAt), dbcommon.ToMillis(rec.UpdatedAt),
	)
	if err != nil {
		if dbcommon.IsUniqueViolation(err) {
			return "", fmt.Errorf("create asset token=%s: %w", rec.TokenID, assetdom.ErrConflict)
		}
		return "", fmt.Errorf("create asset: %w", err)
	}
	return rec.ID, nil
}

func (r *AssetRepositorySQL) PlaceBid(ctx context.Context, in assetdom.BidRequest) (assetdom.BidReceipt, error) {
	if r == nil || r.DB == nil {
		return assetdom.BidReceipt{}, errors.New("asset repository sql: db is nil")
	}
	var receipt assetdom.BidReceipt
	err := dbcommon.WithTx(ctx, r.DB, func(ctx context.Context) error {
		run := dbcommon.GetRunner(ctx, r.DB)
		now := r.now()

		rec, err := r.lockAsset(ctx, run, in.AssetID)
		if err != nil {
			return err
		}
		if err := rec.AcceptBid(in.BidderIdentity, in.AmountETH, now); err != nil {
			return err
		}

		bid := assetdom.Bid{
			ID:        ids.New(),
			AssetID:   rec.ID,
			Bidder:    strings.TrimSpace(in.BidderIdentity),
			AmountETH: in.AmountETH,
			PlacedAt:  now.UTC(),
		}
		if _, err := run.ExecContext(ctx, r.Dialect.Rebind(`
INSERT INTO bids (id, asset_id, bidder, amount_eth, placed_at) VALUES (?, ?, ?, ?, ?)`),
			bid.ID, bid.AssetID, bid.Bidder, bid.AmountETH, dbcommon.ToMillis(bid.PlacedAt),
		); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}

		if _, err := run.ExecContext(ctx, r.Dialect.Rebind(`
UPDATE assets
SET highest_bid_eth = ?, highest_bidder = ?, bid_count = ?, updated_at = ?
WHERE id = ?`),
			rec.HighestBidETH, rec.HighestBidder, rec.BidCount, dbcommon.ToMillis(rec.UpdatedAt), rec.ID,
		); err != nil {
			return fmt.Errorf("update asset bid state: %w", err)
		}

		receipt = assetdom.BidReceipt{
			BidID:              bid.ID,
			AssetID:            rec.ID,
			Bidder:             bid.Bidder,
			AmountETH:          bid.AmountETH,
			OwnerWalletAddress: rec.OwnerWalletAddress,
			AssetName:          rec.Name,
			PlacedAt:           bid.PlacedAt,
		}
		return nil
	})
	if err != nil {
		return assetdom.BidReceipt{}, err
	}
	return receipt, nil
}

func (r *AssetRepositorySQL) PurchaseAsset(ctx context.Context, in assetdom.PurchaseRequest) (assetdom.PurchaseReceipt, error) {
	if r == nil || r.DB == nil {
		return assetdom.PurchaseReceipt{}, errors.New("asset repository sql: db is nil")
	}
	var receipt assetdom.PurchaseReceipt
	err := dbcommon.WithTx(ctx, r.DB, func(ctx context.Context) error {
		run := dbcommon.GetRunner(ctx, r.DB)
		now := r.now()

		rec, err := r.lockAsset(ctx, run, in.AssetID)
		if err != nil {
			return err
		}
		listingPrice := rec.PriceETH
		seller, err := rec.TransferTo(in.BuyerWalletAddress, in.PriceETH, now)
		if err != nil {
			return err
		}

		p := assetdom.Purchase{
			ID:                  ids.New(),
			AssetID:             rec.ID,
			Buyer:               rec.OwnerWalletAddress,
			Seller:              seller,
			PriceETH:            listingPrice,
			SettlementReference: ids.SettlementReference(),
			PurchasedAt:         now.UTC(),
		}

		if _, err := run.ExecContext(ctx, r.Dialect.Rebind(`
UPDATE assets
SET owner_wallet_address = ?, listed = ?, highest_bid_eth = ?, highest_bidder = ?, updated_at = ?
WHERE id = ?`),
			rec.OwnerWalletAddress, rec.Listed, rec.HighestBidETH, rec.HighestBidder, dbcommon.ToMillis(rec.UpdatedAt), rec.ID,
		); err != nil {
			return fmt.Errorf("transfer asset: %w", err)
		}

		if _, err := run.ExecContext(ctx, r.Dialect.Rebind(`
INSERT INTO purchases (id, asset_id, buyer, seller, price_eth, settlement_reference, purchased_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.AssetID, p.Buyer, p.Seller, p.PriceETH, p.SettlementReference, dbcommon.ToMillis(p.PurchasedAt),
		); err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}

		receipt = assetdom.PurchaseReceipt{
			PurchaseID:          p.ID,
			AssetID:             p.AssetID,
			Buyer:               p.Buyer,
			Seller:              p.Seller,
			PriceETH:            p.PriceETH,
			SettlementReference: p.SettlementReference,
			AssetName:           rec.Name,
			PurchasedAt:         p.PurchasedAt,
		}
		return nil
	})
	if err != nil {
		return assetdom.PurchaseReceipt{}, err
	}
	return receipt, nil
}

func (r *AssetRepositorySQL) lockAsset(ctx context.Context, run dbcommon.Runner, id string) (*assetdom.Record, error) {
	q := r.Dialect.Rebind(`SELECT` + assetColumns + `
FROM assets
WHERE id = ?` + r.Dialect.ForUpdate())
	rec, err := scanAsset(run.QueryRowContext(ctx, q, strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("asset %s: %w", id, assetdom.ErrNotFound)
		}
		return nil, fmt.Errorf("load asset %s: %w", id, err)
	}
	return &rec, nil
}

// ========================
// Reader
// ========================

func (r *AssetRepositorySQL) GetAsset(ctx context.Context, id string) (*assetdom.Record, error) {
	run := dbcommon.GetRunner(ctx, r.DB)
	q := r.Dialect.Rebind(`SELECT` + assetColumns + `
FROM assets
WHERE id = ?`)
	rec, err := scanAsset(run.QueryRowContext(ctx, q, strings.TrimSpace(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, assetdom.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *AssetRepositorySQL) ListAssets(ctx context.Context, f assetdom.Filter) ([]assetdom.Record, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	var where []string
	var args []any
	if v := strings.TrimSpace(f.OwnerWalletAddress); v != "" {
		dbcommon.AppendCond(&where, &args, "LOWER(owner_wallet_address) = LOWER(?)", v)
	}
	if v := strings.TrimSpace(f.Category); v != "" {
		dbcommon.AppendCond(&where, &args, "LOWER(category) = LOWER(?)", v)
	}
	if f.SaleType != "" {
		dbcommon.AppendCond(&where, &args, "sale_type = ?", string(f.SaleType))
	}
	if f.ListedOnly {
		dbcommon.AppendCond(&where, &args, "listed = ?", true)
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = "WHERE " + strings.Join(where, " AND ")
	}

	q := r.Dialect.Rebind(`SELECT` + assetColumns + `
FROM assets
` + whereSQL + `
ORDER BY created_at DESC, id ASC`)

	rows, err := run.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]assetdom.Record, 0, 16)
	for rows.Next() {
		rec, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *AssetRepositorySQL) ListBids(ctx context.Context, assetID string) ([]assetdom.Bid, error) {
	run := dbcommon.GetRunner(ctx, r.DB)
	rows, err := run.QueryContext(ctx, r.Dialect.Rebind(`
SELECT id, asset_id, bidder, amount_eth, placed_at
FROM bids
WHERE asset_id = ?
ORDER BY placed_at DESC, amount_eth DESC`), strings.TrimSpace(assetID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []assetdom.Bid
	for rows.Next() {
		var (
			b        assetdom.Bid
			placedAt int64
		)
		if err := rows.Scan(&b.ID, &b.AssetID, &b.Bidder, &b.AmountETH, &placedAt); err != nil {
			return nil, err
		}
		b.PlacedAt = dbcommon.FromMillis(placedAt)
		out = append(out, b)
	}
	return out, rows.Err()
}

// WalletBalance is sale proceeds minus purchase spend for address,
// matched case-insensitively like the owner filter.
func (r *AssetRepositorySQL) WalletBalance(ctx context.Context, address string) (assetdom.WalletBalance, error) {
	run := dbcommon.GetRunner(ctx, r.DB)
	address = strings.TrimSpace(address)

	var b assetdom.WalletBalance
	err := run.QueryRowContext(ctx, r.Dialect.Rebind(`
SELECT
  (SELECT COALESCE(SUM(price_eth), 0) FROM purchases WHERE LOWER(seller) = LOWER(?)),
  (SELECT COALESCE(SUM(price_eth), 0) FROM purchases WHERE LOWER(buyer) = LOWER(?)),
  (SELECT COUNT(*) FROM assets WHERE LOWER(owner_wallet_address) = LOWER(?))`),
		address, address, address,
	).Scan(&b.ProceedsETH, &b.SpentETH, &b.OwnedAssets)
	if err != nil {
		return assetdom.WalletBalance{}, err
	}
	b.Address = address
	b.NetETH = b.ProceedsETH - b.SpentETH
	return b, nil
}

func (r *AssetRepositorySQL) PlatformStats(ctx context.Context) (assetdom.PlatformStats, error) {
	run := dbcommon.GetRunner(ctx, r.DB)

	var s assetdom.PlatformStats
	err := run.QueryRowContext(ctx, r.Dialect.Rebind(`
SELECT
  (SELECT COUNT(*) FROM assets),
  (SELECT COUNT(*) FROM assets WHERE listed = ?),
  (SELECT COUNT(*) FROM bids),
  (SELECT COUNT(*) FROM purchases),
  (SELECT COALESCE(SUM(price_eth), 0) FROM purchases)`), true,
	).Scan(&s.AssetCount, &s.ListedCount, &s.BidCount, &s.PurchaseCount, &s.VolumeETH)
	if err != nil {
		return assetdom.PlatformStats{}, err
	}
	return s, nil
}

// ========================
// scan
// ========================

func scanAsset(s dbcommon.RowScanner) (assetdom.Record, error) {
	var (
		rec                  assetdom.Record
		saleType             string
		createdAt, updatedAt int64
	)
	err := s.Scan(
		&rec.ID, &rec.Name, &rec.Description, &rec.Category, &rec.PriceETH, &saleType,
		&rec.RoyaltyPercent, &rec.Supply,
		&rec.ImageURL, &rec.ImageContentHash, &rec.MetadataURL, &rec.ContentHash,
		&rec.TokenID, &rec.ContractAddress, &rec.TransactionHash,
		&rec.OwnerWalletAddress, &rec.CreatorAddress, &rec.Listed,
		&rec.HighestBidETH, &rec.HighestBidder, &rec.BidCount, &createdAt, &updatedAt,
	)
	if err != nil {
		return assetdom.Record{}, err
	}
	rec.SaleType = assetdom.SaleType(saleType)
	rec.CreatedAt = dbcommon.FromMillis(createdAt)
	rec.UpdatedAt = dbcommon.FromMillis(updatedAt)
	return rec, nil
}

var _ assetdom.RepositoryPort = (*AssetRepositorySQL)(nil)
