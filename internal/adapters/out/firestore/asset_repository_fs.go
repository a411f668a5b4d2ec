// backend/internal/adapters/out/firestore/asset_repository_fs.go
package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	assetdom "assetmarket/internal/domain/asset"
	"assetmarket/internal/infra/ids"
)

// ============================================================
// AssetRepositoryFS
// - assets/{assetId}
// - assets/{assetId}/bids/{bidId}
// - purchases/{purchaseId}
// - wallets/{walletKey} running proceeds / spend totals
// - stats/platform      running counters
// ============================================================

var ErrAssetRepoNotConfigured = errors.New("asset_repository_fs: not configured")

type AssetRepositoryFS struct {
	Client *firestore.Client
	now    func() time.Time
}

func NewAssetRepositoryFS(client *firestore.Client) *AssetRepositoryFS {
	return &AssetRepositoryFS{Client: client, now: time.Now}
}

func (r *AssetRepositoryFS) assetsCol() *firestore.CollectionRef {
	return r.Client.Collection("assets")
}

func (r *AssetRepositoryFS) purchasesCol() *firestore.CollectionRef {
	return r.Client.Collection("purchases")
}

func (r *AssetRepositoryFS) walletDoc(address string) *firestore.DocumentRef {
	return r.Client.Collection("wallets").Doc(assetdom.WalletKey(address))
}

func (r *AssetRepositoryFS) statsDoc() *firestore.DocumentRef {
	return r.Client.Collection("stats").Doc("platform")
}

// ------------------------------------------------------------
// Firestore documents
// ------------------------------------------------------------

type assetDoc struct {
	Name               string    `firestore:"name"`
	Description        string    `firestore:"description"`
	Category           string    `firestore:"category"`
	PriceETH           float64   `firestore:"priceEth"`
	SaleType           string    `firestore:"saleType"`
	RoyaltyPercent     float64   `firestore:"royaltyPercent"`
	Supply             int       `firestore:"supply"`
	ImageURL           string    `firestore:"imageUrl"`
	ImageContentHash   string    `firestore:"imageIpfsHash"`
	MetadataURL        string    `firestore:"metadataUrl"`
	ContentHash        string    `firestore:"contentHash"`
	TokenID            string    `firestore:"tokenId"`
	ContractAddress    string    `firestore:"contractAddress"`
	TransactionHash    string    `firestore:"transactionHash"`
	OwnerWalletAddress string    `firestore:"ownerWalletAddress"`
	OwnerKey           string    `firestore:"ownerKey"` // 小文字化したオーナー（検索用）
	CreatorAddress     string    `firestore:"creatorAddress"`
	Listed             bool      `firestore:"listed"`
	HighestBidETH      float64   `firestore:"highestBidEth"`
	HighestBidder      string    `firestore:"highestBidder"`
	BidCount           int       `firestore:"bidCount"`
	CreatedAt          time.Time `firestore:"createdAt"`
	UpdatedAt          time.Time `firestore:"updatedAt"`
}

type bidDoc struct {
	Bidder    string    `firestore:"bidder"`
	AmountETH float64   `firestore:"amountEth"`
	PlacedAt  time.Time `firestore:"placedAt"`
}

type purchaseDoc struct {
	AssetID             string    `firestore:"assetId"`
	Buyer               string    `firestore:"buyer"`
	Seller              string    `firestore:"seller"`
	PriceETH            float64   `firestore:"priceEth"`
	SettlementReference string    `firestore:"settlementReference"`
	PurchasedAt         time.Time `firestore:"purchasedAt"`
}

type walletDoc struct {
	ProceedsETH float64 `firestore:"proceedsEth"`
	SpentETH    float64 `firestore:"spentEth"`
}

type statsDoc struct {
	BidCount      int     `firestore:"bidCount"`
	PurchaseCount int     `firestore:"purchaseCount"`
	VolumeETH     float64 `firestore:"volumeEth"`
}

func toAssetDoc(rec assetdom.Record) assetDoc {
	return assetDoc{
		Name:               rec.Name,
		Description:        rec.Description,
		Category:           rec.Category,
		PriceETH:           rec.PriceETH,
		SaleType:           string(rec.SaleType),
		RoyaltyPercent:     rec.RoyaltyPercent,
		Supply:             rec.Supply,
		ImageURL:           rec.ImageURL,
		ImageContentHash:   rec.ImageContentHash,
		MetadataURL:        rec.MetadataURL,
		ContentHash:        rec.ContentHash,
		TokenID:            rec.TokenID,
		ContractAddress:    rec.ContractAddress,
		TransactionHash:    rec.TransactionHash,
		OwnerWalletAddress: rec.OwnerWalletAddress,
		OwnerKey:           assetdom.WalletKey(rec.OwnerWalletAddress),
		CreatorAddress:     rec.CreatorAddress,
		Listed:             rec.Listed,
		HighestBidETH:      rec.HighestBidETH,
		HighestBidder:      rec.HighestBidder,
		BidCount:           rec.BidCount,
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

func (d assetDoc) toRecord(id string) assetdom.Record {
	return assetdom.Record{
		ID:                 id,
		Name:               d.Name,
		Description:        d.Description,
		Category:           d.Category,
		PriceETH:           d.PriceETH,
		SaleType:           assetdom.SaleType(d.SaleType),
		RoyaltyPercent:     d.RoyaltyPercent,
		Supply:             d.Supply,
		ImageURL:           d.ImageURL,
		ImageContentHash:   d.ImageContentHash,
		MetadataURL:        d.MetadataURL,
		ContentHash:        d.ContentHash,
		TokenID:            d.TokenID,
		ContractAddress:    d.ContractAddress,
		TransactionHash:    d.TransactionHash,
		OwnerWalletAddress: d.OwnerWalletAddress,
		CreatorAddress:     d.CreatorAddress,
		Listed:             d.Listed,
		HighestBidETH:      d.HighestBidETH,
		HighestBidder:      d.HighestBidder,
		BidCount:           d.BidCount,
		CreatedAt:          d.CreatedAt.UTC(),
		UpdatedAt:          d.UpdatedAt.UTC(),
	}
}

func decodeAsset(snap *firestore.DocumentSnapshot) (assetdom.Record, error) {
	var d assetDoc
	if err := snap.DataTo(&d); err != nil {
		return assetdom.Record{}, fmt.Errorf("decode asset %s: %w", snap.Ref.ID, err)
	}
	return d.toRecord(snap.Ref.ID), nil
}

// ------------------------------------------------------------
// Writer
// ------------------------------------------------------------

func (r *AssetRepositoryFS) CreateAsset(ctx context.Context, in assetdom.CreateAssetInput) (string, error) {
	if r == nil || r.Client == nil {
		return "", ErrAssetRepoNotConfigured
	}
	rec, err := assetdom.NewRecord(ids.New(), in, r.now())
	if err != nil {
		return "", err
	}
	if _, err := r.assetsCol().Doc(rec.ID).Create(ctx, toAssetDoc(rec)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return "", fmt.Errorf("create asset %s: %w", rec.ID, assetdom.ErrConflict)
		}
		return "", fmt.Errorf("create asset: %w", err)
	}
	return rec.ID, nil
}

func (r *AssetRepositoryFS) PlaceBid(ctx context.Context, in assetdom.BidRequest) (assetdom.BidReceipt, error) {
	if r == nil || r.Client == nil {
		return assetdom.BidReceipt{}, ErrAssetRepoNotConfigured
	}
	assetRef := r.assetsCol().Doc(strings.TrimSpace(in.AssetID))

	var receipt assetdom.BidReceipt
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := r.now()
		rec, err := r.getInTx(tx, assetRef)
		if err != nil {
			return err
		}
		if err := rec.AcceptBid(in.BidderIdentity, in.AmountETH, now); err != nil {
			return err
		}

		bidRef := assetRef.Collection("bids").Doc(ids.New())
		bid := bidDoc{
			Bidder:    strings.TrimSpace(in.BidderIdentity),
			AmountETH: in.AmountETH,
			PlacedAt:  now.UTC(),
		}
		if err := tx.Create(bidRef, bid); err != nil {
			return err
		}
		if err := tx.Update(assetRef, []firestore.Update{
			{Path: "highestBidEth", Value: rec.HighestBidETH},
			{Path: "highestBidder", Value: rec.HighestBidder},
			{Path: "bidCount", Value: rec.BidCount},
			{Path: "updatedAt", Value: rec.UpdatedAt},
		}); err != nil {
			return err
		}
		if err := tx.Set(r.statsDoc(), map[string]any{
			"bidCount": firestore.Increment(1),
		}, firestore.MergeAll); err != nil {
			return err
		}

		receipt = assetdom.BidReceipt{
			BidID:              bidRef.ID,
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

func (r *AssetRepositoryFS) PurchaseAsset(ctx context.Context, in assetdom.PurchaseRequest) (assetdom.PurchaseReceipt, error) {
	if r == nil || r.Client == nil {
		return assetdom.PurchaseReceipt{}, ErrAssetRepoNotConfigured
	}
	assetRef := r.assetsCol().Doc(strings.TrimSpace(in.AssetID))

	var receipt assetdom.PurchaseReceipt
	err := r.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := r.now()
		rec, err := r.getInTx(tx, assetRef)
		if err != nil {
			return err
		}
		listingPrice := rec.PriceETH
		seller, err := rec.TransferTo(in.BuyerWalletAddress, in.PriceETH, now)
		if err != nil {
			return err
		}

		purchaseRef := r.purchasesCol().Doc(ids.New())
		p := purchaseDoc{
			AssetID:             rec.ID,
			Buyer:               rec.OwnerWalletAddress,
			Seller:              seller,
			PriceETH:            listingPrice,
			SettlementReference: ids.SettlementReference(),
			PurchasedAt:         now.UTC(),
		}

		if err := tx.Update(assetRef, []firestore.Update{
			{Path: "ownerWalletAddress", Value: rec.OwnerWalletAddress},
			{Path: "ownerKey", Value: assetdom.WalletKey(rec.OwnerWalletAddress)},
			{Path: "listed", Value: rec.Listed},
			{Path: "highestBidEth", Value: rec.HighestBidETH},
			{Path: "highestBidder", Value: rec.HighestBidder},
			{Path: "updatedAt", Value: rec.UpdatedAt},
		}); err != nil {
			return err
		}
		if err := tx.Create(purchaseRef, p); err != nil {
			return err
		}
		if err := tx.Set(r.walletDoc(p.Seller), map[string]any{
			"proceedsEth": firestore.Increment(p.PriceETH),
		}, firestore.MergeAll); err != nil {
			return err
		}
		if err := tx.Set(r.walletDoc(p.Buyer), map[string]any{
			"spentEth": firestore.Increment(p.PriceETH),
		}, firestore.MergeAll); err != nil {
			return err
		}
		if err := tx.Set(r.statsDoc(), map[string]any{
			"purchaseCount": firestore.Increment(1),
			"volumeEth":     firestore.Increment(p.PriceETH),
		}, firestore.MergeAll); err != nil {
			return err
		}

		receipt = assetdom.PurchaseReceipt{
			PurchaseID:          purchaseRef.ID,
			AssetID:             rec.ID,
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

func (r *AssetRepositoryFS) getInTx(tx *firestore.Transaction, ref *firestore.DocumentRef) (*assetdom.Record, error) {
	snap, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("asset %s: %w", ref.ID, assetdom.ErrNotFound)
		}
		return nil, err
	}
	rec, err := decodeAsset(snap)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ------------------------------------------------------------
// Reader
// ------------------------------------------------------------

func (r *AssetRepositoryFS) GetAsset(ctx context.Context, id string) (*assetdom.Record, error) {
	if r == nil || r.Client == nil {
		return nil, ErrAssetRepoNotConfigured
	}
	snap, err := r.assetsCol().Doc(strings.TrimSpace(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, assetdom.ErrNotFound
		}
		return nil, err
	}
	rec, err := decodeAsset(snap)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAssets pushes exact-match constraints to Firestore and applies the
// case-insensitive parts of the filter in memory.
func (r *AssetRepositoryFS) ListAssets(ctx context.Context, f assetdom.Filter) ([]assetdom.Record, error) {
	if r == nil || r.Client == nil {
		return nil, ErrAssetRepoNotConfigured
	}
	q := r.assetsCol().Query
	if f.SaleType != "" {
		q = q.Where("saleType", "==", string(f.SaleType))
	}
	if f.ListedOnly {
		q = q.Where("listed", "==", true)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	out := make([]assetdom.Record, 0, 16)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := decodeAsset(snap)
		if err != nil {
			return nil, err
		}
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *AssetRepositoryFS) ListBids(ctx context.Context, assetID string) ([]assetdom.Bid, error) {
	if r == nil || r.Client == nil {
		return nil, ErrAssetRepoNotConfigured
	}
	assetID = strings.TrimSpace(assetID)
	it := r.assetsCol().Doc(assetID).Collection("bids").
		OrderBy("placedAt", firestore.Desc).
		Documents(ctx)
	defer it.Stop()

	var out []assetdom.Bid
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var d bidDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, err
		}
		out = append(out, assetdom.Bid{
			ID:        snap.Ref.ID,
			AssetID:   assetID,
			Bidder:    d.Bidder,
			AmountETH: d.AmountETH,
			PlacedAt:  d.PlacedAt.UTC(),
		})
	}
	return out, nil
}

func (r *AssetRepositoryFS) WalletBalance(ctx context.Context, address string) (assetdom.WalletBalance, error) {
	if r == nil || r.Client == nil {
		return assetdom.WalletBalance{}, ErrAssetRepoNotConfigured
	}
	address = strings.TrimSpace(address)
	b := assetdom.WalletBalance{Address: address}

	snap, err := r.walletDoc(address).Get(ctx)
	switch {
	case err == nil:
		var d walletDoc
		if err := snap.DataTo(&d); err != nil {
			return assetdom.WalletBalance{}, err
		}
		b.ProceedsETH = d.ProceedsETH
		b.SpentETH = d.SpentETH
	case status.Code(err) == codes.NotFound:
		// no trades yet
	default:
		return assetdom.WalletBalance{}, err
	}

	owned, err := r.count(ctx, r.assetsCol().Where("ownerKey", "==", assetdom.WalletKey(address)))
	if err != nil {
		return assetdom.WalletBalance{}, err
	}
	b.OwnedAssets = owned
	b.NetETH = b.ProceedsETH - b.SpentETH
	return b, nil
}

func (r *AssetRepositoryFS) PlatformStats(ctx context.Context) (assetdom.PlatformStats, error) {
	if r == nil || r.Client == nil {
		return assetdom.PlatformStats{}, ErrAssetRepoNotConfigured
	}
	var s assetdom.PlatformStats

	snap, err := r.statsDoc().Get(ctx)
	switch {
	case err == nil:
		var d statsDoc
		if err := snap.DataTo(&d); err != nil {
			return assetdom.PlatformStats{}, err
		}
		s.BidCount = d.BidCount
		s.PurchaseCount = d.PurchaseCount
		s.VolumeETH = d.VolumeETH
	case status.Code(err) == codes.NotFound:
	default:
		return assetdom.PlatformStats{}, err
	}

	if s.AssetCount, err = r.count(ctx, r.assetsCol().Query); err != nil {
		return assetdom.PlatformStats{}, err
	}
	if s.ListedCount, err = r.count(ctx, r.assetsCol().Where("listed", "==", true)); err != nil {
		return assetdom.PlatformStats{}, err
	}
	return s, nil
}

// count iterates document references only (no field payload).
func (r *AssetRepositoryFS) count(ctx context.Context, q firestore.Query) (int, error) {
	it := q.Select().Documents(ctx)
	defer it.Stop()

	n := 0
	for {
		_, err := it.Next()
		if err == iterator.Done {
			return n, nil
		}
		if err != nil {
			return 0, err
		}
		n++
	}
}

var _ assetdom.RepositoryPort = (*AssetRepositoryFS)(nil)
