// backend/internal/application/query/catalog_query.go
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assetmarket/internal/application/cache"
	assetdom "assetmarket/internal/domain/asset"
)

// ============================================================
// DTOs
// ============================================================

type AssetDTO struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	PriceETH           float64   `json:"priceEth"`
	SaleType           string    `json:"saleType"`
	RoyaltyPercent     float64   `json:"royaltyPercent"`
	Supply             int       `json:"supply"`
	ImageURL           string    `json:"imageUrl"`
	ImageContentHash   string    `json:"imageIpfsHash,omitempty"`
	MetadataURL        string    `json:"metadataUrl,omitempty"`
	ContentHash        string    `json:"contentHash,omitempty"`
	TokenID            string    `json:"tokenId"`
	ContractAddress    string    `json:"contractAddress"`
	TransactionHash    string    `json:"transactionHash"`
	OwnerWalletAddress string    `json:"ownerWalletAddress"`
	CreatorAddress     string    `json:"creatorAddress"`
	Listed             bool      `json:"listed"`
	HighestBidETH      float64   `json:"highestBidEth"`
	HighestBidder      string    `json:"highestBidder,omitempty"`
	BidCount           int       `json:"bidCount"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

type BidDTO struct {
	ID        string    `json:"id"`
	AssetID   string    `json:"assetId"`
	Bidder    string    `json:"bidder"`
	AmountETH float64   `json:"amountEth"`
	PlacedAt  time.Time `json:"placedAt"`
}

func toAssetDTO(r assetdom.Record) AssetDTO {
	return AssetDTO{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Category:           r.Category,
		PriceETH:           r.PriceETH,
		SaleType:           string(r.SaleType),
		RoyaltyPercent:     r.RoyaltyPercent,
		Supply:             r.Supply,
		ImageURL:           r.ImageURL,
		ImageContentHash:   r.ImageContentHash,
		MetadataURL:        r.MetadataURL,
		ContentHash:        r.ContentHash,
		TokenID:            r.TokenID,
		ContractAddress:    r.ContractAddress,
		TransactionHash:    r.TransactionHash,
		OwnerWalletAddress: r.OwnerWalletAddress,
		CreatorAddress:     r.CreatorAddress,
		Listed:             r.Listed,
		HighestBidETH:      r.HighestBidETH,
		HighestBidder:      r.HighestBidder,
		BidCount:           r.BidCount,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// ============================================================
// CatalogQuery
// ============================================================

var ErrInvalidArgument = errors.New("query: invalid argument")

// CatalogQuery serves the read side through the read cache. Every read is
// keyed so that mutations can mark it stale with a prefix key.
type CatalogQuery struct {
	reader assetdom.Reader
	cache  *cache.ReadCache
}

func NewCatalogQuery(reader assetdom.Reader, c *cache.ReadCache) *CatalogQuery {
	if c == nil {
		c = cache.New()
	}
	return &CatalogQuery{reader: reader, cache: c}
}

func (q *CatalogQuery) ListAssets(ctx context.Context, f assetdom.Filter) ([]AssetDTO, error) {
	if q == nil || q.reader == nil {
		return nil, errors.New("query: catalog reader is nil")
	}
	v, err := q.cache.Get(ctx, cache.AssetsKey(f.CacheSuffix()...), func(ctx context.Context) (any, error) {
		rows, err := q.reader.ListAssets(ctx, f)
		if err != nil {
			return nil, err
		}
		out := make([]AssetDTO, 0, len(rows))
		for _, r := range rows {
			out = append(out, toAssetDTO(r))
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return v.([]AssetDTO), nil
}

func (q *CatalogQuery) GetAsset(ctx context.Context, id string) (AssetDTO, error) {
	if q == nil || q.reader == nil {
		return AssetDTO{}, errors.New("query: catalog reader is nil")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return AssetDTO{}, ErrInvalidArgument
	}
	v, err := q.cache.Get(ctx, cache.AssetKey(id), func(ctx context.Context) (any, error) {
		r, err := q.reader.GetAsset(ctx, id)
		if err != nil {
			return nil, err
		}
		return toAssetDTO(*r), nil
	})
	if err != nil {
		return AssetDTO{}, fmt.Errorf("get asset %s: %w", id, err)
	}
	return v.(AssetDTO), nil
}

// ListBids is not cached; bid history is only read on the detail screen.
func (q *CatalogQuery) ListBids(ctx context.Context, assetID string) ([]BidDTO, error) {
	if q == nil || q.reader == nil {
		return nil, errors.New("query: catalog reader is nil")
	}
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, ErrInvalidArgument
	}
	bids, err := q.reader.ListBids(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("list bids %s: %w", assetID, err)
	}
	out := make([]BidDTO, 0, len(bids))
	for _, b := range bids {
		out = append(out, BidDTO{
			ID:        b.ID,
			AssetID:   b.AssetID,
			Bidder:    b.Bidder,
			AmountETH: b.AmountETH,
			PlacedAt:  b.PlacedAt,
		})
	}
	return out, nil
}

func (q *CatalogQuery) WalletBalance(ctx context.Context, address string) (assetdom.WalletBalance, error) {
	if q == nil || q.reader == nil {
		return assetdom.WalletBalance{}, errors.New("query: catalog reader is nil")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return assetdom.WalletBalance{}, ErrInvalidArgument
	}
	v, err := q.cache.Get(ctx, cache.WalletBalanceKey(address), func(ctx context.Context) (any, error) {
		return q.reader.WalletBalance(ctx, address)
	})
	if err != nil {
		return assetdom.WalletBalance{}, fmt.Errorf("wallet balance %s: %w", address, err)
	}
	return v.(assetdom.WalletBalance), nil
}

func (q *CatalogQuery) PlatformStats(ctx context.Context) (assetdom.PlatformStats, error) {
	if q == nil || q.reader == nil {
		return assetdom.PlatformStats{}, errors.New("query: catalog reader is nil")
	}
	v, err := q.cache.Get(ctx, cache.PlatformStatsKey(), func(ctx context.Context) (any, error) {
		return q.reader.PlatformStats(ctx)
	})
	if err != nil {
		return assetdom.PlatformStats{}, fmt.Errorf("platform stats: %w", err)
	}
	return v.(assetdom.PlatformStats), nil
}
