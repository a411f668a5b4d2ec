// backend/internal/domain/asset/repository_port.go
package asset

import (
	"context"
	"strings"
)

// WalletKey is the comparison form of a wallet address; every wallet
// comparison goes through it, so addresses match case-insensitively.
func WalletKey(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Filter narrows ListAssets. Zero values mean "no constraint".
type Filter struct {
	OwnerWalletAddress string
	Category           string
	SaleType           SaleType
	ListedOnly         bool
}

// Match applies the filter in memory (used by adapters that scan).
func (f Filter) Match(r Record) bool {
	if v := strings.TrimSpace(f.OwnerWalletAddress); v != "" && !strings.EqualFold(v, r.OwnerWalletAddress) {
		return false
	}
	if v := strings.TrimSpace(f.Category); v != "" && !strings.EqualFold(v, r.Category) {
		return false
	}
	if f.SaleType != "" && f.SaleType != r.SaleType {
		return false
	}
	if f.ListedOnly && !r.Listed {
		return false
	}
	return true
}

// CacheSuffix renders the filter as a stable key fragment.
func (f Filter) CacheSuffix() []string {
	var out []string
	if v := WalletKey(f.OwnerWalletAddress); v != "" {
		out = append(out, "owner="+v)
	}
	if v := strings.ToLower(strings.TrimSpace(f.Category)); v != "" {
		out = append(out, "category="+v)
	}
	if f.SaleType != "" {
		out = append(out, "saleType="+string(f.SaleType))
	}
	if f.ListedOnly {
		out = append(out, "listed")
	}
	return out
}

// WalletBalance is the marketplace-side ledger for one wallet.
type WalletBalance struct {
	Address     string  `json:"address"`
	ProceedsETH float64 `json:"proceedsEth"`
	SpentETH    float64 `json:"spentEth"`
	NetETH      float64 `json:"netEth"`
	OwnedAssets int     `json:"ownedAssets"`
}

type PlatformStats struct {
	AssetCount    int     `json:"assetCount"`
	ListedCount   int     `json:"listedCount"`
	BidCount      int     `json:"bidCount"`
	PurchaseCount int     `json:"purchaseCount"`
	VolumeETH     float64 `json:"volumeEth"`
}

// Writer is the mutation side of the persistence gateway.
//
// Business refusals come back as *RejectionError; any other error is an
// infrastructure failure. Each method is a single atomic write.
type Writer interface {
	CreateAsset(ctx context.Context, in CreateAssetInput) (string, error)
	PlaceBid(ctx context.Context, in BidRequest) (BidReceipt, error)
	PurchaseAsset(ctx context.Context, in PurchaseRequest) (PurchaseReceipt, error)
}

// Reader is the query side consumed by UI collaborators through the read cache.
type Reader interface {
	GetAsset(ctx context.Context, id string) (*Record, error)
	ListAssets(ctx context.Context, filter Filter) ([]Record, error)
	ListBids(ctx context.Context, assetID string) ([]Bid, error)
	WalletBalance(ctx context.Context, address string) (WalletBalance, error)
	PlatformStats(ctx context.Context) (PlatformStats, error)
}

// RepositoryPort is implemented by every persistence adapter.
type RepositoryPort interface {
	Writer
	Reader
}
