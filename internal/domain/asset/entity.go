// backend/internal/domain/asset/entity.go
package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ========================================
// Types
// ========================================

type SaleType string

const (
	SaleTypeFixed   SaleType = "fixed"
	SaleTypeAuction SaleType = "auction"
)

func IsValidSaleType(t SaleType) bool {
	switch t {
	case SaleTypeFixed, SaleTypeAuction:
		return true
	default:
		return false
	}
}

// Record is the durable projection of one tokenized asset.
// Owned by the persistence gateway; everything else only reads it.
type Record struct {
	ID                 string
	Name               string
	Description        string
	Category           string
	PriceETH           float64
	SaleType           SaleType
	RoyaltyPercent     float64
	Supply             int
	ImageURL           string
	ImageContentHash   string
	MetadataURL        string
	ContentHash        string
	TokenID            string
	ContractAddress    string
	TransactionHash    string
	OwnerWalletAddress string
	CreatorAddress     string
	Listed             bool
	HighestBidETH      float64
	HighestBidder      string
	BidCount           int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Bid struct {
	ID        string
	AssetID   string
	Bidder    string
	AmountETH float64
	PlacedAt  time.Time
}

type Purchase struct {
	ID                  string
	AssetID             string
	Buyer               string
	Seller              string
	PriceETH            float64
	SettlementReference string
	PurchasedAt         time.Time
}

// Content is what a content-addressing gateway returns for one upload.
type Content struct {
	ID  string // content identifier (CID or digest)
	URL string // retrieval URL
}

// SyntheticIdentifiers stand in for values a real ledger would assign.
type SyntheticIdentifiers struct {
	TokenID         string
	ContractAddress string
	TransactionHash string
}

// MetadataDocument is the token metadata JSON uploaded next to the image.
type MetadataDocument struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Image                string      `json:"image"`
	SellerFeeBasisPoints int         `json:"seller_fee_basis_points"`
	Attributes           []Attribute `json:"attributes"`
}

type Attribute struct {
	TraitType string `json:"trait_type"`
	Value     any    `json:"value"`
}

// ========================================
// Requests / results
// ========================================

type MintRequest struct {
	ImageReference     string
	Name               string
	Description        string
	Category           string
	Price              float64
	SaleType           SaleType
	RoyaltyPercent     float64
	Supply             int
	OwnerWalletAddress string
}

type MintOutcome struct {
	AssetID          string `json:"assetId"`
	TokenID          string `json:"tokenId"`
	ContractAddress  string `json:"contractAddress"`
	ContentHash      string `json:"contentHash"`
	ImageContentHash string `json:"imageIpfsHash"`
	TransactionHash  string `json:"transactionHash"`
	ImageURL         string `json:"imageUrl"`
	MetadataURL      string `json:"metadataUrl,omitempty"`
}

type BidRequest struct {
	AssetID        string
	BidderIdentity string
	AmountETH      float64
}

type BidReceipt struct {
	BidID              string    `json:"bidId"`
	AssetID            string    `json:"assetId"`
	Bidder             string    `json:"bidder"`
	AmountETH          float64   `json:"amountEth"`
	OwnerWalletAddress string    `json:"ownerWalletAddress"`
	AssetName          string    `json:"assetName"`
	PlacedAt           time.Time `json:"placedAt"`
}

type PurchaseRequest struct {
	AssetID            string
	BuyerWalletAddress string
	PriceETH           float64
}

type PurchaseReceipt struct {
	PurchaseID          string    `json:"purchaseId"`
	AssetID             string    `json:"assetId"`
	Buyer               string    `json:"buyer"`
	Seller              string    `json:"seller"`
	PriceETH            float64   `json:"priceEth"`
	SettlementReference string    `json:"settlementReference"`
	AssetName           string    `json:"assetName"`
	PurchasedAt         time.Time `json:"purchasedAt"`
}

// CreateAssetInput is everything the persistence gateway needs for one mint.
type CreateAssetInput struct {
	Name               string
	Description        string
	Category           string
	PriceETH           float64
	SaleType           SaleType
	RoyaltyPercent     float64
	Supply             int
	ImageURL           string
	ImageContentHash   string
	MetadataURL        string
	ContentHash        string
	TokenID            string
	ContractAddress    string
	TransactionHash    string
	OwnerWalletAddress string
}

// ========================================
// Errors
// ========================================

var (
	ErrNotFound           = errors.New("asset: not found")
	ErrConflict           = errors.New("asset: conflict")
	ErrInvalidName        = errors.New("asset: invalid name")
	ErrInvalidPrice       = errors.New("asset: price must be greater than zero")
	ErrInvalidSaleType    = errors.New("asset: invalid saleType")
	ErrInvalidRoyalty     = errors.New("asset: royaltyPercent must be within [0,100]")
	ErrInvalidSupply      = errors.New("asset: supply must be at least 1")
	ErrInvalidOwner       = errors.New("asset: owner wallet address is required")
	ErrInvalidAssetID     = errors.New("asset: asset id is required")
	ErrInvalidBidder      = errors.New("asset: bidder identity is required")
	ErrInvalidBuyer       = errors.New("asset: buyer wallet address is required")
	ErrInvalidAmount      = errors.New("asset: amount must be greater than zero")
	ErrInvalidImage       = errors.New("asset: image reference is required")
	ErrInvalidTokenID     = errors.New("asset: token id is required")
	ErrInvalidContractRef = errors.New("asset: contract address is required")
)

// RejectionError is a business verdict from the persistence gateway
// (bid too low, asset not listed, ...). Anything else coming out of a
// gateway is an infrastructure failure.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

func Reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err carries a business rejection.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

// ========================================
// Policy
// ========================================

var (
	MaxNameLength        = 120
	MaxDescriptionLength = 4000
	MinRoyaltyPercent    = 0.0
	MaxRoyaltyPercent    = 100.0
	MinSupply            = 1
)

// ========================================
// Validation
// ========================================

func (r MintRequest) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.ImageReference) == "" {
		return ErrInvalidImage
	}
	if len(r.Description) > MaxDescriptionLength {
		return fmt.Errorf("asset: description exceeds %d characters", MaxDescriptionLength)
	}
	if !(r.Price > 0) {
		return ErrInvalidPrice
	}
	if !IsValidSaleType(r.SaleType) {
		return ErrInvalidSaleType
	}
	if r.RoyaltyPercent < MinRoyaltyPercent || r.RoyaltyPercent > MaxRoyaltyPercent {
		return ErrInvalidRoyalty
	}
	if r.Supply < MinSupply {
		return ErrInvalidSupply
	}
	if strings.TrimSpace(r.OwnerWalletAddress) == "" {
		return ErrInvalidOwner
	}
	return nil
}

func (r BidRequest) Validate() error {
	if strings.TrimSpace(r.AssetID) == "" {
		return ErrInvalidAssetID
	}
	if strings.TrimSpace(r.BidderIdentity) == "" {
		return ErrInvalidBidder
	}
	if !(r.AmountETH > 0) {
		return ErrInvalidAmount
	}
	return nil
}

func (r PurchaseRequest) Validate() error {
	if strings.TrimSpace(r.AssetID) == "" {
		return ErrInvalidAssetID
	}
	if strings.TrimSpace(r.BuyerWalletAddress) == "" {
		return ErrInvalidBuyer
	}
	if !(r.PriceETH > 0) {
		return ErrInvalidAmount
	}
	return nil
}

func (in CreateAssetInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return ErrInvalidName
	}
	if !(in.PriceETH > 0) {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(in.OwnerWalletAddress) == "" {
		return ErrInvalidOwner
	}
	if strings.TrimSpace(in.TokenID) == "" {
		return ErrInvalidTokenID
	}
	if strings.TrimSpace(in.ContractAddress) == "" {
		return ErrInvalidContractRef
	}
	return nil
}

// NewRecord builds the initial record for a freshly minted asset.
func NewRecord(id string, in CreateAssetInput, now time.Time) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidAssetID
	}
	if err := in.Validate(); err != nil {
		return Record{}, err
	}
	owner := strings.TrimSpace(in.OwnerWalletAddress)
	return Record{
		ID:                 id,
		Name:               strings.TrimSpace(in.Name),
		Description:        strings.TrimSpace(in.Description),
		Category:           strings.TrimSpace(in.Category),
		PriceETH:           in.PriceETH,
		SaleType:           in.SaleType,
		RoyaltyPercent:     in.RoyaltyPercent,
		Supply:             in.Supply,
		ImageURL:           strings.TrimSpace(in.ImageURL),
		ImageContentHash:   strings.TrimSpace(in.ImageContentHash),
		MetadataURL:        strings.TrimSpace(in.MetadataURL),
		ContentHash:        strings.TrimSpace(in.ContentHash),
		TokenID:            strings.TrimSpace(in.TokenID),
		ContractAddress:    strings.TrimSpace(in.ContractAddress),
		TransactionHash:    strings.TrimSpace(in.TransactionHash),
		OwnerWalletAddress: owner,
		CreatorAddress:     owner,
		Listed:             true,
		CreatedAt:          now.UTC(),
		UpdatedAt:          now.UTC(),
	}, nil
}

// ========================================
// Behavior
// ========================================

// AcceptBid applies the bid policy and mutates the record on success.
// Returns a *RejectionError when the bid is refused.
func (r *Record) AcceptBid(bidder string, amount float64, now time.Time) error {
	bidder = strings.TrimSpace(bidder)
	if !r.Listed {
		return Reject("asset %s is not listed", r.ID)
	}
	if strings.EqualFold(bidder, r.OwnerWalletAddress) {
		return Reject("owner cannot bid on own asset")
	}
	floor := r.HighestBidETH
	if r.BidCount == 0 && r.SaleType == SaleTypeAuction {
		// first auction bid must meet the reserve price
		if amount < r.PriceETH {
			return Reject("bid %.6g is below reserve price %.6g", amount, r.PriceETH)
		}
	} else if amount <= floor {
		return Reject("bid %.6g must exceed current high bid %.6g", amount, floor)
	}
	r.HighestBidETH = amount
	r.HighestBidder = bidder
	r.BidCount++
	r.UpdatedAt = now.UTC()
	return nil
}

// TransferTo applies the purchase policy: the asset must be listed, the
// offered price must cover the listing price and the buyer must differ from
// the owner. It returns the previous owner.
func (r *Record) TransferTo(buyer string, price float64, now time.Time) (string, error) {
	buyer = strings.TrimSpace(buyer)
	if !r.Listed {
		return "", Reject("asset %s is not listed for sale", r.ID)
	}
	if strings.EqualFold(buyer, r.OwnerWalletAddress) {
		return "", Reject("buyer already owns asset %s", r.ID)
	}
	if price < r.PriceETH {
		return "", Reject("insufficient listing: offered %.6g, listing price %.6g", price, r.PriceETH)
	}
	seller := r.OwnerWalletAddress
	r.OwnerWalletAddress = buyer
	r.Listed = false
	r.HighestBidETH = 0
	r.HighestBidder = ""
	r.UpdatedAt = now.UTC()
	return seller, nil
}

// AssetsTableDDL defines the SQL schema used by the SQL persistence adapter.
// It is portable between PostgreSQL and SQLite; timestamps are unix millis.
const AssetsTableDDL = `
CREATE TABLE IF NOT EXISTS assets (
  id                   TEXT PRIMARY KEY,
  name                 TEXT NOT NULL,
  description          TEXT NOT NULL DEFAULT '',
  category             TEXT NOT NULL DEFAULT '',
  price_eth            DOUBLE PRECISION NOT NULL CHECK (price_eth > 0),
  sale_type            TEXT NOT NULL,
  royalty_percent      DOUBLE PRECISION NOT NULL CHECK (royalty_percent >= 0 AND royalty_percent <= 100),
  supply               INTEGER NOT NULL CHECK (supply >= 1),
  image_url            TEXT NOT NULL DEFAULT '',
  image_content_hash   TEXT NOT NULL DEFAULT '',
  metadata_url         TEXT NOT NULL DEFAULT '',
  content_hash         TEXT NOT NULL DEFAULT '',
  token_id             TEXT NOT NULL UNIQUE,
  contract_address     TEXT NOT NULL,
  transaction_hash     TEXT NOT NULL DEFAULT '',
  owner_wallet_address TEXT NOT NULL,
  creator_address      TEXT NOT NULL,
  listed               BOOLEAN NOT NULL DEFAULT TRUE,
  highest_bid_eth      DOUBLE PRECISION NOT NULL DEFAULT 0,
  highest_bidder       TEXT NOT NULL DEFAULT '',
  bid_count            INTEGER NOT NULL DEFAULT 0,
  created_at           BIGINT NOT NULL,
  updated_at           BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assets_owner ON assets(owner_wallet_address);
CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);

CREATE TABLE IF NOT EXISTS bids (
  id         TEXT PRIMARY KEY,
  asset_id   TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
  bidder     TEXT NOT NULL,
  amount_eth DOUBLE PRECISION NOT NULL CHECK (amount_eth > 0),
  placed_at  BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bids_asset ON bids(asset_id, placed_at);

CREATE TABLE IF NOT EXISTS purchases (
  id                   TEXT PRIMARY KEY,
  asset_id             TEXT NOT NULL REFERENCES assets(id) ON DELETE CASCADE,
  buyer                TEXT NOT NULL,
  seller               TEXT NOT NULL,
  price_eth            DOUBLE PRECISION NOT NULL CHECK (price_eth > 0),
  settlement_reference TEXT NOT NULL UNIQUE,
  purchased_at         BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchases_buyer ON purchases(buyer);
CREATE INDEX IF NOT EXISTS idx_purchases_seller ON purchases(seller);
`
