// backend/internal/adapters/in/http/handlers/asset_handler.go
package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	assetdom "assetmarket/internal/domain/asset"
)

// MarketplaceService is the write side the handler needs.
type MarketplaceService interface {
	Mint(ctx context.Context, req assetdom.MintRequest) (assetdom.MintOutcome, error)
	PlaceBid(ctx context.Context, req assetdom.BidRequest) (assetdom.BidReceipt, error)
	PurchaseAsset(ctx context.Context, req assetdom.PurchaseRequest) (assetdom.PurchaseReceipt, error)
}

type AssetHandler struct {
	svc MarketplaceService
}

func NewAssetHandler(svc MarketplaceService) *AssetHandler {
	return &AssetHandler{svc: svc}
}

type mintBody struct {
	ImageReference     string  `json:"imageReference"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	Category           string  `json:"category"`
	Price              float64 `json:"price"`
	SaleType           string  `json:"saleType"`
	RoyaltyPercent     float64 `json:"royaltyPercent"`
	Supply             int     `json:"supply"`
	OwnerWalletAddress string  `json:"ownerWalletAddress"`
}

type bidBody struct {
	BidderIdentity string  `json:"bidderIdentity"`
	AmountETH      float64 `json:"amountEth"`
}

type purchaseBody struct {
	BuyerWalletAddress string  `json:"buyerWalletAddress"`
	PriceETH           float64 `json:"priceEth"`
}

// POST /assets
func (h *AssetHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var b mintBody
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.svc.Mint(r.Context(), assetdom.MintRequest{
		ImageReference:     b.ImageReference,
		Name:               b.Name,
		Description:        b.Description,
		Category:           b.Category,
		Price:              b.Price,
		SaleType:           assetdom.SaleType(b.SaleType),
		RoyaltyPercent:     b.RoyaltyPercent,
		Supply:             b.Supply,
		OwnerWalletAddress: b.OwnerWalletAddress,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("[asset_handler] minted assetId=%s", out.AssetID)
	writeJSON(w, http.StatusCreated, out)
}

// POST /assets/{id}/bids
func (h *AssetHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var b bidBody
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.svc.PlaceBid(r.Context(), assetdom.BidRequest{
		AssetID:        chi.URLParam(r, "id"),
		BidderIdentity: b.BidderIdentity,
		AmountETH:      b.AmountETH,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

// POST /assets/{id}/purchase
func (h *AssetHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var b purchaseBody
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, err)
		return
	}

	receipt, err := h.svc.PurchaseAsset(r.Context(), assetdom.PurchaseRequest{
		AssetID:            chi.URLParam(r, "id"),
		BuyerWalletAddress: b.BuyerWalletAddress,
		PriceETH:           b.PriceETH,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
