// backend/internal/adapters/in/http/handlers/catalog_handler.go
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"assetmarket/internal/application/query"
	assetdom "assetmarket/internal/domain/asset"
)

// CatalogService is the cached read side.
type CatalogService interface {
	ListAssets(ctx context.Context, f assetdom.Filter) ([]query.AssetDTO, error)
	GetAsset(ctx context.Context, id string) (query.AssetDTO, error)
	ListBids(ctx context.Context, assetID string) ([]query.BidDTO, error)
	WalletBalance(ctx context.Context, address string) (assetdom.WalletBalance, error)
	PlatformStats(ctx context.Context) (assetdom.PlatformStats, error)
}

type CatalogHandler struct {
	q CatalogService
}

func NewCatalogHandler(q CatalogService) *CatalogHandler {
	return &CatalogHandler{q: q}
}

// GET /assets?owner=&category=&saleType=&listed=true
func (h *CatalogHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	f := assetdom.Filter{
		OwnerWalletAddress: qs.Get("owner"),
		Category:           qs.Get("category"),
		SaleType:           assetdom.SaleType(qs.Get("saleType")),
		ListedOnly:         parseBool(qs.Get("listed")),
	}
	items, err := h.q.ListAssets(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// GET /assets/{id}
func (h *CatalogHandler) GetAsset(w http.ResponseWriter, r *http.Request) {
	a, err := h.q.GetAsset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// GET /assets/{id}/bids
func (h *CatalogHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	bids, err := h.q.ListBids(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": bids})
}

// GET /wallets/{address}/balance
func (h *CatalogHandler) WalletBalance(w http.ResponseWriter, r *http.Request) {
	b, err := h.q.WalletBalance(r.Context(), chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /stats
func (h *CatalogHandler) PlatformStats(w http.ResponseWriter, r *http.Request) {
	s, err := h.q.PlatformStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
