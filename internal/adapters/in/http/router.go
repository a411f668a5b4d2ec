// backend/internal/adapters/in/http/router.go
package httpin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"assetmarket/internal/adapters/in/http/handlers"
	"assetmarket/internal/adapters/in/http/middleware"
)

// RouterDeps collects everything injected from the container.
type RouterDeps struct {
	Marketplace    handlers.MarketplaceService
	Catalog        handlers.CatalogService
	AllowedOrigins []string

	// Health is optional; nil always reports ok.
	Health func(ctx context.Context) error
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// チェーン順: CORS → Recover → 本体
	r.Use(middleware.CORS(deps.AllowedOrigins))
	r.Use(middleware.Recover)
	r.Use(chimw.RequestID)
	r.Use(middleware.AccessLog)

	r.Get("/healthz", healthHandler(deps.Health))

	assetsH := handlers.NewAssetHandler(deps.Marketplace)
	catalogH := handlers.NewCatalogHandler(deps.Catalog)

	r.Route("/assets", func(r chi.Router) {
		r.Get("/", catalogH.ListAssets)
		r.Post("/", assetsH.Mint)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", catalogH.GetAsset)
			r.Get("/bids", catalogH.ListBids)
			r.Post("/bids", assetsH.PlaceBid)
			r.Post("/purchase", assetsH.Purchase)
		})
	})
	r.Get("/wallets/{address}/balance", catalogH.WalletBalance)
	r.Get("/stats", catalogH.PlatformStats)

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
