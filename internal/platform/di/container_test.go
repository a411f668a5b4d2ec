package di

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	httpin "assetmarket/internal/adapters/in/http"
	appcfg "assetmarket/internal/infra/config"
)

func sqliteConfig(t *testing.T) *appcfg.Config {
	t.Helper()
	return &appcfg.Config{
		Port:               "0",
		PersistenceBackend: appcfg.BackendSQLite,
		SQLitePath:         filepath.Join(t.TempDir(), "market.db"),
		ContentBackend:     appcfg.ContentNone,
		NotifyWorkers:      1,
		NotifyQueueSize:    8,
		NotifyTimeout:      time.Second,
		CacheTTLAssets:     time.Minute,
		CacheTTLAsset:      time.Minute,
		CacheTTLBalance:    time.Minute,
		CacheTTLStats:      time.Minute,
		CORSAllowedOrigins: []string{"*"},
	}
}

func call(t *testing.T, h http.Handler, method, path, body string, wantStatus int) map[string]any {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s = %d, want %d (body=%s)", method, path, rec.Code, wantStatus, rec.Body)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s %s: %v", method, path, err)
	}
	return out
}

func TestContainer_SQLiteEndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, err := NewContainer(ctx, sqliteConfig(t))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(context.Background()); err != nil {
			t.Fatalf("close: %v", err)
		}
	})

	h := httpin.NewRouter(c.RouterDeps())
	call(t, h, http.MethodGet, "/healthz", "", http.StatusOK)

	minted := call(t, h, http.MethodPost, "/assets", `{
		"imageReference": "file:///photos/aurora-7.jpg",
		"name": "Aurora #7",
		"category": "art",
		"price": 3.2,
		"saleType": "fixed",
		"royaltyPercent": 5,
		"supply": 1,
		"ownerWalletAddress": "0xowner"
	}`, http.StatusCreated)
	id, _ := minted["assetId"].(string)
	if id == "" || minted["tokenId"] == "" || minted["transactionHash"] == "" {
		t.Fatalf("mint outcome = %v", minted)
	}

	// warm the stats cache, then a bid must invalidate it
	stats := call(t, h, http.MethodGet, "/stats", "", http.StatusOK)
	if stats["assetCount"] != float64(1) || stats["bidCount"] != float64(0) {
		t.Fatalf("stats = %v", stats)
	}
	call(t, h, http.MethodPost, "/assets/"+id+"/bids", `{"bidderIdentity":"0xbidder","amountEth":1}`, http.StatusCreated)
	stats = call(t, h, http.MethodGet, "/stats", "", http.StatusOK)
	if stats["bidCount"] != float64(1) {
		t.Fatalf("stats after bid = %v", stats)
	}

	// rejected purchase leaves everything unchanged
	call(t, h, http.MethodPost, "/assets/"+id+"/purchase", `{"buyerWalletAddress":"0xbuyer","priceEth":1}`, http.StatusConflict)

	seller := call(t, h, http.MethodGet, "/wallets/0xowner/balance", "", http.StatusOK)
	if seller["proceedsEth"] != float64(0) {
		t.Fatalf("seller balance before sale = %v", seller)
	}

	receipt := call(t, h, http.MethodPost, "/assets/"+id+"/purchase", `{"buyerWalletAddress":"0xbuyer","priceEth":3.2}`, http.StatusOK)
	if receipt["seller"] != "0xowner" || receipt["settlementReference"] == "" {
		t.Fatalf("receipt = %v", receipt)
	}

	seller = call(t, h, http.MethodGet, "/wallets/0xowner/balance", "", http.StatusOK)
	if seller["proceedsEth"] != 3.2 {
		t.Fatalf("seller balance after sale = %v", seller)
	}
	asset := call(t, h, http.MethodGet, "/assets/"+id, "", http.StatusOK)
	if asset["ownerWalletAddress"] != "0xbuyer" || asset["listed"] != false {
		t.Fatalf("asset after sale = %v", asset)
	}

	call(t, h, http.MethodGet, "/assets/unknown", "", http.StatusNotFound)
}

func TestNewContainer_NilConfig(t *testing.T) {
	t.Parallel()

	if _, err := NewContainer(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
