package marketplace

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"assetmarket/internal/application/cache"
	"assetmarket/internal/application/notify"
	assetdom "assetmarket/internal/domain/asset"
	notifdom "assetmarket/internal/domain/notification"
)

// ------------------------------------------------------------
// fakes
// ------------------------------------------------------------

type fakeContent struct {
	fileErr  error
	metaErr  error
	files    []string
	metadata []assetdom.MetadataDocument
}

func (f *fakeContent) UploadFile(_ context.Context, ref, name string) (assetdom.Content, error) {
	f.files = append(f.files, ref)
	if f.fileErr != nil {
		return assetdom.Content{}, f.fileErr
	}
	return assetdom.Content{ID: "QmImage" + name, URL: "https://gateway.test/ipfs/QmImage"}, nil
}

func (f *fakeContent) UploadMetadata(_ context.Context, doc assetdom.MetadataDocument) (assetdom.Content, error) {
	f.metadata = append(f.metadata, doc)
	if f.metaErr != nil {
		return assetdom.Content{}, f.metaErr
	}
	return assetdom.Content{ID: "QmMeta", URL: "https://gateway.test/ipfs/QmMeta"}, nil
}

type fakeStore struct {
	mu sync.Mutex

	createErr   error
	bidErr      error
	purchaseErr error

	created   []assetdom.CreateAssetInput
	bids      []assetdom.BidRequest
	purchases []assetdom.PurchaseRequest
	seq       int
}

func (s *fakeStore) CreateAsset(_ context.Context, in assetdom.CreateAssetInput) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return "", s.createErr
	}
	s.seq++
	s.created = append(s.created, in)
	return fmt.Sprintf("asset-%d", s.seq), nil
}

func (s *fakeStore) PlaceBid(_ context.Context, in assetdom.BidRequest) (assetdom.BidReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bids = append(s.bids, in)
	if s.bidErr != nil {
		return assetdom.BidReceipt{}, s.bidErr
	}
	return assetdom.BidReceipt{
		BidID:              "bid-1",
		AssetID:            in.AssetID,
		Bidder:             in.BidderIdentity,
		AmountETH:          in.AmountETH,
		OwnerWalletAddress: "0xowner",
		AssetName:          "Aurora #7",
		PlacedAt:           time.Now(),
	}, nil
}

func (s *fakeStore) PurchaseAsset(_ context.Context, in assetdom.PurchaseRequest) (assetdom.PurchaseReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purchases = append(s.purchases, in)
	if s.purchaseErr != nil {
		return assetdom.PurchaseReceipt{}, s.purchaseErr
	}
	return assetdom.PurchaseReceipt{
		PurchaseID:          "purchase-1",
		AssetID:             in.AssetID,
		Buyer:               in.BuyerWalletAddress,
		Seller:              "0xseller",
		PriceETH:            in.PriceETH,
		SettlementReference: "settle-123",
		AssetName:           "Aurora #7",
		PurchasedAt:         time.Now(),
	}, nil
}

type seqIssuer struct {
	n   int
	err error
}

func (i *seqIssuer) Issue(context.Context) (assetdom.SyntheticIdentifiers, error) {
	if i.err != nil {
		return assetdom.SyntheticIdentifiers{}, i.err
	}
	i.n++
	return assetdom.SyntheticIdentifiers{
		TokenID:         fmt.Sprintf("token-%d", i.n),
		ContractAddress: fmt.Sprintf("contract-%d", i.n),
		TransactionHash: fmt.Sprintf("tx-%d", i.n),
	}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifdom.Notification
}

func (n *recordingNotifier) Dispatch(x notifdom.Notification) {
	n.mu.Lock()
	n.sent = append(n.sent, x)
	n.mu.Unlock()
}

type panickingNotifier struct{}

func (panickingNotifier) Dispatch(notifdom.Notification) { panic("notifier exploded") }

type failingSender struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSender) Send(context.Context, notifdom.Notification) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errors.New("smtp unreachable")
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

type fixture struct {
	content  *fakeContent
	store    *fakeStore
	issuer   *seqIssuer
	cache    *cache.ReadCache
	notifier *recordingNotifier
	orch     *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		content:  &fakeContent{},
		store:    &fakeStore{},
		issuer:   &seqIssuer{},
		cache:    cache.New(),
		notifier: &recordingNotifier{},
	}
	f.orch = NewOrchestrator(f.content, f.store, f.issuer, f.cache, f.notifier)
	return f
}

// warm fills the cache so that staleness can be observed afterwards.
func (f *fixture) warm(t *testing.T, keys ...cache.Key) {
	t.Helper()
	for _, k := range keys {
		if _, err := f.cache.Get(context.Background(), k, func(context.Context) (any, error) {
			return "cached", nil
		}); err != nil {
			t.Fatalf("warm %s: %v", k, err)
		}
	}
}

func (f *fixture) wantState(t *testing.T, k cache.Key, want cache.EntryState) {
	t.Helper()
	if got := f.cache.State(k); got != want {
		t.Fatalf("state(%s) = %s, want %s", k, got, want)
	}
}

func auroraRequest() assetdom.MintRequest {
	return assetdom.MintRequest{
		ImageReference:     "file:///photos/aurora-7.jpg",
		Name:               "Aurora #7",
		Description:        "Limited print",
		Category:           "art",
		Price:              3.2,
		SaleType:           assetdom.SaleTypeFixed,
		RoyaltyPercent:     5,
		Supply:             1,
		OwnerWalletAddress: "0xabc123",
	}
}

// ------------------------------------------------------------
// Mint
// ------------------------------------------------------------

func TestMint_AuroraWithContentStorage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.warm(t, cache.AssetsKey(), cache.AssetKey("other"))

	out, err := f.orch.Mint(context.Background(), auroraRequest())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if out.AssetID != "asset-1" {
		t.Fatalf("assetId = %q, want asset-1", out.AssetID)
	}
	if out.ImageContentHash == "" {
		t.Fatal("imageIpfsHash is empty")
	}
	if out.TransactionHash == "" || out.TokenID == "" || out.ContractAddress == "" {
		t.Fatalf("identifiers missing: %+v", out)
	}
	f.wantState(t, cache.AssetsKey(), cache.StateStale)
	f.wantState(t, cache.AssetKey("other"), cache.StateFresh)

	if got := f.store.created[0].ImageURL; got != "https://gateway.test/ipfs/QmImage" {
		t.Fatalf("persisted image = %q", got)
	}
	if doc := f.content.metadata[0]; doc.Image != "https://gateway.test/ipfs/QmImage" || doc.SellerFeeBasisPoints != 500 {
		t.Fatalf("metadata doc = %+v", doc)
	}
}

func TestMint_ContentStorageDownStillSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.content.fileErr = errors.New("pinning unreachable")
	f.content.metaErr = errors.New("pinning unreachable")
	f.warm(t, cache.AssetsKey())

	req := auroraRequest()
	out, err := f.orch.Mint(context.Background(), req)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if out.AssetID != "asset-1" {
		t.Fatalf("assetId = %q, want asset-1", out.AssetID)
	}
	if out.ImageContentHash != "" {
		t.Fatalf("imageIpfsHash = %q, want empty", out.ImageContentHash)
	}
	if out.ImageURL != req.ImageReference || f.store.created[0].ImageURL != req.ImageReference {
		t.Fatalf("image reference changed: outcome=%q persisted=%q", out.ImageURL, f.store.created[0].ImageURL)
	}
	f.wantState(t, cache.AssetsKey(), cache.StateStale)
}

func TestMint_WithoutContentGatewaySkipsUploads(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	orch := NewOrchestrator(nil, store, &seqIssuer{}, cache.New(), nil)

	out, err := orch.Mint(context.Background(), auroraRequest())
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if out.ImageURL != auroraRequest().ImageReference || out.MetadataURL != "" {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestMint_PersistenceFailureDoesNotInvalidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.createErr = errors.New("firestore: deadline exceeded")
	f.warm(t, cache.AssetsKey())

	_, err := f.orch.Mint(context.Background(), auroraRequest())
	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}
	if !strings.Contains(pe.Message, "deadline exceeded") {
		t.Fatalf("message = %q, want gateway message", pe.Message)
	}
	f.wantState(t, cache.AssetsKey(), cache.StateFresh)
}

func TestMint_IssuerFailureAbortsBeforePersist(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.issuer.err = errors.New("rng exhausted")

	_, err := f.orch.Mint(context.Background(), auroraRequest())
	if !errors.Is(err, ErrIdentifierIssuance) {
		t.Fatalf("err = %v, want ErrIdentifierIssuance", err)
	}
	if len(f.store.created) != 0 {
		t.Fatalf("created = %d, want 0", len(f.store.created))
	}
}

func TestMint_IsNotIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a, err := f.orch.Mint(context.Background(), auroraRequest())
	if err != nil {
		t.Fatalf("first mint: %v", err)
	}
	b, err := f.orch.Mint(context.Background(), auroraRequest())
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if a.AssetID == b.AssetID || a.TokenID == b.TokenID {
		t.Fatalf("expected distinct records, got %+v and %+v", a, b)
	}
}

func TestMint_InvalidRequestTouchesNoGateway(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*assetdom.MintRequest)
	}{
		{name: "empty name", mutate: func(r *assetdom.MintRequest) { r.Name = " " }},
		{name: "zero price", mutate: func(r *assetdom.MintRequest) { r.Price = 0 }},
		{name: "royalty over 100", mutate: func(r *assetdom.MintRequest) { r.RoyaltyPercent = 101 }},
		{name: "zero supply", mutate: func(r *assetdom.MintRequest) { r.Supply = 0 }},
		{name: "no owner", mutate: func(r *assetdom.MintRequest) { r.OwnerWalletAddress = "" }},
		{name: "bad sale type", mutate: func(r *assetdom.MintRequest) { r.SaleType = "barter" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			req := auroraRequest()
			tt.mutate(&req)

			_, err := f.orch.Mint(context.Background(), req)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
			if len(f.content.files) != 0 || len(f.store.created) != 0 || f.issuer.n != 0 {
				t.Fatal("gateway called for invalid request")
			}
		})
	}
}

// ------------------------------------------------------------
// PlaceBid
// ------------------------------------------------------------

func TestPlaceBid_InvalidatesAndNotifiesOwner(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.warm(t, cache.AssetKey("a1"), cache.AssetsKey(), cache.AssetKey("a2"), cache.WalletBalanceKey("0xbidder"))

	receipt, err := f.orch.PlaceBid(context.Background(), assetdom.BidRequest{
		AssetID: "a1", BidderIdentity: "0xbidder", AmountETH: 1.5,
	})
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if receipt.BidID != "bid-1" {
		t.Fatalf("receipt = %+v", receipt)
	}
	f.wantState(t, cache.AssetKey("a1"), cache.StateStale)
	f.wantState(t, cache.AssetsKey(), cache.StateStale)
	f.wantState(t, cache.AssetKey("a2"), cache.StateFresh)
	f.wantState(t, cache.WalletBalanceKey("0xbidder"), cache.StateFresh)

	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.Kind != notifdom.KindBidReceived || n.Recipient != "0xowner" || n.Payload["amountEth"] != "1.5" {
		t.Fatalf("notification = %+v", n)
	}
}

func TestPlaceBid_GatewayVerdicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		gatewayErr error
		check      func(t *testing.T, err error)
	}{
		{
			name:       "rejection",
			gatewayErr: assetdom.Reject("bid 1 must exceed current high bid 2"),
			check: func(t *testing.T, err error) {
				var br *BidRejected
				if !errors.As(err, &br) || br.Reason != "bid 1 must exceed current high bid 2" {
					t.Fatalf("err = %v, want BidRejected", err)
				}
			},
		},
		{
			name:       "not found",
			gatewayErr: fmt.Errorf("load: %w", assetdom.ErrNotFound),
			check: func(t *testing.T, err error) {
				var br *BidRejected
				if !errors.As(err, &br) || br.Reason != "asset not found" {
					t.Fatalf("err = %v, want BidRejected(asset not found)", err)
				}
			},
		},
		{
			name:       "infrastructure",
			gatewayErr: errors.New("connection reset"),
			check: func(t *testing.T, err error) {
				var pe *PersistenceError
				if !errors.As(err, &pe) || pe.Op != "placeBid" {
					t.Fatalf("err = %v, want PersistenceError", err)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			f.store.bidErr = tt.gatewayErr
			f.warm(t, cache.AssetKey("a1"), cache.AssetsKey())

			_, err := f.orch.PlaceBid(context.Background(), assetdom.BidRequest{
				AssetID: "a1", BidderIdentity: "0xbidder", AmountETH: 1,
			})
			tt.check(t, err)
			f.wantState(t, cache.AssetKey("a1"), cache.StateFresh)
			f.wantState(t, cache.AssetsKey(), cache.StateFresh)
			if len(f.notifier.sent) != 0 {
				t.Fatalf("notifications = %d, want 0", len(f.notifier.sent))
			}
		})
	}
}

// ------------------------------------------------------------
// PurchaseAsset
// ------------------------------------------------------------

func TestPurchaseAsset_InvalidatesBalancesAndNotifiesSeller(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.warm(t,
		cache.AssetKey("a1"),
		cache.AssetsKey(),
		cache.AssetsKey("category=art"),
		cache.WalletBalanceKey("0xdef"),
		cache.WalletBalanceKey("0xseller"),
		cache.WalletBalanceKey("0xbystander"),
		cache.PlatformStatsKey(),
	)

	receipt, err := f.orch.PurchaseAsset(context.Background(), assetdom.PurchaseRequest{
		AssetID: "a1", BuyerWalletAddress: "0xdef", PriceETH: 1.8,
	})
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if receipt.SettlementReference != "settle-123" {
		t.Fatalf("receipt = %+v", receipt)
	}
	for _, k := range []cache.Key{
		cache.AssetKey("a1"),
		cache.AssetsKey(),
		cache.AssetsKey("category=art"),
		cache.WalletBalanceKey("0xdef"),
		cache.WalletBalanceKey("0xseller"),
		cache.PlatformStatsKey(),
	} {
		f.wantState(t, k, cache.StateStale)
	}
	f.wantState(t, cache.WalletBalanceKey("0xbystander"), cache.StateFresh)

	if len(f.notifier.sent) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.sent))
	}
	n := f.notifier.sent[0]
	if n.Kind != notifdom.KindAssetSold || n.Recipient != "0xseller" || n.Payload["settlementReference"] != "settle-123" {
		t.Fatalf("notification = %+v", n)
	}
}

func TestPurchaseAsset_InsufficientListingRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.purchaseErr = assetdom.Reject("insufficient listing")
	f.warm(t, cache.AssetKey("a1"), cache.AssetsKey(), cache.WalletBalanceKey("0xdef"))

	var observed []cache.Key
	f.cache.OnInvalidate(func(keys []cache.Key) { observed = append(observed, keys...) })

	_, err := f.orch.PurchaseAsset(context.Background(), assetdom.PurchaseRequest{
		AssetID: "a1", BuyerWalletAddress: "0xdef", PriceETH: 1.8,
	})
	var pr *PurchaseRejected
	if !errors.As(err, &pr) {
		t.Fatalf("err = %v, want PurchaseRejected", err)
	}
	if err.Error() != "insufficient listing" {
		t.Fatalf("message = %q, want insufficient listing", err.Error())
	}
	if len(observed) != 0 {
		t.Fatalf("invalidated %v, want none", observed)
	}
	f.wantState(t, cache.WalletBalanceKey("0xdef"), cache.StateFresh)
	if len(f.notifier.sent) != 0 {
		t.Fatalf("notifications = %d, want 0", len(f.notifier.sent))
	}
}

func TestPurchaseAsset_InfrastructureFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.store.purchaseErr = errors.New("tx aborted")

	_, err := f.orch.PurchaseAsset(context.Background(), assetdom.PurchaseRequest{
		AssetID: "a1", BuyerWalletAddress: "0xdef", PriceETH: 1.8,
	})
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Message != "tx aborted" {
		t.Fatalf("err = %v, want PersistenceError(tx aborted)", err)
	}
	if IsRejected(err) {
		t.Fatal("infrastructure failure reported as rejection")
	}
}

// ------------------------------------------------------------
// notification independence
// ------------------------------------------------------------

func TestNotificationFailureDoesNotChangeResult(t *testing.T) {
	t.Parallel()

	bid := assetdom.BidRequest{AssetID: "a1", BidderIdentity: "0xbidder", AmountETH: 2}
	buy := assetdom.PurchaseRequest{AssetID: "a1", BuyerWalletAddress: "0xdef", PriceETH: 2}

	baseline := NewOrchestrator(nil, &fakeStore{}, &seqIssuer{}, cache.New(), &recordingNotifier{})
	wantBid, err := baseline.PlaceBid(context.Background(), bid)
	if err != nil {
		t.Fatalf("baseline bid: %v", err)
	}
	wantBuy, err := baseline.PurchaseAsset(context.Background(), buy)
	if err != nil {
		t.Fatalf("baseline purchase: %v", err)
	}

	sender := &failingSender{}
	dispatcher := notify.NewDispatcher(sender, notify.Config{Workers: 1, QueueSize: 4}, func(notifdom.Notification, error) {})

	for name, n := range map[string]Notifier{
		"panicking": panickingNotifier{},
		"failing":   dispatcher,
	} {
		orch := NewOrchestrator(nil, &fakeStore{}, &seqIssuer{}, cache.New(), n)

		gotBid, err := orch.PlaceBid(context.Background(), bid)
		if err != nil {
			t.Fatalf("%s bid: %v", name, err)
		}
		if gotBid.BidID != wantBid.BidID || gotBid.AmountETH != wantBid.AmountETH || gotBid.OwnerWalletAddress != wantBid.OwnerWalletAddress {
			t.Fatalf("%s bid = %+v, want %+v", name, gotBid, wantBid)
		}
		gotBuy, err := orch.PurchaseAsset(context.Background(), buy)
		if err != nil {
			t.Fatalf("%s purchase: %v", name, err)
		}
		if gotBuy.PurchaseID != wantBuy.PurchaseID || gotBuy.SettlementReference != wantBuy.SettlementReference {
			t.Fatalf("%s purchase = %+v, want %+v", name, gotBuy, wantBuy)
		}
	}

	if err := dispatcher.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sender.calls != 2 {
		t.Fatalf("sender calls = %d, want 2", sender.calls)
	}
}

func TestOrchestrator_NotConfigured(t *testing.T) {
	t.Parallel()

	var o *Orchestrator
	if _, err := o.Mint(context.Background(), auroraRequest()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("nil orchestrator err = %v", err)
	}
	o = NewOrchestrator(nil, nil, &seqIssuer{}, cache.New(), nil)
	if _, err := o.PlaceBid(context.Background(), assetdom.BidRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("missing store err = %v", err)
	}
}

func TestMetadataBuilder_Build(t *testing.T) {
	t.Parallel()

	doc := NewMetadataBuilder().Build(auroraRequest(), "https://img")
	if doc.Name != "Aurora #7" || doc.Image != "https://img" || doc.SellerFeeBasisPoints != 500 {
		t.Fatalf("doc = %+v", doc)
	}
	traits := map[string]any{}
	for _, a := range doc.Attributes {
		traits[a.TraitType] = a.Value
	}
	if traits["category"] != "art" || traits["supply"] != 1 || traits["saleType"] != "fixed" {
		t.Fatalf("attributes = %+v", doc.Attributes)
	}
}
