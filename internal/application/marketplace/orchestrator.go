// backend/internal/application/marketplace/orchestrator.go
package marketplace

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"assetmarket/internal/application/cache"
	assetdom "assetmarket/internal/domain/asset"
	notifdom "assetmarket/internal/domain/notification"
)

var tracer = otel.Tracer("assetmarket/marketplace")

// ============================================================
// Orchestrator 本体
// ============================================================

// Orchestrator sequences content storage, persistence, cache invalidation and
// notification for the three asset mutations: Mint, PlaceBid, PurchaseAsset.
//
// It enforces no business rule itself; the persistence gateway's verdict is final.
type Orchestrator struct {
	content  ContentGateway // nil: upload stages are skipped
	store    PersistenceGateway
	issuer   IdentifierIssuer
	cache    Invalidator
	notifier Notifier // nil: no notifications
	metadata *MetadataBuilder
	now      func() time.Time
}

func NewOrchestrator(
	content ContentGateway,
	store PersistenceGateway,
	issuer IdentifierIssuer,
	invalidator Invalidator,
	notifier Notifier,
) *Orchestrator {
	return &Orchestrator{
		content:  content,
		store:    store,
		issuer:   issuer,
		cache:    invalidator,
		notifier: notifier,
		metadata: NewMetadataBuilder(),
		now:      time.Now,
	}
}

func (o *Orchestrator) ready() error {
	if o == nil || o.store == nil || o.issuer == nil || o.cache == nil {
		return ErrNotConfigured
	}
	return nil
}

// ============================================================
// Mint
// ============================================================

type mintState struct {
	req assetdom.MintRequest

	imageURL    string
	imageHash   string
	metadataURL string
	contentHash string
	ids         assetdom.SyntheticIdentifiers
	assetID     string
}

func (o *Orchestrator) mintStages() []stage[mintState] {
	return []stage[mintState]{
		{name: "upload-image", required: false, run: o.uploadImage},
		{name: "upload-metadata", required: false, run: o.uploadMetadata},
		{name: "issue-identifiers", required: true, run: o.issueIdentifiers},
		{name: "persist", required: true, run: o.persistAsset},
	}
}

// Mint creates one asset record. Content uploads are best effort; identifier
// issuance and persistence are load-bearing. Mint is not idempotent: two calls
// with the same request create two records.
func (o *Orchestrator) Mint(ctx context.Context, req assetdom.MintRequest) (assetdom.MintOutcome, error) {
	if err := o.ready(); err != nil {
		return assetdom.MintOutcome{}, err
	}
	if err := req.Validate(); err != nil {
		return assetdom.MintOutcome{}, invalid(err)
	}

	ctx, span := tracer.Start(ctx, "marketplace.Mint", trace.WithAttributes(
		attribute.String("asset.name", req.Name),
		attribute.String("asset.owner", req.OwnerWalletAddress),
	))
	defer span.End()

	st := &mintState{
		req:      req,
		imageURL: strings.TrimSpace(req.ImageReference),
	}
	log.Printf("[mint] start name=%q owner=%q", req.Name, req.OwnerWalletAddress)

	if err := runStages(ctx, "mint", o.mintStages(), st); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return assetdom.MintOutcome{}, err
	}

	touched := o.cache.Invalidate(
		cache.AssetsKey(),
		cache.PlatformStatsKey(),
		cache.WalletBalanceKey(req.OwnerWalletAddress),
	)
	log.Printf("[mint] done assetId=%q tokenId=%q invalidated=%d", st.assetID, st.ids.TokenID, len(touched))
	span.SetAttributes(attribute.String("asset.id", st.assetID))

	return assetdom.MintOutcome{
		AssetID:          st.assetID,
		TokenID:          st.ids.TokenID,
		ContractAddress:  st.ids.ContractAddress,
		ContentHash:      st.contentHash,
		ImageContentHash: st.imageHash,
		TransactionHash:  st.ids.TransactionHash,
		ImageURL:         st.imageURL,
		MetadataURL:      st.metadataURL,
	}, nil
}

func (o *Orchestrator) uploadImage(ctx context.Context, st *mintState) error {
	if o.content == nil {
		return errStageSkipped
	}
	c, err := o.content.UploadFile(ctx, st.req.ImageReference, st.req.Name)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("content gateway returned empty url")
	}
	st.imageURL = c.URL
	st.imageHash = c.ID
	return nil
}

func (o *Orchestrator) uploadMetadata(ctx context.Context, st *mintState) error {
	if o.content == nil {
		return errStageSkipped
	}
	doc := o.metadata.Build(st.req, st.imageURL)
	c, err := o.content.UploadMetadata(ctx, doc)
	if err != nil {
		return err
	}
	st.metadataURL = c.URL
	st.contentHash = c.ID
	return nil
}

func (o *Orchestrator) issueIdentifiers(ctx context.Context, st *mintState) error {
	ids, err := o.issuer.Issue(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIdentifierIssuance, err)
	}
	if strings.TrimSpace(ids.TokenID) == "" || strings.TrimSpace(ids.ContractAddress) == "" {
		return fmt.Errorf("%w: empty token id or contract address", ErrIdentifierIssuance)
	}
	st.ids = ids
	return nil
}

func (o *Orchestrator) persistAsset(ctx context.Context, st *mintState) error {
	in := assetdom.CreateAssetInput{
		Name:               st.req.Name,
		Description:        st.req.Description,
		Category:           st.req.Category,
		PriceETH:           st.req.Price,
		SaleType:           st.req.SaleType,
		RoyaltyPercent:     st.req.RoyaltyPercent,
		Supply:             st.req.Supply,
		ImageURL:           st.imageURL,
		ImageContentHash:   st.imageHash,
		MetadataURL:        st.metadataURL,
		ContentHash:        st.contentHash,
		TokenID:            st.ids.TokenID,
		ContractAddress:    st.ids.ContractAddress,
		TransactionHash:    st.ids.TransactionHash,
		OwnerWalletAddress: st.req.OwnerWalletAddress,
	}
	id, err := o.store.CreateAsset(ctx, in)
	if err != nil {
		return persistenceFailure("createAsset", err)
	}
	if strings.TrimSpace(id) == "" {
		return &PersistenceError{Op: "createAsset", Message: "gateway returned empty asset id"}
	}
	st.assetID = id
	return nil
}

// ============================================================
// PlaceBid
// ============================================================

// PlaceBid records one bid. On success the asset and listing keys are stale
// before it returns and the owner is notified without waiting.
func (o *Orchestrator) PlaceBid(ctx context.Context, req assetdom.BidRequest) (assetdom.BidReceipt, error) {
	if err := o.ready(); err != nil {
		return assetdom.BidReceipt{}, err
	}
	if err := req.Validate(); err != nil {
		return assetdom.BidReceipt{}, invalid(err)
	}

	ctx, span := tracer.Start(ctx, "marketplace.PlaceBid", trace.WithAttributes(
		attribute.String("asset.id", req.AssetID),
		attribute.String("bid.bidder", req.BidderIdentity),
		attribute.Float64("bid.amount_eth", req.AmountETH),
	))
	defer span.End()

	start := time.Now()
	receipt, err := o.store.PlaceBid(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if reason, ok := rejectionReason(err); ok {
			log.Printf("[bid] rejected assetId=%q bidder=%q reason=%q", req.AssetID, req.BidderIdentity, reason)
			return assetdom.BidReceipt{}, &BidRejected{Reason: reason}
		}
		log.Printf("[bid] persist failed assetId=%q err=%v", req.AssetID, err)
		return assetdom.BidReceipt{}, persistenceFailure("placeBid", err)
	}

	touched := o.cache.Invalidate(
		cache.AssetKey(req.AssetID),
		cache.AssetsKey(),
		cache.PlatformStatsKey(),
	)
	log.Printf("[bid] ok assetId=%q bidId=%q amount=%g invalidated=%d elapsed=%s",
		req.AssetID, receipt.BidID, receipt.AmountETH, len(touched), time.Since(start))

	o.notify(notifdom.KindBidReceived, receipt.OwnerWalletAddress, map[string]string{
		"assetId":   req.AssetID,
		"assetName": receipt.AssetName,
		"bidId":     receipt.BidID,
		"bidder":    receipt.Bidder,
		"amountEth": formatETH(receipt.AmountETH),
	})
	return receipt, nil
}

// ============================================================
// PurchaseAsset
// ============================================================

// PurchaseAsset transfers ownership and settles payment through the
// persistence gateway. On success the asset, listing, both wallet balances
// and platform stats are stale before it returns and the seller is notified
// with the settlement reference.
func (o *Orchestrator) PurchaseAsset(ctx context.Context, req assetdom.PurchaseRequest) (assetdom.PurchaseReceipt, error) {
	if err := o.ready(); err != nil {
		return assetdom.PurchaseReceipt{}, err
	}
	if err := req.Validate(); err != nil {
		return assetdom.PurchaseReceipt{}, invalid(err)
	}

	ctx, span := tracer.Start(ctx, "marketplace.PurchaseAsset", trace.WithAttributes(
		attribute.String("asset.id", req.AssetID),
		attribute.String("purchase.buyer", req.BuyerWalletAddress),
		attribute.Float64("purchase.price_eth", req.PriceETH),
	))
	defer span.End()

	start := time.Now()
	receipt, err := o.store.PurchaseAsset(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if reason, ok := rejectionReason(err); ok {
			log.Printf("[purchase] rejected assetId=%q buyer=%q reason=%q", req.AssetID, req.BuyerWalletAddress, reason)
			return assetdom.PurchaseReceipt{}, &PurchaseRejected{Reason: reason}
		}
		log.Printf("[purchase] persist failed assetId=%q err=%v", req.AssetID, err)
		return assetdom.PurchaseReceipt{}, persistenceFailure("purchaseAsset", err)
	}

	buyer := receipt.Buyer
	if buyer == "" {
		buyer = req.BuyerWalletAddress
	}
	keys := cache.Keys{}.
		Add(cache.AssetKey(req.AssetID)).
		Add(cache.AssetsKey()).
		Add(cache.WalletBalanceKey(buyer)).
		Add(cache.PlatformStatsKey())
	if receipt.Seller != "" {
		keys = keys.Add(cache.WalletBalanceKey(receipt.Seller))
	}
	touched := o.cache.Invalidate(keys...)
	log.Printf("[purchase] ok assetId=%q purchaseId=%q settlement=%q invalidated=%d elapsed=%s",
		req.AssetID, receipt.PurchaseID, receipt.SettlementReference, len(touched), time.Since(start))

	o.notify(notifdom.KindAssetSold, receipt.Seller, map[string]string{
		"assetId":             req.AssetID,
		"assetName":           receipt.AssetName,
		"purchaseId":          receipt.PurchaseID,
		"buyer":               buyer,
		"priceEth":            formatETH(receipt.PriceETH),
		"settlementReference": receipt.SettlementReference,
	})
	return receipt, nil
}

// ============================================================
// helpers
// ============================================================

// notify hands a notification to the dispatcher. Nothing it does can change
// the result of the mutation that triggered it.
func (o *Orchestrator) notify(kind notifdom.Kind, recipient string, payload map[string]string) {
	if o.notifier == nil {
		return
	}
	if strings.TrimSpace(recipient) == "" {
		log.Printf("[notify] skip kind=%s reason=no recipient assetId=%q", kind, payload["assetId"])
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[notify] PANIC in dispatch kind=%s: %v", kind, rec)
		}
	}()
	o.notifier.Dispatch(notifdom.New(kind, recipient, payload, o.now()))
}

func formatETH(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
