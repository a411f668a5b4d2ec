// backend/internal/application/marketplace/ports.go
package marketplace

import (
	"context"

	"assetmarket/internal/application/cache"
	assetdom "assetmarket/internal/domain/asset"
	notifdom "assetmarket/internal/domain/notification"
)

// ============================================================
// Ports (outbound)
// ============================================================

// ContentGateway stores a file or document and returns a content-derived id
// plus a retrieval URL. Failures are tolerated by the caller.
type ContentGateway interface {
	UploadFile(ctx context.Context, ref, name string) (assetdom.Content, error)
	UploadMetadata(ctx context.Context, doc assetdom.MetadataDocument) (assetdom.Content, error)
}

// PersistenceGateway owns asset/bid/purchase records and every business rule
// attached to them. Business refusals come back as *asset.RejectionError.
type PersistenceGateway interface {
	CreateAsset(ctx context.Context, in assetdom.CreateAssetInput) (string, error)
	PlaceBid(ctx context.Context, in assetdom.BidRequest) (assetdom.BidReceipt, error)
	PurchaseAsset(ctx context.Context, in assetdom.PurchaseRequest) (assetdom.PurchaseReceipt, error)
}

// Notifier accepts a notification and returns without waiting for delivery.
type Notifier interface {
	Dispatch(n notifdom.Notification)
}

// IdentifierIssuer hands out token id / contract address / tx hash for a mint.
// The default implementation is synthetic; a ledger-backed one can replace it.
type IdentifierIssuer interface {
	Issue(ctx context.Context) (assetdom.SyntheticIdentifiers, error)
}

// Invalidator marks cached reads stale. *cache.ReadCache implements it.
type Invalidator interface {
	Invalidate(keys ...cache.Key) []cache.Key
}
