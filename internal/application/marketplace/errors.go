// backend/internal/application/marketplace/errors.go
package marketplace

import (
	"errors"
	"fmt"

	assetdom "assetmarket/internal/domain/asset"
)

var (
	// ErrInvalidRequest wraps every input validation failure.
	ErrInvalidRequest = errors.New("marketplace: invalid request")

	// ErrIdentifierIssuance means no token identifiers could be issued; the mint aborts.
	ErrIdentifierIssuance = errors.New("marketplace: identifier issuance failed")

	ErrNotConfigured = errors.New("marketplace: orchestrator is not configured")
)

// PersistenceError is a fatal infrastructure failure of the persistence gateway.
// Message is the gateway's own message, surfaced to the caller as is.
type PersistenceError struct {
	Op      string
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.Op == "" {
		return "persistence: " + e.Message
	}
	return fmt.Sprintf("persistence %s: %s", e.Op, e.Message)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// BidRejected is the gateway refusing a bid for a business reason.
type BidRejected struct {
	Reason string
}

func (e *BidRejected) Error() string { return e.Reason }

// PurchaseRejected is the gateway refusing a purchase for a business reason.
type PurchaseRejected struct {
	Reason string
}

func (e *PurchaseRejected) Error() string { return e.Reason }

// IsRejected reports whether err is a BidRejected or PurchaseRejected.
func IsRejected(err error) bool {
	var b *BidRejected
	var p *PurchaseRejected
	return errors.As(err, &b) || errors.As(err, &p)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
}

// rejectionReason returns the business reason carried by a gateway error,
// or ok=false when err is an infrastructure failure.
func rejectionReason(err error) (string, bool) {
	var rej *assetdom.RejectionError
	if errors.As(err, &rej) {
		return rej.Reason, true
	}
	if errors.Is(err, assetdom.ErrNotFound) {
		return "asset not found", true
	}
	return "", false
}

func persistenceFailure(op string, err error) error {
	return &PersistenceError{Op: op, Message: err.Error(), Err: err}
}
