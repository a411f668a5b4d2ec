// backend/internal/infra/ids/ids.go
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a random record id.
func New() string {
	return uuid.NewString()
}

// SettlementReference returns the payment settlement reference attached to a purchase.
func SettlementReference() string {
	return "stl_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
