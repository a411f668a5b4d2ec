// backend/internal/application/cache/key.go
package cache

import (
	"strings"
)

// Key identifies one memoized read as an ordered tuple.
// A key matches every entry it is a prefix of, so Key{"walletBalance"}
// matches all wallet balances and Key{"assets"} matches every listing variant.
type Key []string

const (
	FamilyAssets        = "assets"
	FamilyAsset         = "asset"
	FamilyWalletBalance = "walletBalance"
	FamilyPlatformStats = "platformStats"
)

const keySep = "\x1f"

func AssetsKey(variant ...string) Key {
	return append(Key{FamilyAssets}, variant...)
}

func AssetKey(id string) Key {
	return Key{FamilyAsset, strings.TrimSpace(id)}
}

// WalletBalanceKey lower-cases the address; wallets compare case-insensitively.
func WalletBalanceKey(address string) Key {
	return Key{FamilyWalletBalance, strings.ToLower(strings.TrimSpace(address))}
}

func PlatformStatsKey() Key {
	return Key{FamilyPlatformStats}
}

// Family is the first tuple element ("" for an empty key).
func (k Key) Family() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// HasPrefix reports whether p is a prefix of k.
func (k Key) HasPrefix(p Key) bool {
	if len(p) == 0 || len(p) > len(k) {
		return false
	}
	for i := range p {
		if k[i] != p[i] {
			return false
		}
	}
	return true
}

func (k Key) Equal(o Key) bool {
	return len(k) == len(o) && k.HasPrefix(o)
}

func (k Key) String() string {
	quoted := make([]string, len(k))
	for i, p := range k {
		quoted[i] = "'" + p + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func (k Key) id() string {
	return strings.Join(k, keySep)
}

// Keys is a small ordered set helper used by mutations to declare what they touch.
type Keys []Key

// Add appends k unless an equal key is already present.
func (ks Keys) Add(k Key) Keys {
	for _, existing := range ks {
		if existing.Equal(k) {
			return ks
		}
	}
	return append(ks, k)
}

func (ks Keys) Contains(k Key) bool {
	for _, existing := range ks {
		if existing.Equal(k) {
			return true
		}
	}
	return false
}
