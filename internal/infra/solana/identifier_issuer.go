// backend/internal/infra/solana/identifier_issuer.go
package solana

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	assetdom "assetmarket/internal/domain/asset"
)

// SyntheticIssuer はチェーンに問い合わせず、Solana 形式の識別子をローカルで生成します。
//   - TokenID         : 新規アカウントの公開鍵 (mint address 相当)
//   - ContractAddress : 新規アカウントの公開鍵 (program / collection 相当)
//   - TransactionHash : 64byte 乱数の base58 (signature 相当)
//
// 実チェーン連携に差し替える場合はこの型を置き換える。
type SyntheticIssuer struct{}

func NewSyntheticIssuer() *SyntheticIssuer { return &SyntheticIssuer{} }

func (SyntheticIssuer) Issue(ctx context.Context) (assetdom.SyntheticIdentifiers, error) {
	if err := ctx.Err(); err != nil {
		return assetdom.SyntheticIdentifiers{}, err
	}

	// types.NewAccount は 64byte の秘密鍵を持つ ed25519 アカウントを生成
	mint := types.NewAccount()
	program := types.NewAccount()

	sig := make([]byte, 64)
	if _, err := rand.Read(sig); err != nil {
		return assetdom.SyntheticIdentifiers{}, fmt.Errorf("solana: generate signature bytes: %w", err)
	}

	return assetdom.SyntheticIdentifiers{
		TokenID:         mint.PublicKey.ToBase58(),
		ContractAddress: program.PublicKey.ToBase58(),
		TransactionHash: base58.Encode(sig),
	}, nil
}

// IsBase58Address reports whether s decodes to a 32-byte public key.
func IsBase58Address(s string) bool {
	b, err := base58.Decode(s)
	return err == nil && len(b) == 32
}
