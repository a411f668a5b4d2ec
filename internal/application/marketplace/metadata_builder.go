// backend/internal/application/marketplace/metadata_builder.go
package marketplace

import (
	"math"
	"strings"

	assetdom "assetmarket/internal/domain/asset"
)

// MetadataBuilder は MintRequest から token metadata document を生成する責務を持ちます。
type MetadataBuilder struct{}

func NewMetadataBuilder() *MetadataBuilder {
	return &MetadataBuilder{}
}

// Build uses imageURL (the uploaded image when available, else the original
// reference) as the document's image.
func (b *MetadataBuilder) Build(req assetdom.MintRequest, imageURL string) assetdom.MetadataDocument {
	doc := assetdom.MetadataDocument{
		Name:                 strings.TrimSpace(req.Name),
		Description:          strings.TrimSpace(req.Description),
		Image:                strings.TrimSpace(imageURL),
		SellerFeeBasisPoints: royaltyBasisPoints(req.RoyaltyPercent),
		Attributes: []assetdom.Attribute{
			{TraitType: "royalty", Value: req.RoyaltyPercent},
			{TraitType: "supply", Value: req.Supply},
			{TraitType: "saleType", Value: string(req.SaleType)},
		},
	}
	// category は任意項目
	if c := strings.TrimSpace(req.Category); c != "" {
		doc.Attributes = append([]assetdom.Attribute{{TraitType: "category", Value: c}}, doc.Attributes...)
	}
	return doc
}

// 5% -> 500
func royaltyBasisPoints(percent float64) int {
	return int(math.Round(percent * 100))
}
