package product

import (
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/types"
)

type Product struct {
	types.Entity
	ID             id.ProductID      `json:"id"`
	Name           string            `json:"name"`
	Slug           string            `json:"slug"`
	Description    string            `json:"description,omitempty"`
	Category       string            `json:"category,omitempty"`
	Price          types.Money       `json:"price"`
	CompareAtPrice *types.Money      `json:"compare_at_price,omitempty"`
	ImageURL       string            `json:"image_url,omitempty"`
	Active         bool              `json:"active"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// DiscountPercent is the markdown against the compare-at price, 0 if none.
func (p *Product) DiscountPercent() int {
	if p.CompareAtPrice == nil {
		return 0
	}
	return types.DiscountPercent(p.Price, *p.CompareAtPrice)
}
