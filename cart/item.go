package cart

import (
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/types"
)

// Item is one cart line, unique by ProductID.
type Item struct {
	ProductID      id.ProductID `json:"product_id"`
	Name           string       `json:"name"`
	Slug           string       `json:"slug"`
	Price          types.Money  `json:"price"`
	CompareAtPrice *types.Money `json:"compare_at_price,omitempty"`
	Quantity       int          `json:"quantity"`
	ImageURL       string       `json:"image_url,omitempty"`
}

// LineTotal is Price × Quantity.
func (i Item) LineTotal() types.Money {
	return i.Price.Multiply(int64(i.Quantity))
}

// FromProduct builds a cart line from a catalog product.
func FromProduct(p *product.Product) Item {
	item := Item{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
	}
	if p.CompareAtPrice != nil {
		compareAt := *p.CompareAtPrice
		item.CompareAtPrice = &compareAt
	}
	return item
}
