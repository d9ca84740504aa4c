package product

import (
	"context"

	"github.com/xraph/storefront/id"
)

type Store interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, productID id.ProductID) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, opts ListOpts) ([]*Product, error)
	Update(ctx context.Context, p *Product) error
}

type ListOpts struct {
	Category   string
	ActiveOnly bool
	Limit      int
	Offset     int
}
