package order

import (
	"context"

	"github.com/xraph/storefront/id"
)

type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID id.OrderID) (*Order, error)
	List(ctx context.Context, opts ListOpts) ([]*Order, error)
	Update(ctx context.Context, o *Order) error
}

type ListOpts struct {
	SessionID string
	Status    Status
	Limit     int
	Offset    int
}
