package payment

import (
	"context"

	"github.com/xraph/storefront/id"
)

type Store interface {
	Create(ctx context.Context, p *Payment) error
	Get(ctx context.Context, paymentID id.PaymentID) (*Payment, error)
	GetByOrder(ctx context.Context, orderID id.OrderID) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}
