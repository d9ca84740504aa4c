package order

import (
	"time"

	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

type Order struct {
	types.Entity
	ID             id.OrderID        `json:"id"`
	SessionID      string            `json:"session_id"`
	Receipt        string            `json:"receipt"`
	Status         Status            `json:"status"`
	Currency       string            `json:"currency"`
	Items          []LineItem        `json:"items"`
	Subtotal       types.Money       `json:"subtotal"`
	DiscountAmount types.Money       `json:"discount_amount"`
	Total          types.Money       `json:"total"`
	CouponCode     string            `json:"coupon_code,omitempty"`
	CustomerEmail  string            `json:"customer_email,omitempty"`
	GatewayOrderID string            `json:"gateway_order_id,omitempty"`
	PaymentRef     string            `json:"payment_ref,omitempty"`
	ConfirmedAt    *time.Time        `json:"confirmed_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type LineItem struct {
	ProductID id.ProductID `json:"product_id"`
	Name      string       `json:"name"`
	Slug      string       `json:"slug"`
	Quantity  int64        `json:"quantity"`
	UnitPrice types.Money  `json:"unit_price"`
	Amount    types.Money  `json:"amount"`
}
