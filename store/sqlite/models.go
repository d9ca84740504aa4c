package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/types"
)

// ==================== Product models ====================

type productModel struct {
	grove.BaseModel `grove:"table:storefront_products"`

	ID              string            `grove:"id,pk"`
	Name            string            `grove:"name"`
	Slug            string            `grove:"slug"`
	Description     string            `grove:"description"`
	Category        string            `grove:"category"`
	PriceAmount     int64             `grove:"price_amount"`
	Currency        string            `grove:"currency"`
	CompareAtAmount *int64            `grove:"compare_at_amount"`
	ImageURL        string            `grove:"image_url"`
	Active          bool              `grove:"active"`
	Metadata        map[string]string `grove:"metadata"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
}

func toProductModel(p *product.Product) *productModel {
	m := &productModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Category:    p.Category,
		PriceAmount: p.Price.Amount,
		Currency:    p.Price.Currency,
		ImageURL:    p.ImageURL,
		Active:      p.Active,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.CompareAtPrice != nil {
		amount := p.CompareAtPrice.Amount
		m.CompareAtAmount = &amount
	}
	return m
}

func fromProductModel(m *productModel) (*product.Product, error) {
	productID, err := id.ParseProductID(m.ID)
	if err != nil {
		return nil, err
	}

	p := &product.Product{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          productID,
		Name:        m.Name,
		Slug:        m.Slug,
		Description: m.Description,
		Category:    m.Category,
		Price:       types.Money{Amount: m.PriceAmount, Currency: m.Currency},
		ImageURL:    m.ImageURL,
		Active:      m.Active,
		Metadata:    m.Metadata,
	}
	if m.CompareAtAmount != nil {
		p.CompareAtPrice = &types.Money{Amount: *m.CompareAtAmount, Currency: m.Currency}
	}
	return p, nil
}

// ==================== Coupon models ====================

type couponModel struct {
	grove.BaseModel `grove:"table:storefront_coupons"`

	ID            string            `grove:"id,pk"`
	Code          string            `grove:"code"`
	Name          string            `grove:"name"`
	Type          string            `grove:"type"`
	Percentage    int               `grove:"percentage"`
	AmountMinor   int64             `grove:"amount_minor"`
	Currency      string            `grove:"currency"`
	MinOrderMinor *int64            `grove:"min_order_minor"`
	MaxUses       *int              `grove:"max_uses"`
	CurrentUses   int               `grove:"current_uses"`
	Active        bool              `grove:"active"`
	ValidUntil    *time.Time        `grove:"valid_until"`
	Metadata      map[string]string `grove:"metadata"`
	CreatedAt     time.Time         `grove:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"`
}

func toCouponModel(c *coupon.Coupon) *couponModel {
	m := &couponModel{
		ID:          c.ID.String(),
		Code:        coupon.Normalize(c.Code),
		Name:        c.Name,
		Type:        string(c.Type),
		Percentage:  c.Percentage,
		AmountMinor: c.Amount.Amount,
		Currency:    c.Amount.Currency,
		MaxUses:     c.MaxUses,
		CurrentUses: c.CurrentUses,
		Active:      c.Active,
		ValidUntil:  c.ValidUntil,
		Metadata:    c.Metadata,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if c.MinOrderAmount != nil {
		minimum := c.MinOrderAmount.Amount
		m.MinOrderMinor = &minimum
		if m.Currency == "" {
			m.Currency = c.MinOrderAmount.Currency
		}
	}
	return m
}

func fromCouponModel(m *couponModel) (*coupon.Coupon, error) {
	couponID, err := id.ParseCouponID(m.ID)
	if err != nil {
		return nil, err
	}

	c := &coupon.Coupon{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          couponID,
		Code:        m.Code,
		Name:        m.Name,
		Type:        coupon.Type(m.Type),
		Percentage:  m.Percentage,
		MaxUses:     m.MaxUses,
		CurrentUses: m.CurrentUses,
		Active:      m.Active,
		ValidUntil:  m.ValidUntil,
		Metadata:    m.Metadata,
	}
	if c.Type == coupon.TypeFixed {
		c.Amount = types.Money{Amount: m.AmountMinor, Currency: m.Currency}
	}
	if m.MinOrderMinor != nil {
		c.MinOrderAmount = &types.Money{Amount: *m.MinOrderMinor, Currency: m.Currency}
	}
	return c, nil
}

// ==================== Order models ====================

type orderModel struct {
	grove.BaseModel `grove:"table:storefront_orders"`

	ID             string            `grove:"id,pk"`
	SessionID      string            `grove:"session_id"`
	Receipt        string            `grove:"receipt"`
	Status         string            `grove:"status"`
	Currency       string            `grove:"currency"`
	Items          json.RawMessage   `grove:"items"`
	SubtotalMinor  int64             `grove:"subtotal_minor"`
	DiscountMinor  int64             `grove:"discount_minor"`
	TotalMinor     int64             `grove:"total_minor"`
	CouponCode     string            `grove:"coupon_code"`
	CustomerEmail  string            `grove:"customer_email"`
	GatewayOrderID string            `grove:"gateway_order_id"`
	PaymentRef     string            `grove:"payment_ref"`
	ConfirmedAt    *time.Time        `grove:"confirmed_at"`
	Metadata       map[string]string `grove:"metadata"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toOrderModel(o *order.Order) *orderModel {
	items, _ := json.Marshal(o.Items) //nolint:errcheck // best-effort

	return &orderModel{
		ID:             o.ID.String(),
		SessionID:      o.SessionID,
		Receipt:        o.Receipt,
		Status:         string(o.Status),
		Currency:       o.Currency,
		Items:          items,
		SubtotalMinor:  o.Subtotal.Amount,
		DiscountMinor:  o.DiscountAmount.Amount,
		TotalMinor:     o.Total.Amount,
		CouponCode:     coupon.Normalize(o.CouponCode),
		CustomerEmail:  o.CustomerEmail,
		GatewayOrderID: o.GatewayOrderID,
		PaymentRef:     o.PaymentRef,
		ConfirmedAt:    o.ConfirmedAt,
		Metadata:       o.Metadata,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func fromOrderModel(m *orderModel) (*order.Order, error) {
	orderID, err := id.ParseOrderID(m.ID)
	if err != nil {
		return nil, err
	}

	var items []order.LineItem
	if len(m.Items) > 0 {
		if err := json.Unmarshal(m.Items, &items); err != nil {
			return nil, err
		}
	}

	return &order.Order{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             orderID,
		SessionID:      m.SessionID,
		Receipt:        m.Receipt,
		Status:         order.Status(m.Status),
		Currency:       m.Currency,
		Items:          items,
		Subtotal:       types.Money{Amount: m.SubtotalMinor, Currency: m.Currency},
		DiscountAmount: types.Money{Amount: m.DiscountMinor, Currency: m.Currency},
		Total:          types.Money{Amount: m.TotalMinor, Currency: m.Currency},
		CouponCode:     m.CouponCode,
		CustomerEmail:  m.CustomerEmail,
		GatewayOrderID: m.GatewayOrderID,
		PaymentRef:     m.PaymentRef,
		ConfirmedAt:    m.ConfirmedAt,
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:storefront_payments"`

	ID             string            `grove:"id,pk"`
	OrderID        string            `grove:"order_id"`
	AmountMinor    int64             `grove:"amount_minor"`
	Currency       string            `grove:"currency"`
	Status         string            `grove:"status"`
	Provider       string            `grove:"provider"`
	GatewayOrderID string            `grove:"gateway_order_id"`
	TransactionRef string            `grove:"transaction_ref"`
	FailureReason  string            `grove:"failure_reason"`
	PaidAt         *time.Time        `grove:"paid_at"`
	Metadata       map[string]string `grove:"metadata"`
	CreatedAt      time.Time         `grove:"created_at"`
	UpdatedAt      time.Time         `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:             p.ID.String(),
		OrderID:        p.OrderID.String(),
		AmountMinor:    p.Amount.Amount,
		Currency:       p.Amount.Currency,
		Status:         string(p.Status),
		Provider:       p.Provider,
		GatewayOrderID: p.GatewayOrderID,
		TransactionRef: p.TransactionRef,
		FailureReason:  p.FailureReason,
		PaidAt:         p.PaidAt,
		Metadata:       p.Metadata,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(m.OrderID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             paymentID,
		OrderID:        orderID,
		Amount:         types.Money{Amount: m.AmountMinor, Currency: m.Currency},
		Status:         payment.Status(m.Status),
		Provider:       m.Provider,
		GatewayOrderID: m.GatewayOrderID,
		TransactionRef: m.TransactionRef,
		FailureReason:  m.FailureReason,
		PaidAt:         m.PaidAt,
		Metadata:       m.Metadata,
	}, nil
}

// ==================== Cart state models ====================

type cartStateModel struct {
	grove.BaseModel `grove:"table:storefront_cart_state"`

	Key       string    `grove:"key,pk"`
	Value     string    `grove:"value"`
	UpdatedAt time.Time `grove:"updated_at"`
}
