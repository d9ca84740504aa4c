package firestore

import (
	"time"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/types"
)

// Documents are keyed by the record's typeid string; the id is not repeated
// in the document body.

type productDoc struct {
	Name            string            `firestore:"name"`
	Slug            string            `firestore:"slug"`
	Description     string            `firestore:"description"`
	Category        string            `firestore:"category"`
	PriceAmount     int64             `firestore:"price_amount"`
	Currency        string            `firestore:"currency"`
	CompareAtAmount *int64            `firestore:"compare_at_amount"`
	ImageURL        string            `firestore:"image_url"`
	Active          bool              `firestore:"active"`
	Metadata        map[string]string `firestore:"metadata,omitempty"`
	CreatedAt       time.Time         `firestore:"created_at"`
	UpdatedAt       time.Time         `firestore:"updated_at"`
}

func toProductDoc(p *product.Product) *productDoc {
	d := &productDoc{
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
		d.CompareAtAmount = &amount
	}
	return d
}

func fromProductDoc(docID string, d *productDoc) (*product.Product, error) {
	productID, err := id.ParseProductID(docID)
	if err != nil {
		return nil, err
	}
	p := &product.Product{
		Entity:      types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:          productID,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		Category:    d.Category,
		Price:       types.Money{Amount: d.PriceAmount, Currency: d.Currency},
		ImageURL:    d.ImageURL,
		Active:      d.Active,
		Metadata:    d.Metadata,
	}
	if d.CompareAtAmount != nil {
		p.CompareAtPrice = &types.Money{Amount: *d.CompareAtAmount, Currency: d.Currency}
	}
	return p, nil
}

type couponDoc struct {
	Code          string            `firestore:"code"`
	Name          string            `firestore:"name"`
	Type          string            `firestore:"type"`
	Percentage    int               `firestore:"percentage"`
	AmountMinor   int64             `firestore:"amount_minor"`
	Currency      string            `firestore:"currency"`
	MinOrderMinor *int64            `firestore:"min_order_minor"`
	MaxUses       *int              `firestore:"max_uses"`
	CurrentUses   int               `firestore:"current_uses"`
	Active        bool              `firestore:"active"`
	ValidUntil    *time.Time        `firestore:"valid_until"`
	Metadata      map[string]string `firestore:"metadata,omitempty"`
	CreatedAt     time.Time         `firestore:"created_at"`
	UpdatedAt     time.Time         `firestore:"updated_at"`
}

func toCouponDoc(c *coupon.Coupon) *couponDoc {
	d := &couponDoc{
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
		d.MinOrderMinor = &minimum
		if d.Currency == "" {
			d.Currency = c.MinOrderAmount.Currency
		}
	}
	return d
}

func fromCouponDoc(docID string, d *couponDoc) (*coupon.Coupon, error) {
	couponID, err := id.ParseCouponID(docID)
	if err != nil {
		return nil, err
	}
	c := &coupon.Coupon{
		Entity:      types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:          couponID,
		Code:        d.Code,
		Name:        d.Name,
		Type:        coupon.Type(d.Type),
		Percentage:  d.Percentage,
		MaxUses:     d.MaxUses,
		CurrentUses: d.CurrentUses,
		Active:      d.Active,
		ValidUntil:  d.ValidUntil,
		Metadata:    d.Metadata,
	}
	if c.Type == coupon.TypeFixed {
		c.Amount = types.Money{Amount: d.AmountMinor, Currency: d.Currency}
	}
	if d.MinOrderMinor != nil {
		c.MinOrderAmount = &types.Money{Amount: *d.MinOrderMinor, Currency: d.Currency}
	}
	return c, nil
}

type lineItemDoc struct {
	ProductID   string `firestore:"product_id"`
	Name        string `firestore:"name"`
	Slug        string `firestore:"slug"`
	Quantity    int64  `firestore:"quantity"`
	UnitMinor   int64  `firestore:"unit_minor"`
	AmountMinor int64  `firestore:"amount_minor"`
}

type orderDoc struct {
	SessionID      string            `firestore:"session_id"`
	Receipt        string            `firestore:"receipt"`
	Status         string            `firestore:"status"`
	Currency       string            `firestore:"currency"`
	Items          []lineItemDoc     `firestore:"items"`
	SubtotalMinor  int64             `firestore:"subtotal_minor"`
	DiscountMinor  int64             `firestore:"discount_minor"`
	TotalMinor     int64             `firestore:"total_minor"`
	CouponCode     string            `firestore:"coupon_code"`
	CustomerEmail  string            `firestore:"customer_email"`
	GatewayOrderID string            `firestore:"gateway_order_id"`
	PaymentRef     string            `firestore:"payment_ref"`
	ConfirmedAt    *time.Time        `firestore:"confirmed_at"`
	Metadata       map[string]string `firestore:"metadata,omitempty"`
	CreatedAt      time.Time         `firestore:"created_at"`
	UpdatedAt      time.Time         `firestore:"updated_at"`
}

func toOrderDoc(o *order.Order) *orderDoc {
	items := make([]lineItemDoc, len(o.Items))
	for i, li := range o.Items {
		items[i] = lineItemDoc{
			ProductID:   li.ProductID.String(),
			Name:        li.Name,
			Slug:        li.Slug,
			Quantity:    li.Quantity,
			UnitMinor:   li.UnitPrice.Amount,
			AmountMinor: li.Amount.Amount,
		}
	}
	return &orderDoc{
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

func fromOrderDoc(docID string, d *orderDoc) (*order.Order, error) {
	orderID, err := id.ParseOrderID(docID)
	if err != nil {
		return nil, err
	}
	items := make([]order.LineItem, len(d.Items))
	for i, li := range d.Items {
		productID, err := id.ParseProductID(li.ProductID)
		if err != nil {
			return nil, err
		}
		items[i] = order.LineItem{
			ProductID: productID,
			Name:      li.Name,
			Slug:      li.Slug,
			Quantity:  li.Quantity,
			UnitPrice: types.Money{Amount: li.UnitMinor, Currency: d.Currency},
			Amount:    types.Money{Amount: li.AmountMinor, Currency: d.Currency},
		}
	}
	return &order.Order{
		Entity:         types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:             orderID,
		SessionID:      d.SessionID,
		Receipt:        d.Receipt,
		Status:         order.Status(d.Status),
		Currency:       d.Currency,
		Items:          items,
		Subtotal:       types.Money{Amount: d.SubtotalMinor, Currency: d.Currency},
		DiscountAmount: types.Money{Amount: d.DiscountMinor, Currency: d.Currency},
		Total:          types.Money{Amount: d.TotalMinor, Currency: d.Currency},
		CouponCode:     d.CouponCode,
		CustomerEmail:  d.CustomerEmail,
		GatewayOrderID: d.GatewayOrderID,
		PaymentRef:     d.PaymentRef,
		ConfirmedAt:    d.ConfirmedAt,
		Metadata:       d.Metadata,
	}, nil
}

type paymentDoc struct {
	OrderID        string            `firestore:"order_id"`
	AmountMinor    int64             `firestore:"amount_minor"`
	Currency       string            `firestore:"currency"`
	Status         string            `firestore:"status"`
	Provider       string            `firestore:"provider"`
	GatewayOrderID string            `firestore:"gateway_order_id"`
	TransactionRef string            `firestore:"transaction_ref"`
	FailureReason  string            `firestore:"failure_reason"`
	PaidAt         *time.Time        `firestore:"paid_at"`
	Metadata       map[string]string `firestore:"metadata,omitempty"`
	CreatedAt      time.Time         `firestore:"created_at"`
	UpdatedAt      time.Time         `firestore:"updated_at"`
}

func toPaymentDoc(p *payment.Payment) *paymentDoc {
	return &paymentDoc{
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

func fromPaymentDoc(docID string, d *paymentDoc) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(docID)
	if err != nil {
		return nil, err
	}
	orderID, err := id.ParseOrderID(d.OrderID)
	if err != nil {
		return nil, err
	}
	return &payment.Payment{
		Entity:         types.Entity{CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt},
		ID:             paymentID,
		OrderID:        orderID,
		Amount:         types.Money{Amount: d.AmountMinor, Currency: d.Currency},
		Status:         payment.Status(d.Status),
		Provider:       d.Provider,
		GatewayOrderID: d.GatewayOrderID,
		TransactionRef: d.TransactionRef,
		FailureReason:  d.FailureReason,
		PaidAt:         d.PaidAt,
		Metadata:       d.Metadata,
	}, nil
}

type cartStateDoc struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updated_at"`
}
