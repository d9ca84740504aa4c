// Package store defines the unified persistence interface for the storefront.
// Backends live in the sub-packages: memory, postgres, sqlite, mongo and
// firestore.
package store

import (
	"context"
	"time"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
)

// Store is the unified storage interface for all storefront records.
// Instead of embedding the per-package interfaces, we explicitly declare all
// methods to avoid naming conflicts (Create, Get, Update, ...).
type Store interface {
	// Product methods
	CreateProduct(ctx context.Context, p *product.Product) error
	GetProduct(ctx context.Context, productID id.ProductID) (*product.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*product.Product, error)
	ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error)
	UpdateProduct(ctx context.Context, p *product.Product) error

	// Coupon methods
	CreateCoupon(ctx context.Context, c *coupon.Coupon) error
	GetCouponByCode(ctx context.Context, code string) (*coupon.Coupon, error)
	GetCouponByID(ctx context.Context, couponID id.CouponID) (*coupon.Coupon, error)
	ListCoupons(ctx context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error)
	UpdateCoupon(ctx context.Context, c *coupon.Coupon) error
	DeleteCoupon(ctx context.Context, couponID id.CouponID) error

	// Order methods
	CreateOrder(ctx context.Context, o *order.Order) error
	GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error)
	ListOrders(ctx context.Context, opts order.ListOpts) ([]*order.Order, error)
	UpdateOrder(ctx context.Context, o *order.Order) error

	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error)
	GetPaymentByOrder(ctx context.Context, orderID id.OrderID) (*payment.Payment, error)
	UpdatePayment(ctx context.Context, p *payment.Payment) error

	// ConfirmPayment marks the order confirmed, the order's payment completed
	// with txRef, and bumps the applied coupon's use count. Either every
	// write lands or none does. Confirming an already confirmed order is a
	// no-op.
	ConfirmPayment(ctx context.Context, orderID id.OrderID, txRef string, at time.Time) error

	// Cart state methods (serialized cart and coupon keyed by session)
	GetCartState(ctx context.Context, key string) (string, bool, error)
	PutCartState(ctx context.Context, key, value string) error
	DeleteCartState(ctx context.Context, key string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
