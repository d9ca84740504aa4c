// Package plugin provides an extensible plugin system for the storefront.
// Plugins can hook into cart, order and payment events to extend
// functionality.
package plugin

import (
	"context"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized. sf is the
// *storefront.Storefront engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, sf interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Cart hooks
// ──────────────────────────────────────────────────

// OnCartEvent receives every cart notification together with the cart
// snapshot taken when it was raised.
type OnCartEvent interface {
	Plugin
	OnCartEvent(ctx context.Context, snap cart.Snapshot, n cart.Notification) error
}

// OnCartCleared is called when a cart is emptied, by the shopper or after a
// verified payment.
type OnCartCleared interface {
	Plugin
	OnCartCleared(ctx context.Context, sessionID string) error
}

// ──────────────────────────────────────────────────
// Coupon hooks
// ──────────────────────────────────────────────────

// OnCouponApplied is called when a coupon is bound to a cart.
type OnCouponApplied interface {
	Plugin
	OnCouponApplied(ctx context.Context, sessionID string, applied *coupon.Applied) error
}

// OnCouponRejected is called when a coupon code is refused.
type OnCouponRejected interface {
	Plugin
	OnCouponRejected(ctx context.Context, sessionID, code string, reason error) error
}

// OnCouponRemoved is called when a coupon leaves a cart, removed by the
// shopper or detached because the subtotal fell below its minimum.
type OnCouponRemoved interface {
	Plugin
	OnCouponRemoved(ctx context.Context, sessionID, code string) error
}

// CouponValidator provides custom coupon validation logic. A non-nil error
// rejects the coupon.
type CouponValidator interface {
	Plugin
	ValidateCoupon(ctx context.Context, sessionID string, c *coupon.Coupon, subtotal types.Money) error
}

// ──────────────────────────────────────────────────
// Order and payment hooks
// ──────────────────────────────────────────────────

// OnOrderPlaced is called after a gateway order is created for a cart.
type OnOrderPlaced interface {
	Plugin
	OnOrderPlaced(ctx context.Context, o *order.Order, p *payment.Payment) error
}

// OnPaymentVerified is called after a payment signature checks out.
type OnPaymentVerified interface {
	Plugin
	OnPaymentVerified(ctx context.Context, o *order.Order, p *payment.Payment) error
}

// OnPaymentRejected is called when a payment cannot proceed: a failed
// gateway order or a signature mismatch. orderID may be empty when the
// caller did not send one.
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, orderID, gatewayOrderID string, reason error) error
}
