// Package observability provides a metrics extension for the storefront that
// records cart, checkout and payment event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin            = (*MetricsExtension)(nil)
	_ plugin.OnInit            = (*MetricsExtension)(nil)
	_ plugin.OnCartEvent       = (*MetricsExtension)(nil)
	_ plugin.OnCartCleared     = (*MetricsExtension)(nil)
	_ plugin.OnCouponApplied   = (*MetricsExtension)(nil)
	_ plugin.OnCouponRejected  = (*MetricsExtension)(nil)
	_ plugin.OnCouponRemoved   = (*MetricsExtension)(nil)
	_ plugin.OnOrderPlaced     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentVerified = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records storefront metrics.
// Register it as a plugin to track cart and checkout activity.
type MetricsExtension struct {
	factory MetricFactory

	// Cart metrics
	ItemsAdded   Counter
	ItemsUpdated Counter
	ItemsRemoved Counter
	CartsCleared Counter

	// Coupon metrics
	CouponsApplied  Counter
	CouponsRejected Counter
	CouponsRemoved  Counter
	CouponsDetached Counter

	// Checkout metrics
	CheckoutsStarted Counter
	OrdersPlaced     Counter
	OrderTotal       Histogram
	OrderDiscount    Histogram

	// Payment metrics
	PaymentsVerified Counter
	PaymentsRejected Counter
	PaymentAmount    Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		ItemsAdded:   factory.Counter("storefront.cart.items.added"),
		ItemsUpdated: factory.Counter("storefront.cart.items.updated"),
		ItemsRemoved: factory.Counter("storefront.cart.items.removed"),
		CartsCleared: factory.Counter("storefront.cart.cleared"),

		CouponsApplied:  factory.Counter("storefront.coupon.applied"),
		CouponsRejected: factory.Counter("storefront.coupon.rejected"),
		CouponsRemoved:  factory.Counter("storefront.coupon.removed"),
		CouponsDetached: factory.Counter("storefront.coupon.detached"),

		CheckoutsStarted: factory.Counter("storefront.checkout.started"),
		OrdersPlaced:     factory.Counter("storefront.order.placed"),
		OrderTotal:       factory.Histogram("storefront.order.total_minor"),
		OrderDiscount:    factory.Histogram("storefront.order.discount_minor"),

		PaymentsVerified: factory.Counter("storefront.payment.verified"),
		PaymentsRejected: factory.Counter("storefront.payment.rejected"),
		PaymentAmount:    factory.Histogram("storefront.payment.amount_minor"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Cart hooks
// ──────────────────────────────────────────────────

// OnCartEvent implements plugin.OnCartEvent. Coupon and clear events are
// counted by their dedicated hooks.
func (m *MetricsExtension) OnCartEvent(_ context.Context, _ cart.Snapshot, n cart.Notification) error {
	switch n.Event {
	case cart.EventItemAdded:
		m.ItemsAdded.Inc()
	case cart.EventItemUpdated:
		m.ItemsUpdated.Inc()
	case cart.EventItemRemoved:
		m.ItemsRemoved.Inc()
	case cart.EventCouponDetached:
		m.CouponsDetached.Inc()
	case cart.EventCheckoutStarted:
		m.CheckoutsStarted.Inc()
	}
	return nil
}

// OnCartCleared implements plugin.OnCartCleared.
func (m *MetricsExtension) OnCartCleared(_ context.Context, _ string) error {
	m.CartsCleared.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Coupon hooks
// ──────────────────────────────────────────────────

// OnCouponApplied implements plugin.OnCouponApplied.
func (m *MetricsExtension) OnCouponApplied(_ context.Context, _ string, _ *coupon.Applied) error {
	m.CouponsApplied.Inc()
	return nil
}

// OnCouponRejected implements plugin.OnCouponRejected.
func (m *MetricsExtension) OnCouponRejected(_ context.Context, _, _ string, _ error) error {
	m.CouponsRejected.Inc()
	return nil
}

// OnCouponRemoved implements plugin.OnCouponRemoved.
func (m *MetricsExtension) OnCouponRemoved(_ context.Context, _, _ string) error {
	m.CouponsRemoved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Checkout hooks
// ──────────────────────────────────────────────────

// OnOrderPlaced implements plugin.OnOrderPlaced.
func (m *MetricsExtension) OnOrderPlaced(_ context.Context, o *order.Order, _ *payment.Payment) error {
	m.OrdersPlaced.Inc()
	m.OrderTotal.Observe(float64(o.Total.Amount))
	m.OrderDiscount.Observe(float64(o.DiscountAmount.Amount))
	return nil
}

// OnPaymentVerified implements plugin.OnPaymentVerified.
func (m *MetricsExtension) OnPaymentVerified(_ context.Context, _ *order.Order, p *payment.Payment) error {
	m.PaymentsVerified.Inc()
	m.PaymentAmount.Observe(float64(p.Amount.Amount))
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _, _ string, _ error) error {
	m.PaymentsRejected.Inc()
	return nil
}
