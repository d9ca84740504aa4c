package observability

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/types"
)

func TestMetricsExtensionCounts(t *testing.T) {
	ctx := context.Background()
	f := NewPrometheusFactory(nil)
	m := NewMetricsExtension(f)

	for _, ev := range []cart.Event{
		cart.EventItemAdded, cart.EventItemAdded, cart.EventItemUpdated,
		cart.EventItemRemoved, cart.EventCouponDetached, cart.EventCheckoutStarted,
		cart.EventCouponApplied,
	} {
		if err := m.OnCartEvent(ctx, cart.Snapshot{}, cart.Notification{Event: ev}); err != nil {
			t.Fatal(err)
		}
	}
	_ = m.OnCouponApplied(ctx, "s", &coupon.Applied{Code: "SAVE20"})
	_ = m.OnCouponRejected(ctx, "s", "NOPE", coupon.ErrNotFound)
	_ = m.OnCouponRemoved(ctx, "s", "SAVE20")
	_ = m.OnCartCleared(ctx, "s")
	_ = m.OnOrderPlaced(ctx, &order.Order{Total: types.INR(39920), DiscountAmount: types.INR(9980)}, &payment.Payment{})
	_ = m.OnPaymentVerified(ctx, &order.Order{}, &payment.Payment{Amount: types.INR(39920)})
	_ = m.OnPaymentRejected(ctx, "ord", "gw", errors.New("mismatch"))

	tests := []struct {
		name string
		want float64
	}{
		{"storefront.cart.items.added", 2},
		{"storefront.cart.items.updated", 1},
		{"storefront.cart.items.removed", 1},
		{"storefront.cart.cleared", 1},
		{"storefront.coupon.applied", 1},
		{"storefront.coupon.rejected", 1},
		{"storefront.coupon.removed", 1},
		{"storefront.coupon.detached", 1},
		{"storefront.checkout.started", 1},
		{"storefront.order.placed", 1},
		{"storefront.payment.verified", 1},
		{"storefront.payment.rejected", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(f.counters[tt.name]); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	f := NewPrometheusFactory(nil)
	a := f.Counter("storefront.order.placed")
	b := f.Counter("storefront.order.placed")
	if a != b {
		t.Error("same name should return the same counter")
	}
	f.Histogram("storefront.order.total_minor")
	f.Histogram("storefront.order.total_minor")
}

func TestPrometheusFactoryHandler(t *testing.T) {
	f := NewPrometheusFactory(nil)
	f.Counter("storefront.payment.verified").Inc()

	rec := httptest.NewRecorder()
	f.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "storefront_payment_verified_total 1") {
		t.Errorf("metrics output missing counter:\n%s", rec.Body.String())
	}
}
