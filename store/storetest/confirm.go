// Package storetest holds behaviour checks shared by every store.Store
// backend. Each backend's tests call into it with a constructor for a clean
// store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/store"
	"github.com/xraph/storefront/types"
)

// Factory returns an empty, migrated store for one subtest.
type Factory func(t *testing.T) store.Store

// SeedOrder writes a pending order with a pending payment for it.
func SeedOrder(t *testing.T, s store.Store, couponCode string) (*order.Order, *payment.Payment) {
	t.Helper()
	ctx := context.Background()

	o := &order.Order{
		Entity:     types.NewEntity(),
		ID:         id.NewOrderID(),
		SessionID:  "sess_1",
		Status:     order.StatusPending,
		Currency:   "inr",
		Total:      types.INR(89900),
		CouponCode: couponCode,
	}
	if err := s.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	p := &payment.Payment{
		Entity:  types.NewEntity(),
		ID:      id.NewPaymentID(),
		OrderID: o.ID,
		Amount:  o.Total,
		Status:  payment.StatusPending,
	}
	if err := s.CreatePayment(ctx, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	return o, p
}

// RunConfirmPayment checks that ConfirmPayment moves the order, its payment
// and the applied coupon together, and leaves everything untouched when it
// fails.
func RunConfirmPayment(t *testing.T, newStore Factory) {
	t.Run("confirms order payment and coupon", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		c := &coupon.Coupon{Entity: types.NewEntity(), ID: id.NewCouponID(), Code: "save20", Type: coupon.TypePercentage, Percentage: 20, Active: true}
		if err := s.CreateCoupon(ctx, c); err != nil {
			t.Fatalf("CreateCoupon: %v", err)
		}
		o, p := SeedOrder(t, s, "SAVE20")

		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		if err := s.ConfirmPayment(ctx, o.ID, "pay_29QQoUBi66xm2f", at); err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}

		gotOrder, err := s.GetOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("GetOrder: %v", err)
		}
		if gotOrder.Status != order.StatusConfirmed || gotOrder.ConfirmedAt == nil || !gotOrder.ConfirmedAt.Equal(at) {
			t.Errorf("order = %+v, want confirmed at %v", gotOrder, at)
		}
		gotPayment, err := s.GetPayment(ctx, p.ID)
		if err != nil {
			t.Fatalf("GetPayment: %v", err)
		}
		if gotPayment.Status != payment.StatusCompleted || gotPayment.TransactionRef != "pay_29QQoUBi66xm2f" {
			t.Errorf("payment = %+v, want completed with transaction ref", gotPayment)
		}
		gotCoupon, err := s.GetCouponByCode(ctx, "save20")
		if err != nil {
			t.Fatalf("GetCouponByCode: %v", err)
		}
		if gotCoupon.CurrentUses != 1 {
			t.Errorf("CurrentUses = %d, want 1", gotCoupon.CurrentUses)
		}

		// A repeated confirmation changes nothing.
		if err := s.ConfirmPayment(ctx, o.ID, "pay_other", at.Add(time.Minute)); err != nil {
			t.Fatalf("second ConfirmPayment: %v", err)
		}
		gotPayment, _ = s.GetPayment(ctx, p.ID)
		if gotPayment.TransactionRef != "pay_29QQoUBi66xm2f" {
			t.Errorf("TransactionRef changed to %q", gotPayment.TransactionRef)
		}
		gotCoupon, _ = s.GetCouponByCode(ctx, "SAVE20")
		if gotCoupon.CurrentUses != 1 {
			t.Errorf("CurrentUses after repeat = %d, want 1", gotCoupon.CurrentUses)
		}
	})

	t.Run("without coupon", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		o, p := SeedOrder(t, s, "")
		if err := s.ConfirmPayment(ctx, o.ID, "pay_1", time.Now()); err != nil {
			t.Fatalf("ConfirmPayment: %v", err)
		}
		gotPayment, _ := s.GetPayment(ctx, p.ID)
		if gotPayment.Status != payment.StatusCompleted {
			t.Errorf("payment status = %s, want completed", gotPayment.Status)
		}
	})

	t.Run("missing payment leaves order pending", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		o := &order.Order{Entity: types.NewEntity(), ID: id.NewOrderID(), Status: order.StatusPending, Currency: "inr"}
		if err := s.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}

		err := s.ConfirmPayment(ctx, o.ID, "pay_1", time.Now())
		if !errors.Is(err, storefront.ErrPaymentNotFound) {
			t.Fatalf("err = %v, want ErrPaymentNotFound", err)
		}
		got, _ := s.GetOrder(ctx, o.ID)
		if got.Status != order.StatusPending {
			t.Errorf("order status = %s, want pending", got.Status)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		err := newStore(t).ConfirmPayment(context.Background(), id.NewOrderID(), "pay_1", time.Now())
		if !errors.Is(err, storefront.ErrOrderNotFound) {
			t.Fatalf("err = %v, want ErrOrderNotFound", err)
		}
	})
}
