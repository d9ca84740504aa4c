package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/types"
)

type recorder struct {
	name string

	mu       sync.Mutex
	events   []cart.Event
	applied  []string
	removed  []string
	rejected []string
	cleared  []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) OnCartEvent(_ context.Context, _ cart.Snapshot, n cart.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n.Event)
	return nil
}

func (r *recorder) OnCouponApplied(_ context.Context, _ string, applied *coupon.Applied) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied = append(r.applied, applied.Code)
	return nil
}

func (r *recorder) OnCouponRemoved(_ context.Context, _, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, code)
	return nil
}

func (r *recorder) OnCouponRejected(_ context.Context, _, code string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, code)
	return nil
}

func (r *recorder) OnCartCleared(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, sessionID)
	return nil
}

type vetoFunc struct {
	name string
	fn   func() error
}

func (v vetoFunc) Name() string { return v.name }

func (v vetoFunc) ValidateCoupon(context.Context, string, *coupon.Coupon, types.Money) error {
	return v.fn()
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&recorder{name: "audit"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&recorder{name: "audit"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("audit") == nil {
		t.Error("Get(audit) = nil")
	}
}

func TestImplementedInterfaces(t *testing.T) {
	got := implementedInterfaces(&recorder{name: "r"})
	want := map[string]bool{
		"OnCartEvent": true, "OnCartCleared": true, "OnCouponApplied": true,
		"OnCouponRejected": true, "OnCouponRemoved": true,
	}
	if len(got) != len(want) {
		t.Fatalf("interfaces = %v", got)
	}
	for _, name := range got {
		if !want[name] {
			t.Errorf("unexpected interface %s", name)
		}
	}
}

func TestEmitCartEventFansOut(t *testing.T) {
	r := NewRegistry()
	rec := &recorder{name: "rec"}
	if err := r.Register(rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()
	applied := &coupon.Applied{Code: "SAVE20", Type: coupon.TypePercentage, Percentage: 20}

	r.EmitCartEvent(ctx, cart.Snapshot{SessionID: "s1", AppliedCoupon: applied},
		cart.Notification{SessionID: "s1", Event: cart.EventCouponApplied, CouponCode: "SAVE20"})
	r.EmitCartEvent(ctx, cart.Snapshot{SessionID: "s1"},
		cart.Notification{SessionID: "s1", Event: cart.EventCouponDetached, CouponCode: "SAVE20"})
	r.EmitCartEvent(ctx, cart.Snapshot{SessionID: "s1"},
		cart.Notification{SessionID: "s1", Event: cart.EventCouponRejected, CouponCode: "BOGUS", Err: cart.ErrCouponInvalid})
	r.EmitCartEvent(ctx, cart.Snapshot{SessionID: "s1"},
		cart.Notification{SessionID: "s1", Event: cart.EventCartCleared})
	r.EmitCartEvent(ctx, cart.Snapshot{SessionID: "s1"},
		cart.Notification{SessionID: "s1", Event: cart.EventItemAdded})

	if len(rec.events) != 5 {
		t.Errorf("events = %v, want 5", rec.events)
	}
	if len(rec.applied) != 1 || rec.applied[0] != "SAVE20" {
		t.Errorf("applied = %v", rec.applied)
	}
	if len(rec.removed) != 1 || rec.removed[0] != "SAVE20" {
		t.Errorf("removed = %v", rec.removed)
	}
	if len(rec.rejected) != 1 || rec.rejected[0] != "BOGUS" {
		t.Errorf("rejected = %v", rec.rejected)
	}
	if len(rec.cleared) != 1 || rec.cleared[0] != "s1" {
		t.Errorf("cleared = %v", rec.cleared)
	}
}

func TestValidateCoupon(t *testing.T) {
	errFirstOrderOnly := errors.New("first order only")

	tests := []struct {
		name       string
		validators []vetoFunc
		wantErr    error
	}{
		{"none", nil, nil},
		{"accept", []vetoFunc{{"ok", func() error { return nil }}}, nil},
		{"reject", []vetoFunc{
			{"ok", func() error { return nil }},
			{"first-order", func() error { return errFirstOrderOnly }},
		}, errFirstOrderOnly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			for _, v := range tt.validators {
				if err := r.Register(v); err != nil {
					t.Fatalf("Register: %v", err)
				}
			}
			err := r.ValidateCoupon(context.Background(), "s1", &coupon.Coupon{Code: "X"}, types.INR(100))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatorTimeoutAndPanicReject(t *testing.T) {
	r := NewRegistry().WithTimeout(20 * time.Millisecond)
	if err := r.Register(vetoFunc{"slow", func() error {
		time.Sleep(time.Second)
		return nil
	}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.ValidateCoupon(context.Background(), "s1", &coupon.Coupon{}, types.INR(1)); err == nil {
		t.Error("slow validator: expected timeout error")
	}

	r = NewRegistry()
	if err := r.Register(vetoFunc{"boom", func() error { panic("boom") }}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.ValidateCoupon(context.Background(), "s1", &coupon.Coupon{}, types.INR(1)); err == nil {
		t.Error("panicking validator: expected error")
	}
}
