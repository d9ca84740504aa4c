package audithook

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/types"
)

func capture() (*[]*AuditEvent, Recorder) {
	var events []*AuditEvent
	return &events, RecorderFunc(func(_ context.Context, e *AuditEvent) error {
		events = append(events, e)
		return nil
	})
}

func TestExtensionRecordsEvents(t *testing.T) {
	ctx := context.Background()
	events, rec := capture()
	ext := New(rec)

	o := &order.Order{ID: id.NewOrderID(), SessionID: "sess-1", Total: types.INR(49900)}
	p := &payment.Payment{ID: id.NewPaymentID(), OrderID: o.ID, Amount: types.INR(49900), TransactionRef: "pay_1"}

	tests := []struct {
		name       string
		call       func() error
		action     string
		severity   string
		outcome    string
		resourceID string
	}{
		{
			"coupon applied",
			func() error {
				return ext.OnCouponApplied(ctx, "sess-1", &coupon.Applied{Code: "SAVE20", Type: coupon.TypePercentage, Percentage: 20})
			},
			ActionCouponApplied, SeverityInfo, OutcomeSuccess, "SAVE20",
		},
		{
			"coupon rejected",
			func() error { return ext.OnCouponRejected(ctx, "sess-1", "BOGUS", coupon.ErrNotFound) },
			ActionCouponRejected, SeverityWarning, OutcomeFailure, "BOGUS",
		},
		{
			"coupon removed",
			func() error { return ext.OnCouponRemoved(ctx, "sess-1", "SAVE20") },
			ActionCouponRemoved, SeverityInfo, OutcomeSuccess, "SAVE20",
		},
		{
			"cart cleared",
			func() error { return ext.OnCartCleared(ctx, "sess-1") },
			ActionCartCleared, SeverityInfo, OutcomeSuccess, "sess-1",
		},
		{
			"order placed",
			func() error { return ext.OnOrderPlaced(ctx, o, p) },
			ActionOrderPlaced, SeverityInfo, OutcomeSuccess, o.ID.String(),
		},
		{
			"payment verified",
			func() error { return ext.OnPaymentVerified(ctx, o, p) },
			ActionPaymentVerified, SeverityInfo, OutcomeSuccess, p.ID.String(),
		},
		{
			"payment rejected",
			func() error {
				return ext.OnPaymentRejected(ctx, o.ID.String(), "order_X", payment.ErrSignatureMismatch)
			},
			ActionPaymentRejected, SeverityCritical, OutcomeFailure, o.ID.String(),
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("hook returned %v", err)
			}
			if len(*events) != i+1 {
				t.Fatalf("events = %d, want %d", len(*events), i+1)
			}
			got := (*events)[i]
			if got.Action != tt.action {
				t.Errorf("Action = %q, want %q", got.Action, tt.action)
			}
			if got.Severity != tt.severity {
				t.Errorf("Severity = %q, want %q", got.Severity, tt.severity)
			}
			if got.Outcome != tt.outcome {
				t.Errorf("Outcome = %q, want %q", got.Outcome, tt.outcome)
			}
			if got.ResourceID != tt.resourceID {
				t.Errorf("ResourceID = %q, want %q", got.ResourceID, tt.resourceID)
			}
			if tt.outcome == OutcomeFailure && got.Reason == "" {
				t.Error("failure event should carry a reason")
			}
		})
	}
}

func TestExtensionMetadata(t *testing.T) {
	events, rec := capture()
	ext := New(rec)

	err := ext.OnCouponApplied(context.Background(), "sess-9",
		&coupon.Applied{Code: "FLAT150", Type: coupon.TypeFixed, Amount: types.INR(15000)})
	if err != nil {
		t.Fatal(err)
	}
	meta := (*events)[0].Metadata
	if meta["session_id"] != "sess-9" {
		t.Errorf("session_id = %v", meta["session_id"])
	}
	if meta["discount"] != "₹150.00 off" {
		t.Errorf("discount = %v", meta["discount"])
	}
}

func TestExtensionActionFilters(t *testing.T) {
	ctx := context.Background()

	t.Run("enabled only", func(t *testing.T) {
		events, rec := capture()
		ext := New(rec, WithEnabledActions(ActionPaymentRejected))
		_ = ext.OnCartCleared(ctx, "s")
		_ = ext.OnPaymentRejected(ctx, "ord", "gw", errors.New("bad"))
		if len(*events) != 1 || (*events)[0].Action != ActionPaymentRejected {
			t.Errorf("events = %+v", *events)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		events, rec := capture()
		ext := New(rec, WithDisabledActions(ActionCartCleared))
		_ = ext.OnCartCleared(ctx, "s")
		_ = ext.OnCouponRemoved(ctx, "s", "SAVE20")
		if len(*events) != 1 || (*events)[0].Action != ActionCouponRemoved {
			t.Errorf("events = %+v", *events)
		}
	})
}

func TestExtensionSwallowsRecorderErrors(t *testing.T) {
	ext := New(RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	}))
	if err := ext.OnCartCleared(context.Background(), "s"); err != nil {
		t.Errorf("recorder failure leaked: %v", err)
	}
}
