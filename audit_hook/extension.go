// Package audithook bridges storefront events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin            = (*Extension)(nil)
	_ plugin.OnCouponApplied   = (*Extension)(nil)
	_ plugin.OnCouponRejected  = (*Extension)(nil)
	_ plugin.OnCouponRemoved   = (*Extension)(nil)
	_ plugin.OnCartCleared     = (*Extension)(nil)
	_ plugin.OnOrderPlaced     = (*Extension)(nil)
	_ plugin.OnPaymentVerified = (*Extension)(nil)
	_ plugin.OnPaymentRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges storefront events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Cart and coupon hooks
// ──────────────────────────────────────────────────

// OnCouponApplied implements plugin.OnCouponApplied.
func (e *Extension) OnCouponApplied(ctx context.Context, sessionID string, applied *coupon.Applied) error {
	return e.record(ctx, ActionCouponApplied, SeverityInfo, OutcomeSuccess,
		ResourceCoupon, applied.Code, CategoryPromo, nil,
		"session_id", sessionID,
		"discount", applied.Describe(),
	)
}

// OnCouponRejected implements plugin.OnCouponRejected.
func (e *Extension) OnCouponRejected(ctx context.Context, sessionID, code string, reason error) error {
	return e.record(ctx, ActionCouponRejected, SeverityWarning, OutcomeFailure,
		ResourceCoupon, code, CategoryPromo, reason,
		"session_id", sessionID,
	)
}

// OnCouponRemoved implements plugin.OnCouponRemoved.
func (e *Extension) OnCouponRemoved(ctx context.Context, sessionID, code string) error {
	return e.record(ctx, ActionCouponRemoved, SeverityInfo, OutcomeSuccess,
		ResourceCoupon, code, CategoryPromo, nil,
		"session_id", sessionID,
	)
}

// OnCartCleared implements plugin.OnCartCleared.
func (e *Extension) OnCartCleared(ctx context.Context, sessionID string) error {
	return e.record(ctx, ActionCartCleared, SeverityInfo, OutcomeSuccess,
		ResourceCart, sessionID, CategoryCart, nil,
	)
}

// ──────────────────────────────────────────────────
// Order and payment hooks
// ──────────────────────────────────────────────────

// OnOrderPlaced implements plugin.OnOrderPlaced.
func (e *Extension) OnOrderPlaced(ctx context.Context, o *order.Order, p *payment.Payment) error {
	return e.record(ctx, ActionOrderPlaced, SeverityInfo, OutcomeSuccess,
		ResourceOrder, o.ID.String(), CategoryCheckout, nil,
		"session_id", o.SessionID,
		"receipt", o.Receipt,
		"total", o.Total.String(),
		"coupon_code", o.CouponCode,
		"gateway_order_id", p.GatewayOrderID,
	)
}

// OnPaymentVerified implements plugin.OnPaymentVerified.
func (e *Extension) OnPaymentVerified(ctx context.Context, o *order.Order, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentVerified, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"order_id", o.ID.String(),
		"transaction_ref", p.TransactionRef,
		"amount", p.Amount.String(),
	)
}

// OnPaymentRejected implements plugin.OnPaymentRejected. Signature
// mismatches are critical since they can indicate tampering.
func (e *Extension) OnPaymentRejected(ctx context.Context, orderID, gatewayOrderID string, reason error) error {
	return e.record(ctx, ActionPaymentRejected, SeverityCritical, OutcomeFailure,
		ResourcePayment, orderID, CategoryPayment, reason,
		"gateway_order_id", gatewayOrderID,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
