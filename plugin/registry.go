package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/types"
)

// DefaultHookTimeout bounds every plugin call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit            []OnInit
	onShutdown        []OnShutdown
	onCartEvent       []OnCartEvent
	onCartCleared     []OnCartCleared
	onCouponApplied   []OnCouponApplied
	onCouponRejected  []OnCouponRejected
	onCouponRemoved   []OnCouponRemoved
	onOrderPlaced     []OnOrderPlaced
	onPaymentVerified []OnPaymentVerified
	onPaymentRejected []OnPaymentRejected
	couponValidators  []CouponValidator
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides the per-call hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnCartEvent); ok {
		r.onCartEvent = append(r.onCartEvent, v)
	}
	if v, ok := p.(OnCartCleared); ok {
		r.onCartCleared = append(r.onCartCleared, v)
	}
	if v, ok := p.(OnCouponApplied); ok {
		r.onCouponApplied = append(r.onCouponApplied, v)
	}
	if v, ok := p.(OnCouponRejected); ok {
		r.onCouponRejected = append(r.onCouponRejected, v)
	}
	if v, ok := p.(OnCouponRemoved); ok {
		r.onCouponRemoved = append(r.onCouponRemoved, v)
	}
	if v, ok := p.(OnOrderPlaced); ok {
		r.onOrderPlaced = append(r.onOrderPlaced, v)
	}
	if v, ok := p.(OnPaymentVerified); ok {
		r.onPaymentVerified = append(r.onPaymentVerified, v)
	}
	if v, ok := p.(OnPaymentRejected); ok {
		r.onPaymentRejected = append(r.onPaymentRejected, v)
	}
	if v, ok := p.(CouponValidator); ok {
		r.couponValidators = append(r.couponValidators, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeOf((*OnInit)(nil)).Elem()},
	{"OnShutdown", reflect.TypeOf((*OnShutdown)(nil)).Elem()},
	{"OnCartEvent", reflect.TypeOf((*OnCartEvent)(nil)).Elem()},
	{"OnCartCleared", reflect.TypeOf((*OnCartCleared)(nil)).Elem()},
	{"OnCouponApplied", reflect.TypeOf((*OnCouponApplied)(nil)).Elem()},
	{"OnCouponRejected", reflect.TypeOf((*OnCouponRejected)(nil)).Elem()},
	{"OnCouponRemoved", reflect.TypeOf((*OnCouponRemoved)(nil)).Elem()},
	{"OnOrderPlaced", reflect.TypeOf((*OnOrderPlaced)(nil)).Elem()},
	{"OnPaymentVerified", reflect.TypeOf((*OnPaymentVerified)(nil)).Elem()},
	{"OnPaymentRejected", reflect.TypeOf((*OnPaymentRejected)(nil)).Elem()},
	{"CouponValidator", reflect.TypeOf((*CouponValidator)(nil)).Elem()},
}

// implementedInterfaces returns the hook interfaces implemented by the plugin.
func implementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			interfaces = append(interfaces, h.name)
		}
	}
	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, sf interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, sf)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCartEvent forwards a cart notification, then fans it out to the
// narrower coupon and cart hooks it corresponds to.
func (r *Registry) EmitCartEvent(ctx context.Context, snap cart.Snapshot, n cart.Notification) {
	r.mu.RLock()
	plugins := r.onCartEvent
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCartEvent(ctx, snap, n)
		}); err != nil {
			r.logger.Warn("plugin OnCartEvent failed",
				"plugin", p.Name(),
				"event", string(n.Event),
				"error", err,
			)
		}
	}

	switch n.Event {
	case cart.EventCouponApplied:
		r.EmitCouponApplied(ctx, n.SessionID, snap.AppliedCoupon)
	case cart.EventCouponRejected:
		r.EmitCouponRejected(ctx, n.SessionID, n.CouponCode, n.Err)
	case cart.EventCouponRemoved, cart.EventCouponDetached:
		r.EmitCouponRemoved(ctx, n.SessionID, n.CouponCode)
	case cart.EventCartCleared:
		r.EmitCartCleared(ctx, n.SessionID)
	}
}

// EmitCartCleared emits a cart cleared event.
func (r *Registry) EmitCartCleared(ctx context.Context, sessionID string) {
	r.mu.RLock()
	plugins := r.onCartCleared
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCartCleared(ctx, sessionID)
		}); err != nil {
			r.logger.Warn("plugin OnCartCleared failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCouponApplied emits a coupon applied event.
func (r *Registry) EmitCouponApplied(ctx context.Context, sessionID string, applied *coupon.Applied) {
	r.mu.RLock()
	plugins := r.onCouponApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCouponApplied(ctx, sessionID, applied)
		}); err != nil {
			r.logger.Warn("plugin OnCouponApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCouponRejected emits a coupon rejected event.
func (r *Registry) EmitCouponRejected(ctx context.Context, sessionID, code string, reason error) {
	r.mu.RLock()
	plugins := r.onCouponRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCouponRejected(ctx, sessionID, code, reason)
		}); err != nil {
			r.logger.Warn("plugin OnCouponRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCouponRemoved emits a coupon removed event.
func (r *Registry) EmitCouponRemoved(ctx context.Context, sessionID, code string) {
	r.mu.RLock()
	plugins := r.onCouponRemoved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCouponRemoved(ctx, sessionID, code)
		}); err != nil {
			r.logger.Warn("plugin OnCouponRemoved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitOrderPlaced emits an order placed event.
func (r *Registry) EmitOrderPlaced(ctx context.Context, o *order.Order, p *payment.Payment) {
	r.mu.RLock()
	plugins := r.onOrderPlaced
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnOrderPlaced(ctx, o, p)
		}); err != nil {
			r.logger.Warn("plugin OnOrderPlaced failed",
				"plugin", pl.Name(),
				"order_id", o.ID.String(),
				"error", err,
			)
		}
	}
}

// EmitPaymentVerified emits a payment verified event.
func (r *Registry) EmitPaymentVerified(ctx context.Context, o *order.Order, p *payment.Payment) {
	r.mu.RLock()
	plugins := r.onPaymentVerified
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnPaymentVerified(ctx, o, p)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentVerified failed",
				"plugin", pl.Name(),
				"order_id", o.ID.String(),
				"error", err,
			)
		}
	}
}

// EmitPaymentRejected emits a payment rejected event.
func (r *Registry) EmitPaymentRejected(ctx context.Context, orderID, gatewayOrderID string, reason error) {
	r.mu.RLock()
	plugins := r.onPaymentRejected
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentRejected(ctx, orderID, gatewayOrderID, reason)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentRejected failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// ValidateCoupon runs every CouponValidator in registration order and
// returns the first rejection. A validator that times out rejects.
func (r *Registry) ValidateCoupon(ctx context.Context, sessionID string, c *coupon.Coupon, subtotal types.Money) error {
	r.mu.RLock()
	validators := r.couponValidators
	r.mu.RUnlock()

	for _, v := range validators {
		if err := r.callWithTimeout(ctx, v.Name(), func() error {
			return v.ValidateCoupon(ctx, sessionID, c, subtotal)
		}); err != nil {
			return fmt.Errorf("plugin %s: %w", v.Name(), err)
		}
	}
	return nil
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the checkout pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
