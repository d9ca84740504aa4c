// Package cart holds a shopper's cart: its lines, the coupon bound to it,
// and the derived totals. A Store owns the state for one session, persists
// every change to Storage, and reports what changed as notifications.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/types"
)

// CouponSource looks up a coupon record by canonical code. It returns an
// error wrapping coupon.ErrNotFound when no record has that code.
type CouponSource interface {
	FindCoupon(ctx context.Context, code string) (*coupon.Coupon, error)
}

// CouponCheck is an extra eligibility rule run after the record checks.
// A non-nil error rejects the coupon as invalid.
type CouponCheck func(ctx context.Context, sessionID string, c *coupon.Coupon, subtotal types.Money) error

// Store is the cart of a single session. All mutations are serialized.
type Store struct {
	sessionID  string
	storage    Storage
	coupons    CouponSource
	dispatcher *Dispatcher
	inbox      *inbox
	logger     *slog.Logger
	currency   string
	now        func() time.Time
	checks     []CouponCheck

	mu          sync.Mutex
	items       []Item
	applied     *coupon.Applied
	panelOpen   bool
	applying    bool
	checkingOut bool
	listeners   []Listener
}

// Option configures a Store.
type Option func(*Store)

// WithDispatcher delivers notifications through a shared Dispatcher. Without
// one, each Store delivers its own notifications in mutation order.
func WithDispatcher(d *Dispatcher) Option {
	return func(s *Store) { s.dispatcher = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithCurrency sets the cart currency. Defaults to types.DefaultCurrency.
func WithCurrency(currency string) Option {
	return func(s *Store) { s.currency = currency }
}

// WithClock overrides time.Now, used for coupon expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithCouponCheck adds an eligibility rule to ApplyCoupon.
func WithCouponCheck(check CouponCheck) Option {
	return func(s *Store) { s.checks = append(s.checks, check) }
}

// New creates an empty cart for sessionID. Call Hydrate to load persisted state.
func New(sessionID string, storage Storage, coupons CouponSource, opts ...Option) *Store {
	s := &Store{
		sessionID: sessionID,
		storage:   storage,
		coupons:   coupons,
		logger:    slog.Default(),
		currency:  types.DefaultCurrency,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", sessionID)
	if s.dispatcher == nil {
		s.inbox = newInbox(s.logger)
	}
	return s
}

// SessionID returns the owning session.
func (s *Store) SessionID() string { return s.sessionID }

// Subscribe registers a listener for future notifications.
func (s *Store) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// ──────────────────────────────────────────────────
// Hydration
// ──────────────────────────────────────────────────

// Hydrate replaces the in-memory cart with what Storage holds. Unparseable
// content is logged and discarded, leaving that part of the cart empty.
// Only storage read failures are returned.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.loadItems(ctx)
	if err != nil {
		return err
	}
	applied, err := s.loadCoupon(ctx)
	if err != nil {
		return err
	}

	s.items = items
	s.applied = applied

	if s.applied != nil && !s.applied.MeetsMinimum(s.subtotalLocked()) {
		s.logger.Info("dropping persisted coupon below minimum order", "code", s.applied.Code)
		s.applied = nil
		s.persistCoupon(ctx)
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context) ([]Item, error) {
	raw, ok, err := s.storage.Get(ctx, CartKey(s.sessionID))
	if err != nil {
		return nil, fmt.Errorf("cart: read cart state: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var stored []Item
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("discarding unreadable cart state", "error", err)
		return nil, nil
	}

	items := make([]Item, 0, len(stored))
	seen := make(map[string]int, len(stored))
	for _, it := range stored {
		if it.ProductID.IsNil() || it.Quantity < 1 || it.Price.Currency != s.currency {
			s.logger.Warn("discarding invalid cart line", "product_id", it.ProductID.String())
			continue
		}
		key := it.ProductID.String()
		if idx, dup := seen[key]; dup {
			items[idx].Quantity += it.Quantity
			continue
		}
		seen[key] = len(items)
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) loadCoupon(ctx context.Context) (*coupon.Applied, error) {
	raw, ok, err := s.storage.Get(ctx, CouponKey(s.sessionID))
	if err != nil {
		return nil, fmt.Errorf("cart: read coupon state: %w", err)
	}
	if !ok || raw == "" || raw == "null" {
		return nil, nil
	}

	var applied coupon.Applied
	if err := json.Unmarshal([]byte(raw), &applied); err != nil || applied.Code == "" {
		s.logger.Warn("discarding unreadable coupon state", "error", err)
		return nil, nil
	}
	return &applied, nil
}

// ──────────────────────────────────────────────────
// Line mutations
// ──────────────────────────────────────────────────

// AddItem adds quantity of item, merging into an existing line for the
// same product. Quantities below 1 count as 1. Opens the cart panel.
func (s *Store) AddItem(ctx context.Context, item Item, quantity int) (Outcome, error) {
	if item.ProductID.IsNil() || item.Price.Currency != s.currency || item.Price.IsNegative() {
		return Outcome{Cart: s.Snapshot()}, ErrInvalidItem
	}
	if quantity < 1 {
		quantity = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n Notification
	if idx := s.indexOf(item.ProductID); idx >= 0 {
		s.items[idx].Quantity += quantity
		n = s.notification(EventItemUpdated, KindSuccess, fmt.Sprintf("Updated %s quantity in cart", s.items[idx].Name))
	} else {
		item.Quantity = quantity
		s.items = append(s.items, item)
		n = s.notification(EventItemAdded, KindSuccess, item.Name+" added to cart")
	}
	n.ProductID = item.ProductID.String()
	s.panelOpen = true

	s.persistItems(ctx)
	notes := append([]Notification{n}, s.revalidateCoupon(ctx)...)
	return s.commit(notes), nil
}

// RemoveItem drops the line for productID. Removing an absent product is
// a no-op without notifications.
func (s *Store) RemoveItem(ctx context.Context, productID id.ProductID) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, productID)
}

// UpdateQuantity overwrites a line's quantity in place. A quantity below 1
// removes the line exactly as RemoveItem does.
func (s *Store) UpdateQuantity(ctx context.Context, productID id.ProductID, quantity int) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity < 1 {
		return s.removeLocked(ctx, productID)
	}

	idx := s.indexOf(productID)
	if idx < 0 {
		return s.commit(nil)
	}
	s.items[idx].Quantity = quantity

	s.persistItems(ctx)
	return s.commit(s.revalidateCoupon(ctx))
}

func (s *Store) removeLocked(ctx context.Context, productID id.ProductID) Outcome {
	idx := s.indexOf(productID)
	if idx < 0 {
		return s.commit(nil)
	}
	removed := s.items[idx]
	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)

	n := s.notification(EventItemRemoved, KindInfo, removed.Name+" removed from cart")
	n.ProductID = removed.ProductID.String()

	s.persistItems(ctx)
	notes := append([]Notification{n}, s.revalidateCoupon(ctx)...)
	return s.commit(notes)
}

// ClearCart empties the cart and detaches any applied coupon.
func (s *Store) ClearCart(ctx context.Context) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.applied = nil
	s.remove(ctx, CartKey(s.sessionID))
	s.remove(ctx, CouponKey(s.sessionID))

	return s.commit([]Notification{s.notification(EventCartCleared, KindInfo, "Cart cleared")})
}

// Purchased is a quantity of one product bought through checkout.
type Purchased struct {
	ProductID id.ProductID
	Quantity  int
}

// SettleOrder takes a paid order's quantities out of the cart. Lines added
// or topped up after checkout keep the difference. The applied coupon is
// detached when it is the one the order used. A cart left with no lines is
// cleared exactly as ClearCart does.
func (s *Store) SettleOrder(ctx context.Context, bought []Purchased, couponCode string) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var notes []Notification
	for _, b := range bought {
		idx := s.indexOf(b.ProductID)
		if idx < 0 {
			continue
		}
		line := s.items[idx]
		var n Notification
		if line.Quantity <= b.Quantity {
			s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
			n = s.notification(EventItemRemoved, KindInfo, line.Name+" removed from cart")
		} else {
			s.items[idx].Quantity -= b.Quantity
			n = s.notification(EventItemUpdated, KindInfo, fmt.Sprintf("Updated %s quantity in cart", line.Name))
		}
		n.ProductID = line.ProductID.String()
		notes = append(notes, n)
	}

	if len(s.items) == 0 {
		s.items = nil
		s.applied = nil
		s.remove(ctx, CartKey(s.sessionID))
		s.remove(ctx, CouponKey(s.sessionID))
		return s.commit([]Notification{s.notification(EventCartCleared, KindInfo, "Cart cleared")})
	}

	s.persistItems(ctx)
	if s.applied != nil && couponCode != "" && s.applied.Code == couponCode {
		n := s.notification(EventCouponRemoved, KindInfo, "Coupon removed")
		n.CouponCode = couponCode
		s.applied = nil
		s.persistCoupon(ctx)
		notes = append(notes, n)
	}
	return s.commit(append(notes, s.revalidateCoupon(ctx)...))
}

// SetPanelOpen shows or hides the cart panel.
func (s *Store) SetPanelOpen(open bool) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panelOpen = open
	return s.commit(nil)
}

// ──────────────────────────────────────────────────
// Coupons
// ──────────────────────────────────────────────────

// ApplyCoupon validates code against the coupon source and binds it to the
// cart. The applying flag is raised before the lookup and lowered on every
// exit path. Failures are one of ErrCouponCodeRequired, ErrCouponInvalid,
// *MinimumOrderError, ErrCouponApplyInProgress or ErrCouponApplyFailed;
// the cart is unchanged on failure.
func (s *Store) ApplyCoupon(ctx context.Context, code string) (Outcome, error) {
	canonical := coupon.Normalize(code)
	if canonical == "" {
		return s.reject(ErrCouponCodeRequired, "")
	}

	s.mu.Lock()
	if s.applying {
		s.mu.Unlock()
		return s.reject(ErrCouponApplyInProgress, canonical)
	}
	s.applying = true
	subtotal := s.subtotalLocked()
	s.mu.Unlock()

	c, err := s.resolveCoupon(ctx, canonical, subtotal)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applying = false

	if err != nil {
		return s.rejectLocked(err, canonical)
	}

	// The cart may have changed while the lookup was in flight.
	if !c.MeetsMinimum(s.subtotalLocked()) {
		return s.rejectLocked(&MinimumOrderError{Code: canonical, Minimum: *c.MinOrderAmount}, canonical)
	}

	s.applied = c.Bind()
	s.persistCoupon(ctx)

	n := s.notification(EventCouponApplied, KindSuccess, fmt.Sprintf("Coupon %s applied", canonical))
	n.CouponCode = canonical
	return s.commit([]Notification{n}), nil
}

// resolveCoupon runs without the lock held. It never panics past its
// boundary: any failure becomes one of the coupon errors.
func (s *Store) resolveCoupon(ctx context.Context, code string, subtotal types.Money) (c *coupon.Coupon, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("coupon lookup panicked", "code", code, "panic", r)
			c, err = nil, ErrCouponApplyFailed
		}
	}()

	if s.coupons == nil {
		return nil, ErrCouponApplyFailed
	}

	c, err = s.coupons.FindCoupon(ctx, code)
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		return nil, ErrCouponInvalid
	case err != nil:
		s.logger.Error("coupon lookup failed", "code", code, "error", err)
		return nil, ErrCouponApplyFailed
	case c == nil:
		return nil, ErrCouponInvalid
	}

	if reason := c.Check(s.now()); reason != nil {
		s.logger.Debug("coupon not redeemable", "code", code, "reason", reason)
		return nil, ErrCouponInvalid
	}
	for _, check := range s.checks {
		if reason := check(ctx, s.sessionID, c, subtotal); reason != nil {
			s.logger.Debug("coupon vetoed", "code", code, "reason", reason)
			return nil, ErrCouponInvalid
		}
	}
	if !c.MeetsMinimum(subtotal) {
		return nil, &MinimumOrderError{Code: code, Minimum: *c.MinOrderAmount}
	}
	return c, nil
}

// RemoveCoupon detaches the applied coupon. It always succeeds.
func (s *Store) RemoveCoupon(ctx context.Context) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.notification(EventCouponRemoved, KindInfo, "Coupon removed")
	if s.applied != nil {
		n.CouponCode = s.applied.Code
	}
	s.applied = nil
	s.persistCoupon(ctx)

	return s.commit([]Notification{n})
}

// revalidateCoupon detaches the applied coupon once the subtotal drops
// below its minimum order amount. Called with the lock held after any
// change to the lines.
func (s *Store) revalidateCoupon(ctx context.Context) []Notification {
	if s.applied == nil {
		return nil
	}
	if s.applied.MeetsMinimum(s.subtotalLocked()) {
		return nil
	}

	detached := s.applied
	s.applied = nil
	s.persistCoupon(ctx)

	n := s.notification(EventCouponDetached, KindWarning,
		fmt.Sprintf("Coupon %s removed: minimum order amount of %s no longer met", detached.Code, detached.MinOrderAmount))
	n.CouponCode = detached.Code
	return []Notification{n}
}

func (s *Store) reject(err error, code string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejectLocked(err, code)
}

func (s *Store) rejectLocked(err error, code string) (Outcome, error) {
	n := s.notification(EventCouponRejected, KindError, UserMessage(err))
	n.CouponCode = code
	n.Err = err
	return s.commit([]Notification{n}), err
}

// ──────────────────────────────────────────────────
// Checkout flag
// ──────────────────────────────────────────────────

// BeginCheckout marks the cart as being checked out and returns the
// snapshot checkout should price from.
func (s *Store) BeginCheckout() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkingOut {
		return s.snapshotLocked(), ErrCheckoutInProgress
	}
	if len(s.items) == 0 {
		return s.snapshotLocked(), ErrEmptyCart
	}
	s.checkingOut = true
	out := s.commit([]Notification{s.notification(EventCheckoutStarted, KindInfo, "Checkout started")})
	return out.Cart, nil
}

// EndCheckout clears the checkout flag.
func (s *Store) EndCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkingOut = false
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Snapshot returns the current cart with freshly computed totals.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// ItemCount is the sum of all line quantities.
func (s *Store) ItemCount() int { return s.Snapshot().ItemCount }

// Subtotal is the sum of price × quantity over all lines.
func (s *Store) Subtotal() types.Money { return s.Snapshot().Subtotal }

// Total is the subtotal less the coupon discount.
func (s *Store) Total() types.Money { return s.Snapshot().Total }

func (s *Store) snapshotLocked() Snapshot {
	items := make([]Item, len(s.items))
	copy(items, s.items)

	count := 0
	for _, it := range items {
		count += it.Quantity
	}
	subtotal := s.subtotalLocked()
	discount := s.applied.Discount(subtotal)

	var applied *coupon.Applied
	if s.applied != nil {
		c := *s.applied
		applied = &c
	}

	return Snapshot{
		SessionID:      s.sessionID,
		Items:          items,
		ItemCount:      count,
		Subtotal:       subtotal,
		Discount:       discount,
		Total:          subtotal.Subtract(discount).ClampZero(),
		AppliedCoupon:  applied,
		PanelOpen:      s.panelOpen,
		ApplyingCoupon: s.applying,
		CheckingOut:    s.checkingOut,
	}
}

func (s *Store) subtotalLocked() types.Money {
	total := types.Zero(s.currency)
	for _, it := range s.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (s *Store) indexOf(productID id.ProductID) int {
	for i, it := range s.items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

// ──────────────────────────────────────────────────
// Persistence and delivery
// ──────────────────────────────────────────────────

// Persistence failures are logged, not returned: the in-memory cart is
// authoritative once hydrated and the next mutation rewrites the key.
func (s *Store) persistItems(ctx context.Context) {
	if len(s.items) == 0 {
		s.remove(ctx, CartKey(s.sessionID))
		return
	}
	data, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("encode cart state", "error", err)
		return
	}
	if err := s.storage.Set(ctx, CartKey(s.sessionID), string(data)); err != nil {
		s.logger.Error("persist cart state", "error", err)
	}
}

func (s *Store) persistCoupon(ctx context.Context) {
	if s.applied == nil {
		s.remove(ctx, CouponKey(s.sessionID))
		return
	}
	data, err := json.Marshal(s.applied)
	if err != nil {
		s.logger.Error("encode coupon state", "error", err)
		return
	}
	if err := s.storage.Set(ctx, CouponKey(s.sessionID), string(data)); err != nil {
		s.logger.Error("persist coupon state", "error", err)
	}
}

func (s *Store) remove(ctx context.Context, key string) {
	if err := s.storage.Remove(ctx, key); err != nil {
		s.logger.Error("remove cart state", "key", key, "error", err)
	}
}

func (s *Store) notification(event Event, kind Kind, msg string) Notification {
	return Notification{
		SessionID: s.sessionID,
		Event:     event,
		Kind:      kind,
		Message:   msg,
		At:        s.now().UTC(),
	}
}

// commit snapshots the state and hands the notifications to the
// dispatcher. It runs with the lock held so batches from one cart are
// queued in mutation order; listeners run later on the dispatcher.
func (s *Store) commit(notes []Notification) Outcome {
	out := Outcome{Cart: s.snapshotLocked(), Notifications: notes}
	if out.Notifications == nil {
		out.Notifications = []Notification{}
	}

	if len(notes) > 0 && len(s.listeners) > 0 {
		listeners := make([]Listener, len(s.listeners))
		copy(listeners, s.listeners)
		dl := delivery{listeners: listeners, snapshot: out.Cart, notifications: notes}
		if s.dispatcher != nil {
			s.dispatcher.enqueue(dl)
		} else {
			s.inbox.push(dl)
		}
	}
	return out
}
