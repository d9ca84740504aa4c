// Package memory provides an in-memory store.Store for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
	sfstore "github.com/xraph/storefront/store"
)

// compile-time interface check
var _ sfstore.Store = (*Store)(nil)

// Store keeps every record in maps guarded by a single RWMutex. Records are
// copied on the way in and out so callers never share state with the store.
type Store struct {
	mu sync.RWMutex

	products map[string]*product.Product
	coupons  map[string]*coupon.Coupon
	orders   map[string]*order.Order
	payments map[string]*payment.Payment

	// Serialized cart state keyed by storage key
	cartState map[string]string
}

func New() *Store {
	return &Store{
		products:  make(map[string]*product.Product),
		coupons:   make(map[string]*coupon.Coupon),
		orders:    make(map[string]*order.Order),
		payments:  make(map[string]*payment.Payment),
		cartState: make(map[string]string),
	}
}

// ==================== Product Store ====================

func (s *Store) CreateProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID.String()]; exists {
		return storefront.ErrAlreadyExists
	}
	for _, existing := range s.products {
		if existing.Slug == p.Slug {
			return storefront.ErrAlreadyExists
		}
	}
	cp := *p
	s.products[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetProduct(_ context.Context, productID id.ProductID) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.products[productID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, storefront.ErrProductNotFound
}

func (s *Store) GetProductBySlug(_ context.Context, slug string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, storefront.ErrProductNotFound
}

func (s *Store) ListProducts(_ context.Context, opts product.ListOpts) ([]*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*product.Product, 0)
	for _, p := range s.products {
		if opts.Category != "" && p.Category != opts.Category {
			continue
		}
		if opts.ActiveOnly && !p.Active {
			continue
		}
		cp := *p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateProduct(_ context.Context, p *product.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[p.ID.String()]; !exists {
		return storefront.ErrProductNotFound
	}
	cp := *p
	s.products[p.ID.String()] = &cp
	return nil
}

// ==================== Coupon Store ====================

func (s *Store) CreateCoupon(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := coupon.Normalize(c.Code)
	for _, existing := range s.coupons {
		if existing.Code == code {
			return storefront.ErrAlreadyExists
		}
	}
	cp := *c
	cp.Code = code
	s.coupons[c.ID.String()] = &cp
	return nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	code = coupon.Normalize(code)
	for _, c := range s.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storefront.ErrCouponNotFound
}

func (s *Store) GetCouponByID(_ context.Context, couponID id.CouponID) (*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.coupons[couponID.String()]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, storefront.ErrCouponNotFound
}

func (s *Store) ListCoupons(_ context.Context, opts coupon.ListOpts) ([]*coupon.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*coupon.Coupon, 0)
	now := time.Now().UTC()

	for _, c := range s.coupons {
		if opts.Active && (!c.Active || (c.ValidUntil != nil && now.After(*c.ValidUntil))) {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateCoupon(_ context.Context, c *coupon.Coupon) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.coupons[c.ID.String()]; !exists {
		return storefront.ErrCouponNotFound
	}
	cp := *c
	cp.Code = coupon.Normalize(c.Code)
	s.coupons[c.ID.String()] = &cp
	return nil
}

func (s *Store) DeleteCoupon(_ context.Context, couponID id.CouponID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.coupons[couponID.String()]; !exists {
		return storefront.ErrCouponNotFound
	}
	delete(s.coupons, couponID.String())
	return nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID.String()]; exists {
		return storefront.ErrAlreadyExists
	}
	s.orders[o.ID.String()] = cloneOrder(o)
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID id.OrderID) (*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if o, ok := s.orders[orderID.String()]; ok {
		return cloneOrder(o), nil
	}
	return nil, storefront.ErrOrderNotFound
}

func (s *Store) ListOrders(_ context.Context, opts order.ListOpts) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*order.Order, 0)
	for _, o := range s.orders {
		if opts.SessionID != "" && o.SessionID != opts.SessionID {
			continue
		}
		if opts.Status != "" && o.Status != opts.Status {
			continue
		}
		result = append(result, cloneOrder(o))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[o.ID.String()]; !exists {
		return storefront.ErrOrderNotFound
	}
	s.orders[o.ID.String()] = cloneOrder(o)
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID.String()]; exists {
		return storefront.ErrAlreadyExists
	}
	cp := *p
	s.payments[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[paymentID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, storefront.ErrPaymentNotFound
}

func (s *Store) GetPaymentByOrder(_ context.Context, orderID id.OrderID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p := s.paymentForOrder(orderID); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, storefront.ErrPaymentNotFound
}

func (s *Store) UpdatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID.String()]; !exists {
		return storefront.ErrPaymentNotFound
	}
	cp := *p
	s.payments[p.ID.String()] = &cp
	return nil
}

// ConfirmPayment performs every check before the first write, all under the
// write lock, so the order, payment and coupon move together.
func (s *Store) ConfirmPayment(_ context.Context, orderID id.OrderID, txRef string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID.String()]
	if !ok {
		return storefront.ErrOrderNotFound
	}
	if o.Status == order.StatusConfirmed {
		return nil
	}
	p := s.paymentForOrder(orderID)
	if p == nil {
		return storefront.ErrPaymentNotFound
	}

	at = at.UTC()
	o.Status = order.StatusConfirmed
	o.PaymentRef = txRef
	o.ConfirmedAt = &at
	o.UpdatedAt = at

	p.Status = payment.StatusCompleted
	p.TransactionRef = txRef
	p.PaidAt = &at
	p.UpdatedAt = at

	if o.CouponCode != "" {
		code := coupon.Normalize(o.CouponCode)
		for _, c := range s.coupons {
			if c.Code == code {
				c.CurrentUses++
				c.UpdatedAt = at
				break
			}
		}
	}
	return nil
}

// ==================== Cart State Store ====================

func (s *Store) GetCartState(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.cartState[key]
	return v, ok, nil
}

func (s *Store) PutCartState(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cartState[key] = value
	return nil
}

func (s *Store) DeleteCartState(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.cartState, key)
	return nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}

// Helper functions

func (s *Store) paymentForOrder(orderID id.OrderID) *payment.Payment {
	for _, p := range s.payments {
		if p.OrderID.String() == orderID.String() {
			return p
		}
	}
	return nil
}

func cloneOrder(o *order.Order) *order.Order {
	cp := *o
	cp.Items = append([]order.LineItem(nil), o.Items...)
	return &cp
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
