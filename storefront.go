package storefront

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/plugin"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/store"
	"github.com/xraph/storefront/types"
)

// Storefront is the engine tying the catalog, carts, checkout and payment
// verification together over a single Store.
type Storefront struct {
	store      store.Store
	plugins    *plugin.Registry
	carts      *cart.Manager
	dispatcher *cart.Dispatcher
	gateway    payment.Gateway
	secret     payment.SecretSource
	logger     *slog.Logger
	now        func() time.Time

	// Configuration
	currency      string
	cartCacheSize int
	skipMigrate   bool
}

// New creates a new Storefront instance.
func New(s store.Store, opts ...Option) (*Storefront, error) {
	sf := &Storefront{
		store:         s,
		plugins:       plugin.NewRegistry(),
		logger:        slog.Default(),
		now:           time.Now,
		currency:      types.DefaultCurrency,
		cartCacheSize: 4096,
	}

	for _, opt := range opts {
		opt(sf)
	}

	if sf.dispatcher == nil {
		sf.dispatcher = cart.NewDispatcher(0, sf.logger)
	}

	carts, err := cart.NewManager(sf.cartCacheSize, cart.StateStorage(s), couponLookup{s},
		cart.WithDispatcher(sf.dispatcher),
		cart.WithLogger(sf.logger),
		cart.WithCurrency(sf.currency),
		cart.WithClock(sf.now),
		cart.WithCouponCheck(sf.plugins.ValidateCoupon),
	)
	if err != nil {
		return nil, err
	}
	carts.SetLogger(sf.logger)
	carts.OnCreate(func(c *cart.Store) {
		c.Subscribe(func(snap cart.Snapshot, n cart.Notification) {
			sf.plugins.EmitCartEvent(context.Background(), snap, n)
		})
	})
	sf.carts = carts

	return sf, nil
}

// Option configures a Storefront instance.
type Option func(*Storefront)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(sf *Storefront) {
		sf.logger = logger
		sf.plugins.WithLogger(logger)
	}
}

// WithGateway sets the payment gateway used at checkout.
func WithGateway(g payment.Gateway) Option {
	return func(sf *Storefront) { sf.gateway = g }
}

// WithSecret sets where the payment signing secret is read from.
func WithSecret(src payment.SecretSource) Option {
	return func(sf *Storefront) { sf.secret = src }
}

// WithExtension registers a plugin.
func WithExtension(p plugin.Plugin) Option {
	return func(sf *Storefront) {
		_ = sf.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithCurrency sets the store currency. Defaults to INR.
func WithCurrency(currency string) Option {
	return func(sf *Storefront) { sf.currency = strings.ToLower(currency) }
}

// WithCartCacheSize bounds how many session carts are kept in memory.
func WithCartCacheSize(n int) Option {
	return func(sf *Storefront) { sf.cartCacheSize = n }
}

// WithDispatcher sets the dispatcher that delivers cart notifications to
// plugins. One is created when none is given.
func WithDispatcher(d *cart.Dispatcher) Option {
	return func(sf *Storefront) { sf.dispatcher = d }
}

// WithoutMigrate skips schema migration on Start, for stores whose schema
// is managed out of band.
func WithoutMigrate() Option {
	return func(sf *Storefront) { sf.skipMigrate = true }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(sf *Storefront) { sf.now = now }
}

// Start migrates the store, starts notification delivery and initializes
// plugins.
func (sf *Storefront) Start(ctx context.Context) error {
	if !sf.skipMigrate {
		if err := sf.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	sf.dispatcher.Start()
	sf.plugins.EmitInit(ctx, sf)

	gateway := "none"
	if sf.gateway != nil {
		gateway = sf.gateway.Name()
	}
	sf.logger.Info("storefront started",
		"currency", sf.currency,
		"cart_cache_size", sf.cartCacheSize,
		"gateway", gateway,
		"plugins", sf.plugins.Count(),
	)
	return nil
}

// Stop drains queued notifications, shuts plugins down and closes the store.
func (sf *Storefront) Stop(ctx context.Context) error {
	sf.dispatcher.Stop()
	sf.plugins.EmitShutdown(ctx)
	return sf.store.Close()
}

// Store returns the underlying store.
func (sf *Storefront) Store() store.Store { return sf.store }

// Plugins returns the plugin registry.
func (sf *Storefront) Plugins() *plugin.Registry { return sf.plugins }

// Currency returns the store currency.
func (sf *Storefront) Currency() string { return sf.currency }

// NewSessionID mints an identifier for a new shopper session.
func (sf *Storefront) NewSessionID() string { return id.NewSessionID().String() }

// ──────────────────────────────────────────────────
// Catalog
// ──────────────────────────────────────────────────

// CreateProduct adds a product to the catalog.
func (sf *Storefront) CreateProduct(ctx context.Context, p *product.Product) error {
	if p.Name == "" {
		return ValidationError{Field: "name", Message: "required"}
	}
	if p.Slug == "" {
		return ValidationError{Field: "slug", Message: "required"}
	}
	if p.Price.IsNegative() {
		return ValidationError{Field: "price", Message: "must not be negative"}
	}
	if p.ID.IsNil() {
		p.ID = id.NewProductID()
	}
	if p.Price.Currency == "" {
		p.Price.Currency = sf.currency
	}
	p.Entity = types.NewEntity()
	return sf.store.CreateProduct(ctx, p)
}

// ListProducts lists catalog products.
func (sf *Storefront) ListProducts(ctx context.Context, opts product.ListOpts) ([]*product.Product, error) {
	return sf.store.ListProducts(ctx, opts)
}

// GetProductBySlug returns an active product by slug.
func (sf *Storefront) GetProductBySlug(ctx context.Context, slug string) (*product.Product, error) {
	p, err := sf.store.GetProductBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// ──────────────────────────────────────────────────
// Coupons
// ──────────────────────────────────────────────────

// CreateCoupon stores a coupon under its normalized code.
func (sf *Storefront) CreateCoupon(ctx context.Context, c *coupon.Coupon) error {
	c.Code = coupon.Normalize(c.Code)
	if c.Code == "" {
		return ValidationError{Field: "code", Message: "required"}
	}
	switch c.Type {
	case coupon.TypePercentage:
		if c.Percentage <= 0 || c.Percentage > 100 {
			return ValidationError{Field: "percentage", Message: "must be between 1 and 100"}
		}
	case coupon.TypeFixed:
		if !c.Amount.IsPositive() {
			return ValidationError{Field: "amount", Message: "must be positive"}
		}
	default:
		return ValidationError{Field: "type", Message: fmt.Sprintf("unknown coupon type %q", c.Type)}
	}
	if c.ID.IsNil() {
		c.ID = id.NewCouponID()
	}
	c.Entity = types.NewEntity()
	return sf.store.CreateCoupon(ctx, c)
}

// couponLookup feeds the cart's coupon validator from the store.
type couponLookup struct{ s store.Store }

func (l couponLookup) FindCoupon(ctx context.Context, code string) (*coupon.Coupon, error) {
	return l.s.GetCouponByCode(ctx, code)
}

// ──────────────────────────────────────────────────
// Carts
// ──────────────────────────────────────────────────

// Cart returns the cart for a session, loading persisted state on first use.
func (sf *Storefront) Cart(ctx context.Context, sessionID string) (*cart.Store, error) {
	return sf.carts.Get(ctx, sessionID)
}

// AddProduct adds quantity units of a catalog product to the session cart.
// Prices come from the catalog, never from the caller.
func (sf *Storefront) AddProduct(ctx context.Context, sessionID string, productID id.ProductID, quantity int) (cart.Outcome, error) {
	p, err := sf.store.GetProduct(ctx, productID)
	if err != nil {
		return cart.Outcome{}, err
	}
	if !p.Active {
		return cart.Outcome{}, ErrProductInactive
	}
	c, err := sf.Cart(ctx, sessionID)
	if err != nil {
		return cart.Outcome{}, err
	}
	return c.AddItem(ctx, cart.FromProduct(p), quantity)
}

// ──────────────────────────────────────────────────
// Checkout
// ──────────────────────────────────────────────────

// CheckoutInput carries what the shopper enters at checkout.
type CheckoutInput struct {
	Email string `json:"email"`
}

// Checkout is what the client needs to open the gateway's payment sheet.
type Checkout struct {
	Order        *order.Order          `json:"order"`
	Payment      *payment.Payment      `json:"payment"`
	GatewayOrder *payment.GatewayOrder `json:"gateway_order"`
	KeyID        string                `json:"key_id"`
}

// PlaceOrder prices the session cart, records a pending order and payment,
// and opens an order on the gateway for the cart total. The cart is flagged
// as checking out until PlaceOrder returns.
func (sf *Storefront) PlaceOrder(ctx context.Context, sessionID string, in CheckoutInput) (*Checkout, error) {
	if sf.gateway == nil {
		return nil, fmt.Errorf("%w: no gateway configured", ErrGatewayFailed)
	}

	c, err := sf.Cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap, err := c.BeginCheckout()
	if err != nil {
		return nil, err
	}
	defer c.EndCheckout()

	o := newOrder(sessionID, snap, in)
	if err := sf.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("storefront: create order: %w", err)
	}

	p := &payment.Payment{
		Entity:   types.NewEntity(),
		ID:       id.NewPaymentID(),
		OrderID:  o.ID,
		Amount:   o.Total,
		Status:   payment.StatusPending,
		Provider: sf.gateway.Name(),
	}
	if err := sf.store.CreatePayment(ctx, p); err != nil {
		sf.cancelOrder(ctx, o, nil, err)
		return nil, fmt.Errorf("storefront: create payment: %w", err)
	}

	gw, err := sf.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   o.Total.MinorUnits(),
		Currency: strings.ToUpper(o.Currency),
		Receipt:  o.Receipt,
		Notes: map[string]string{
			"order_id":   o.ID.String(),
			"session_id": sessionID,
		},
	})
	if err != nil {
		sf.logger.Error("gateway order failed",
			"order_id", o.ID.String(),
			"receipt", o.Receipt,
			"error", err,
		)
		sf.cancelOrder(ctx, o, p, err)
		return nil, fmt.Errorf("%w: %w", ErrGatewayFailed, err)
	}

	o.GatewayOrderID = gw.ID
	o.Touch()
	if err := sf.store.UpdateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("storefront: record gateway order: %w", err)
	}
	p.GatewayOrderID = gw.ID
	p.Touch()
	if err := sf.store.UpdatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("storefront: record gateway order: %w", err)
	}

	sf.logger.Info("order placed",
		"order_id", o.ID.String(),
		"gateway_order_id", gw.ID,
		"total", o.Total.String(),
		"coupon_code", o.CouponCode,
	)
	sf.plugins.EmitOrderPlaced(ctx, o, p)

	return &Checkout{Order: o, Payment: p, GatewayOrder: gw, KeyID: sf.gateway.KeyID()}, nil
}

func newOrder(sessionID string, snap cart.Snapshot, in CheckoutInput) *order.Order {
	items := make([]order.LineItem, len(snap.Items))
	for i, it := range snap.Items {
		items[i] = order.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Slug:      it.Slug,
			Quantity:  int64(it.Quantity),
			UnitPrice: it.Price,
			Amount:    it.LineTotal(),
		}
	}

	o := &order.Order{
		Entity:         types.NewEntity(),
		ID:             id.NewOrderID(),
		SessionID:      sessionID,
		Receipt:        id.NewReceiptID().String(),
		Status:         order.StatusPending,
		Currency:       snap.Total.Currency,
		Items:          items,
		Subtotal:       snap.Subtotal,
		DiscountAmount: snap.Discount,
		Total:          snap.Total,
		CustomerEmail:  strings.TrimSpace(in.Email),
	}
	if snap.AppliedCoupon != nil {
		o.CouponCode = snap.AppliedCoupon.Code
	}
	return o
}

// cancelOrder marks a checkout that never reached the gateway as dead.
// Failures are logged; the caller already has an error to return.
func (sf *Storefront) cancelOrder(ctx context.Context, o *order.Order, p *payment.Payment, cause error) {
	o.Status = order.StatusCancelled
	o.Touch()
	if err := sf.store.UpdateOrder(ctx, o); err != nil {
		sf.logger.Warn("cancel order", "order_id", o.ID.String(), "error", err)
	}
	if p == nil {
		return
	}
	p.Status = payment.StatusFailed
	p.FailureReason = cause.Error()
	p.Touch()
	if err := sf.store.UpdatePayment(ctx, p); err != nil {
		sf.logger.Warn("fail payment", "payment_id", p.ID.String(), "error", err)
	}
}

// ──────────────────────────────────────────────────
// Payment verification
// ──────────────────────────────────────────────────

// VerifyInput is the gateway's success callback as relayed by the client.
type VerifyInput struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

// VerifyResult reports a verification outcome.
type VerifyResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	PaymentID string `json:"payment_id,omitempty"`
}

// VerifyPayment checks the gateway signature over
// GatewayOrderID|GatewayPaymentID with the server secret. A valid signature
// is a successful payment: the order and payment are then confirmed in one
// atomic write and the session cart is cleared, and failures in those steps
// are logged without changing the result.
func (sf *Storefront) VerifyPayment(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if sf.secret == nil {
		return nil, ErrMissingSecret
	}
	secret, err := sf.secret.Secret(ctx)
	if err != nil {
		return nil, err
	}

	if err := payment.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature, secret); err != nil {
		sf.rejectPayment(ctx, in, err)
		return nil, err
	}

	o, err := sf.lookupOrder(ctx, in.OrderID)
	if err != nil {
		sf.logger.Error("verified payment for unknown order",
			"order_id", in.OrderID,
			"gateway_order_id", in.GatewayOrderID,
			"error", err,
		)
		return verified(in), nil
	}
	if o.GatewayOrderID != "" && o.GatewayOrderID != in.GatewayOrderID {
		// A valid signature for another gateway order must not confirm this one.
		sf.rejectPayment(ctx, in, ErrSignatureMismatch)
		return nil, ErrSignatureMismatch
	}
	if o.Status == order.StatusConfirmed {
		return verified(in), nil
	}

	if err := sf.store.ConfirmPayment(ctx, o.ID, in.GatewayPaymentID, sf.now().UTC()); err != nil {
		sf.logger.Error("confirm payment",
			"order_id", o.ID.String(),
			"payment_id", in.GatewayPaymentID,
			"error", err,
		)
	} else {
		sf.emitVerified(ctx, o.ID)
	}

	sf.settleCart(ctx, o)
	return verified(in), nil
}

func verified(in VerifyInput) *VerifyResult {
	return &VerifyResult{
		Success:   true,
		Message:   "Payment verified successfully",
		PaymentID: in.GatewayPaymentID,
	}
}

func (sf *Storefront) lookupOrder(ctx context.Context, raw string) (*order.Order, error) {
	orderID, err := id.ParseOrderID(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOrderNotFound, err)
	}
	return sf.store.GetOrder(ctx, orderID)
}

func (sf *Storefront) rejectPayment(ctx context.Context, in VerifyInput, reason error) {
	sf.logger.Warn("payment verification failed",
		"order_id", in.OrderID,
		"gateway_order_id", in.GatewayOrderID,
		"error", reason,
	)
	sf.plugins.EmitPaymentRejected(ctx, in.OrderID, in.GatewayOrderID, reason)
}

func (sf *Storefront) emitVerified(ctx context.Context, orderID id.OrderID) {
	o, err := sf.store.GetOrder(ctx, orderID)
	if err != nil {
		sf.logger.Warn("reload confirmed order", "order_id", orderID.String(), "error", err)
		return
	}
	p, err := sf.store.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		sf.logger.Warn("reload confirmed payment", "order_id", orderID.String(), "error", err)
		return
	}
	sf.plugins.EmitPaymentVerified(ctx, o, p)
}

// settleCart takes the paid order's lines out of its session cart. Lines
// added after checkout stay.
func (sf *Storefront) settleCart(ctx context.Context, o *order.Order) {
	if o.SessionID == "" {
		return
	}
	c, err := sf.Cart(ctx, o.SessionID)
	if err != nil {
		sf.logger.Warn("load cart to settle", "session_id", o.SessionID, "error", err)
		return
	}
	bought := make([]cart.Purchased, len(o.Items))
	for i, li := range o.Items {
		bought[i] = cart.Purchased{ProductID: li.ProductID, Quantity: int(li.Quantity)}
	}
	c.SettleOrder(ctx, bought, o.CouponCode)
}

// GetOrder returns an order by ID.
func (sf *Storefront) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return sf.store.GetOrder(ctx, orderID)
}

