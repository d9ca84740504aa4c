package storefront_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/store/memory"
	"github.com/xraph/storefront/types"
)

const testSecret = "test_secret"

type fakeGateway struct {
	mu       sync.Mutex
	requests []payment.OrderRequest
	err      error
}

func (g *fakeGateway) Name() string  { return "fake" }
func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return &payment.GatewayOrder{
		ID:       "order_" + req.Receipt,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

type hookRecorder struct {
	mu       sync.Mutex
	placed   []string
	verified []string
	rejected []string
	cleared  []string
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) OnOrderPlaced(_ context.Context, o *order.Order, _ *payment.Payment) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.placed = append(h.placed, o.ID.String())
	return nil
}

func (h *hookRecorder) OnPaymentVerified(_ context.Context, o *order.Order, _ *payment.Payment) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.verified = append(h.verified, o.ID.String())
	return nil
}

func (h *hookRecorder) OnPaymentRejected(_ context.Context, orderID, _ string, _ error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected = append(h.rejected, orderID)
	return nil
}

func (h *hookRecorder) OnCartCleared(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = append(h.cleared, sessionID)
	return nil
}

type fixture struct {
	sf      *storefront.Storefront
	store   *memory.Store
	gateway *fakeGateway
	hooks   *hookRecorder
	card    *product.Product
	hidden  *product.Product
}

func setup(t *testing.T, extra ...storefront.Option) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: memory.New(), gateway: &fakeGateway{}, hooks: &hookRecorder{}}
	opts := []storefront.Option{
		storefront.WithGateway(f.gateway),
		storefront.WithSecret(payment.StaticSecret(testSecret)),
		storefront.WithExtension(f.hooks),
	}
	sf, err := storefront.New(f.store, append(opts, extra...)...)
	if err != nil {
		t.Fatal(err)
	}
	if err := sf.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.sf = sf

	f.card = &product.Product{Name: "NFC Card", Slug: "nfc-card", Price: types.INR(49900), Active: true}
	f.hidden = &product.Product{Name: "Retired Tag", Slug: "retired-tag", Price: types.INR(9900)}
	for _, p := range []*product.Product{f.card, f.hidden} {
		if err := sf.CreateProduct(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := sf.CreateCoupon(ctx, &coupon.Coupon{
		Code: "save20", Name: "20% off", Type: coupon.TypePercentage, Percentage: 20, Active: true,
	}); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) stop(t *testing.T) {
	t.Helper()
	if err := f.sf.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) checkout(t *testing.T, session string) *storefront.Checkout {
	t.Helper()
	ctx := context.Background()
	if _, err := f.sf.AddProduct(ctx, session, f.card.ID, 2); err != nil {
		t.Fatal(err)
	}
	c, err := f.sf.Cart(ctx, session)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ApplyCoupon(ctx, "save20"); err != nil {
		t.Fatal(err)
	}
	co, err := f.sf.PlaceOrder(ctx, session, storefront.CheckoutInput{Email: "buyer@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	return co
}

func TestCheckoutAndVerify(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	co := f.checkout(t, "sess-a")

	if co.KeyID != "rzp_test_key" {
		t.Errorf("KeyID = %q", co.KeyID)
	}
	if !co.Order.Total.Equal(types.INR(79840)) {
		t.Errorf("order total = %v, want ₹798.40", co.Order.Total)
	}
	if co.Order.CouponCode != "SAVE20" {
		t.Errorf("coupon code = %q", co.Order.CouponCode)
	}
	req := f.gateway.requests[0]
	if req.Amount != 79840 || req.Currency != "INR" {
		t.Errorf("gateway request = %+v", req)
	}
	if req.Notes["order_id"] != co.Order.ID.String() || req.Receipt != co.Order.Receipt {
		t.Errorf("gateway notes = %+v receipt = %q", req.Notes, req.Receipt)
	}

	c, _ := f.sf.Cart(ctx, "sess-a")
	if c.Snapshot().CheckingOut {
		t.Error("checkout flag should clear once PlaceOrder returns")
	}

	sig := payment.Signature(co.GatewayOrder.ID, "pay_123", testSecret)
	res, err := f.sf.VerifyPayment(ctx, storefront.VerifyInput{
		OrderID:          co.Order.ID.String(),
		GatewayOrderID:   co.GatewayOrder.ID,
		GatewayPaymentID: "pay_123",
		Signature:        sig,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.PaymentID != "pay_123" {
		t.Errorf("result = %+v", res)
	}

	o, _ := f.store.GetOrder(ctx, co.Order.ID)
	if o.Status != order.StatusConfirmed || o.PaymentRef != "pay_123" {
		t.Errorf("order = %s ref %q", o.Status, o.PaymentRef)
	}
	p, _ := f.store.GetPaymentByOrder(ctx, co.Order.ID)
	if p.Status != payment.StatusCompleted || p.TransactionRef != "pay_123" {
		t.Errorf("payment = %s ref %q", p.Status, p.TransactionRef)
	}
	cp, _ := f.store.GetCouponByCode(ctx, "SAVE20")
	if cp.CurrentUses != 1 {
		t.Errorf("coupon uses = %d, want 1", cp.CurrentUses)
	}
	if c.ItemCount() != 0 || c.Snapshot().AppliedCoupon != nil {
		t.Error("cart should be cleared after verification")
	}

	// A repeated callback succeeds without counting the coupon twice.
	if _, err := f.sf.VerifyPayment(ctx, storefront.VerifyInput{
		OrderID:          co.Order.ID.String(),
		GatewayOrderID:   co.GatewayOrder.ID,
		GatewayPaymentID: "pay_123",
		Signature:        sig,
	}); err != nil {
		t.Fatal(err)
	}
	cp, _ = f.store.GetCouponByCode(ctx, "SAVE20")
	if cp.CurrentUses != 1 {
		t.Errorf("coupon uses after repeat = %d, want 1", cp.CurrentUses)
	}

	f.stop(t)
	if len(f.hooks.placed) != 1 || len(f.hooks.verified) != 1 {
		t.Errorf("hooks placed=%v verified=%v", f.hooks.placed, f.hooks.verified)
	}
	if len(f.hooks.cleared) == 0 || f.hooks.cleared[0] != "sess-a" {
		t.Errorf("cleared hooks = %v", f.hooks.cleared)
	}
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	co := f.checkout(t, "sess-b")

	tests := []struct {
		name string
		in   storefront.VerifyInput
	}{
		{"tampered signature", storefront.VerifyInput{
			OrderID:          co.Order.ID.String(),
			GatewayOrderID:   co.GatewayOrder.ID,
			GatewayPaymentID: "pay_1",
			Signature:        payment.Signature(co.GatewayOrder.ID, "pay_1", "wrong"),
		}},
		{"swapped payment id", storefront.VerifyInput{
			OrderID:          co.Order.ID.String(),
			GatewayOrderID:   co.GatewayOrder.ID,
			GatewayPaymentID: "pay_2",
			Signature:        payment.Signature(co.GatewayOrder.ID, "pay_1", testSecret),
		}},
		{"signature for another gateway order", storefront.VerifyInput{
			OrderID:          co.Order.ID.String(),
			GatewayOrderID:   "order_other",
			GatewayPaymentID: "pay_1",
			Signature:        payment.Signature("order_other", "pay_1", testSecret),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.sf.VerifyPayment(ctx, tt.in)
			if !errors.Is(err, storefront.ErrSignatureMismatch) {
				t.Fatalf("err = %v, want ErrSignatureMismatch", err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
		})
	}

	o, _ := f.store.GetOrder(ctx, co.Order.ID)
	if o.Status != order.StatusPending {
		t.Errorf("order status = %s, want pending", o.Status)
	}
	cp, _ := f.store.GetCouponByCode(ctx, "SAVE20")
	if cp.CurrentUses != 0 {
		t.Errorf("coupon uses = %d, want 0", cp.CurrentUses)
	}
	c, _ := f.sf.Cart(ctx, "sess-b")
	if c.ItemCount() != 2 {
		t.Errorf("cart item count = %d, want 2", c.ItemCount())
	}

	f.stop(t)
	if len(f.hooks.rejected) != len(tests) {
		t.Errorf("rejected hooks = %d, want %d", len(f.hooks.rejected), len(tests))
	}
}

func TestVerifySucceedsWhenOrderUnknown(t *testing.T) {
	f := setup(t)
	defer f.stop(t)

	res, err := f.sf.VerifyPayment(context.Background(), storefront.VerifyInput{
		OrderID:          id.NewOrderID().String(),
		GatewayOrderID:   "order_9A33XWu170gUtm",
		GatewayPaymentID: "pay_29QQoUBi66xm2f",
		Signature:        "a982c20f48234e966ccc8d903bff75730b34341007236ad8c8a9d7c0ae5848c5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Error("a valid signature is a successful payment even if recording it fails")
	}
}

func TestVerifyMissingSecret(t *testing.T) {
	f := setup(t, storefront.WithSecret(payment.StaticSecret("")))
	defer f.stop(t)

	_, err := f.sf.VerifyPayment(context.Background(), storefront.VerifyInput{
		GatewayOrderID: "o", GatewayPaymentID: "p", Signature: "s",
	})
	if !errors.Is(err, storefront.ErrMissingSecret) {
		t.Errorf("err = %v, want ErrMissingSecret", err)
	}
}

func TestPlaceOrderErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty cart", func(t *testing.T) {
		f := setup(t)
		defer f.stop(t)
		if _, err := f.sf.PlaceOrder(ctx, "sess-empty", storefront.CheckoutInput{}); !errors.Is(err, storefront.ErrEmptyCart) {
			t.Errorf("err = %v, want ErrEmptyCart", err)
		}
		if len(f.gateway.requests) != 0 {
			t.Error("gateway called for an empty cart")
		}
	})

	t.Run("gateway failure", func(t *testing.T) {
		f := setup(t)
		defer f.stop(t)
		f.gateway.err = &payment.GatewayError{StatusCode: 503, Code: "SERVER_ERROR"}

		if _, err := f.sf.AddProduct(ctx, "sess-gw", f.card.ID, 1); err != nil {
			t.Fatal(err)
		}
		_, err := f.sf.PlaceOrder(ctx, "sess-gw", storefront.CheckoutInput{})
		if !errors.Is(err, storefront.ErrGatewayFailed) {
			t.Fatalf("err = %v, want ErrGatewayFailed", err)
		}
		if !storefront.IsRetryable(err) {
			t.Error("a 503 from the gateway should be retryable")
		}
		if storefront.IsUserFacing(err) {
			t.Error("gateway errors are not user facing")
		}

		orders, _ := f.store.ListOrders(ctx, order.ListOpts{SessionID: "sess-gw"})
		if len(orders) != 1 || orders[0].Status != order.StatusCancelled {
			t.Fatalf("orders = %+v", orders)
		}
		p, _ := f.store.GetPaymentByOrder(ctx, orders[0].ID)
		if p.Status != payment.StatusFailed || p.FailureReason == "" {
			t.Errorf("payment = %+v", p)
		}

		c, _ := f.sf.Cart(ctx, "sess-gw")
		if c.Snapshot().CheckingOut || c.ItemCount() != 1 {
			t.Error("cart should be intact and out of checkout after a gateway failure")
		}
	})

	t.Run("no gateway", func(t *testing.T) {
		sf, err := storefront.New(memory.New())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := sf.PlaceOrder(ctx, "s", storefront.CheckoutInput{}); !errors.Is(err, storefront.ErrGatewayFailed) {
			t.Errorf("err = %v, want ErrGatewayFailed", err)
		}
	})
}

func TestAddProduct(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	defer f.stop(t)

	tests := []struct {
		name    string
		product id.ProductID
		wantErr error
	}{
		{"active", f.card.ID, nil},
		{"inactive", f.hidden.ID, storefront.ErrProductInactive},
		{"unknown", id.NewProductID(), storefront.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := f.sf.AddProduct(ctx, "sess-add", tt.product, 1)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && !out.Cart.Subtotal.Equal(types.INR(49900)) {
				t.Errorf("subtotal = %v", out.Cart.Subtotal)
			}
		})
	}
}

func TestCartSurvivesEngineRestart(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	first, err := storefront.New(s)
	if err != nil {
		t.Fatal(err)
	}
	card := &product.Product{Name: "Card", Slug: "card", Price: types.INR(1000), Active: true}
	if err := first.CreateProduct(ctx, card); err != nil {
		t.Fatal(err)
	}
	if _, err := first.AddProduct(ctx, "sess-r", card.ID, 3); err != nil {
		t.Fatal(err)
	}

	second, err := storefront.New(s)
	if err != nil {
		t.Fatal(err)
	}
	c, err := second.Cart(ctx, "sess-r")
	if err != nil {
		t.Fatal(err)
	}
	if c.ItemCount() != 3 || !c.Total().Equal(types.INR(3000)) {
		t.Errorf("rehydrated cart = %d items, total %v", c.ItemCount(), c.Total())
	}
}

func TestCreateCouponValidation(t *testing.T) {
	f := setup(t)
	defer f.stop(t)

	tests := []struct {
		name   string
		coupon coupon.Coupon
		field  string
	}{
		{"blank code", coupon.Coupon{Code: "  ", Type: coupon.TypePercentage, Percentage: 10}, "code"},
		{"percentage over 100", coupon.Coupon{Code: "BIG", Type: coupon.TypePercentage, Percentage: 120}, "percentage"},
		{"fixed without amount", coupon.Coupon{Code: "FLAT", Type: coupon.TypeFixed}, "amount"},
		{"unknown type", coupon.Coupon{Code: "X", Type: "bogo"}, "type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.coupon
			err := f.sf.CreateCoupon(context.Background(), &c)
			var ve storefront.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("err = %v, want validation error on %s", err, tt.field)
			}
			if !storefront.IsUserFacing(err) {
				t.Error("validation errors are user facing")
			}
		})
	}
}

func TestVerifyKeepsLinesAddedAfterCheckout(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	defer f.stop(t)

	tag := &product.Product{Name: "QR Stand", Slug: "qr-stand", Price: types.INR(19900), Active: true}
	if err := f.sf.CreateProduct(ctx, tag); err != nil {
		t.Fatal(err)
	}

	co := f.checkout(t, "sess-late")
	if _, err := f.sf.AddProduct(ctx, "sess-late", tag.ID, 1); err != nil {
		t.Fatal(err)
	}

	if _, err := f.sf.VerifyPayment(ctx, storefront.VerifyInput{
		OrderID:          co.Order.ID.String(),
		GatewayOrderID:   co.GatewayOrder.ID,
		GatewayPaymentID: "pay_late",
		Signature:        payment.Signature(co.GatewayOrder.ID, "pay_late", testSecret),
	}); err != nil {
		t.Fatal(err)
	}

	c, err := f.sf.Cart(ctx, "sess-late")
	if err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if len(snap.Items) != 1 || snap.Items[0].ProductID != tag.ID || snap.Items[0].Quantity != 1 {
		t.Errorf("cart items = %+v, want only the stand added after checkout", snap.Items)
	}
	if snap.AppliedCoupon != nil {
		t.Error("coupon used by the paid order should be detached")
	}
}
