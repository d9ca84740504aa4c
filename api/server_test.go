package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/payment"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/store/memory"
	"github.com/xraph/storefront/types"
)

func init() { gin.SetMode(gin.TestMode) }

const secret = "test_secret"

type stubGateway struct{ err error }

func (g *stubGateway) Name() string  { return "stub" }
func (g *stubGateway) KeyID() string { return "rzp_test_key" }

func (g *stubGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.GatewayOrder, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &payment.GatewayOrder{ID: "order_" + req.Receipt, Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}, nil
}

type harness struct {
	t       *testing.T
	handler http.Handler
	gateway *stubGateway
	card    *product.Product
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	gw := &stubGateway{}
	sf, err := storefront.New(memory.New(),
		storefront.WithGateway(gw),
		storefront.WithSecret(payment.StaticSecret(secret)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := sf.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = sf.Stop(ctx) })

	card := &product.Product{Name: "NFC Card", Slug: "nfc-card", Category: "cards", Price: types.INR(49900), Active: true}
	if err := sf.CreateProduct(ctx, card); err != nil {
		t.Fatal(err)
	}
	minimum := types.INR(150000)
	for _, c := range []*coupon.Coupon{
		{Code: "SAVE20", Type: coupon.TypePercentage, Percentage: 20, Active: true},
		{Code: "BIGSPEND", Type: coupon.TypeFixed, Amount: types.INR(10000), MinOrderAmount: &minimum, Active: true},
	} {
		if err := sf.CreateCoupon(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	reg := prometheus.NewRegistry()
	srv := New(sf,
		WithRequestMetrics(reg),
		WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	return &harness{t: t, handler: srv.Handler(), gateway: gw, card: card}
}

func (h *harness) do(method, path, session string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

type cartResponse struct {
	Error         string              `json:"error"`
	Cart          cart.Snapshot       `json:"cart"`
	Notifications []cart.Notification `json:"notifications"`
}

func decodeInto[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestSessionResolution(t *testing.T) {
	h := newHarness(t)

	t.Run("minted when absent", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/cart", "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		sid := rec.Header().Get(SessionHeader)
		if !strings.HasPrefix(sid, "sess_") {
			t.Errorf("session header = %q", sid)
		}
		if !strings.Contains(rec.Header().Get("Set-Cookie"), SessionCookie+"="+sid) {
			t.Errorf("cookie = %q", rec.Header().Get("Set-Cookie"))
		}
	})

	t.Run("header wins", func(t *testing.T) {
		rec := h.do(http.MethodGet, "/api/cart", "sess-fixed", nil)
		if rec.Header().Get(SessionHeader) != "sess-fixed" || rec.Header().Get("Set-Cookie") != "" {
			t.Errorf("header = %q cookie = %q", rec.Header().Get(SessionHeader), rec.Header().Get("Set-Cookie"))
		}
	})

	t.Run("cookie used", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-cookie"})
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		if rec.Header().Get(SessionHeader) != "sess-cookie" {
			t.Errorf("session = %q", rec.Header().Get(SessionHeader))
		}
	})
}

func TestCartRoutes(t *testing.T) {
	h := newHarness(t)
	const sess = "sess-cart"

	rec := h.do(http.MethodPost, "/api/cart/items", sess, gin.H{"product_id": h.card.ID.String(), "quantity": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d body = %s", rec.Code, rec.Body)
	}
	got := decodeInto[cartResponse](t, rec)
	if got.Cart.ItemCount != 2 || !got.Cart.PanelOpen {
		t.Errorf("cart = %+v", got.Cart)
	}
	if len(got.Notifications) != 1 || got.Notifications[0].Message != "NFC Card added to cart" {
		t.Errorf("notifications = %+v", got.Notifications)
	}

	rec = h.do(http.MethodPost, "/api/cart/coupon", sess, gin.H{"code": "save20"})
	got = decodeInto[cartResponse](t, rec)
	if rec.Code != http.StatusOK || !got.Cart.Total.Equal(types.INR(79840)) {
		t.Errorf("apply status = %d total = %v", rec.Code, got.Cart.Total)
	}

	rec = h.do(http.MethodPatch, "/api/cart/items/"+h.card.ID.String(), sess, gin.H{"quantity": 3})
	got = decodeInto[cartResponse](t, rec)
	if got.Cart.ItemCount != 3 || !got.Cart.Subtotal.Equal(types.INR(149700)) {
		t.Errorf("update cart = %+v", got.Cart)
	}

	rec = h.do(http.MethodPut, "/api/cart/panel", sess, gin.H{"open": false})
	if got = decodeInto[cartResponse](t, rec); got.Cart.PanelOpen {
		t.Error("panel should be closed")
	}

	rec = h.do(http.MethodDelete, "/api/cart/coupon", sess, nil)
	if got = decodeInto[cartResponse](t, rec); got.Cart.AppliedCoupon != nil {
		t.Error("coupon should be removed")
	}

	rec = h.do(http.MethodDelete, "/api/cart/items/"+h.card.ID.String(), sess, nil)
	if got = decodeInto[cartResponse](t, rec); got.Cart.ItemCount != 0 {
		t.Errorf("item count after remove = %d", got.Cart.ItemCount)
	}
}

func TestCartRouteErrors(t *testing.T) {
	h := newHarness(t)
	const sess = "sess-err"
	h.do(http.MethodPost, "/api/cart/items", sess, gin.H{"product_id": h.card.ID.String()})

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{"missing product", http.MethodPost, "/api/cart/items", gin.H{}, http.StatusBadRequest, ""},
		{"malformed product id", http.MethodPost, "/api/cart/items", gin.H{"product_id": "nope"}, http.StatusBadRequest, "Invalid product ID"},
		{"unknown product", http.MethodPost, "/api/cart/items", gin.H{"product_id": "prod_01h455vb4pex5vsknk084sn02q"}, http.StatusNotFound, "Product not found"},
		{"quantity over limit", http.MethodPatch, "/api/cart/items/" + h.card.ID.String(), gin.H{"quantity": 100}, http.StatusBadRequest, ""},
		{"missing quantity", http.MethodPatch, "/api/cart/items/" + h.card.ID.String(), gin.H{}, http.StatusBadRequest, ""},
		{"blank coupon", http.MethodPost, "/api/cart/coupon", gin.H{"code": "  "}, http.StatusUnprocessableEntity, "Please enter a coupon code"},
		{"unknown coupon", http.MethodPost, "/api/cart/coupon", gin.H{"code": "NOPE"}, http.StatusUnprocessableEntity, "Invalid coupon code"},
		{"below minimum", http.MethodPost, "/api/cart/coupon", gin.H{"code": "bigspend"}, http.StatusUnprocessableEntity, "Minimum order amount of ₹1,500.00 required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(tt.method, tt.path, sess, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
			if tt.message == "" {
				return
			}
			got := decodeInto[cartResponse](t, rec)
			if got.Error != tt.message {
				t.Errorf("error = %q, want %q", got.Error, tt.message)
			}
		})
	}
}

func TestUpdateQuantityBelowOneRemovesLine(t *testing.T) {
	for _, qty := range []int{0, -1} {
		h := newHarness(t)
		sess := "sess-qty-" + strconv.Itoa(qty)
		h.do(http.MethodPost, "/api/cart/items", sess, gin.H{"product_id": h.card.ID.String(), "quantity": 2})

		rec := h.do(http.MethodPatch, "/api/cart/items/"+h.card.ID.String(), sess, gin.H{"quantity": qty})
		if rec.Code != http.StatusOK {
			t.Fatalf("quantity %d: status = %d body = %s", qty, rec.Code, rec.Body)
		}
		got := decodeInto[cartResponse](t, rec)
		if got.Cart.ItemCount != 0 || len(got.Cart.Items) != 0 {
			t.Errorf("quantity %d: cart = %+v", qty, got.Cart)
		}
		if len(got.Notifications) == 0 || got.Notifications[0].Event != cart.EventItemRemoved {
			t.Errorf("quantity %d: notifications = %+v", qty, got.Notifications)
		}
	}
}

func TestCheckoutFlow(t *testing.T) {
	h := newHarness(t)
	const sess = "sess-checkout"

	rec := h.do(http.MethodPost, "/api/checkout/orders", sess, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty cart status = %d", rec.Code)
	}

	h.do(http.MethodPost, "/api/cart/items", sess, gin.H{"product_id": h.card.ID.String(), "quantity": 2})
	rec = h.do(http.MethodPost, "/api/checkout/orders", sess, gin.H{"email": "buyer@example.com"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order status = %d body = %s", rec.Code, rec.Body)
	}
	order := decodeInto[struct {
		OrderID        string `json:"order_id"`
		GatewayOrderID string `json:"gateway_order_id"`
		Amount         int64  `json:"amount"`
		Currency       string `json:"currency"`
		KeyID          string `json:"key_id"`
	}](t, rec)
	if order.Amount != 99800 || order.Currency != "INR" || order.KeyID != "rzp_test_key" {
		t.Errorf("order = %+v", order)
	}

	verify := func(sig string) *httptest.ResponseRecorder {
		return h.do(http.MethodPost, "/api/checkout/verify", sess, gin.H{
			"order_id":            order.OrderID,
			"razorpay_order_id":   order.GatewayOrderID,
			"razorpay_payment_id": "pay_42",
			"razorpay_signature":  sig,
		})
	}

	rec = verify(payment.Signature(order.GatewayOrderID, "pay_42", "wrong_secret"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("mismatch status = %d", rec.Code)
	}
	if res := decodeInto[storefront.VerifyResult](t, rec); res.Success {
		t.Error("mismatch reported success")
	}

	rec = verify(payment.Signature(order.GatewayOrderID, "pay_42", secret))
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d body = %s", rec.Code, rec.Body)
	}
	res := decodeInto[storefront.VerifyResult](t, rec)
	if !res.Success || res.PaymentID != "pay_42" {
		t.Errorf("result = %+v", res)
	}

	rec = h.do(http.MethodGet, "/api/cart", sess, nil)
	if got := decodeInto[cartResponse](t, rec); got.Cart.ItemCount != 0 {
		t.Error("cart should be empty after payment")
	}
}

func TestCheckoutGatewayFailure(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = &payment.GatewayError{StatusCode: 500, Code: "SERVER_ERROR", Description: "upstream exploded"}
	const sess = "sess-gw"

	h.do(http.MethodPost, "/api/cart/items", sess, gin.H{"product_id": h.card.ID.String()})
	rec := h.do(http.MethodPost, "/api/checkout/orders", sess, nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "upstream exploded") {
		t.Error("gateway details leaked to client")
	}
	if !strings.Contains(rec.Body.String(), "failed to create order") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestVerifyRequiresFields(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/api/checkout/verify", "s", gin.H{"razorpay_order_id": "order_1"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestProductRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/products?category=cards", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list := decodeInto[struct {
		Data []struct {
			Slug string `json:"slug"`
		} `json:"data"`
	}](t, rec)
	if len(list.Data) != 1 || list.Data[0].Slug != "nfc-card" {
		t.Errorf("products = %+v", list.Data)
	}

	if rec := h.do(http.MethodGet, "/api/products/nfc-card", "", nil); rec.Code != http.StatusOK {
		t.Errorf("get status = %d", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/products/missing", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	if rec := h.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	h.do(http.MethodGet, "/api/products", "", nil)

	rec := h.do(http.MethodGet, "/metrics", "", nil)
	if !strings.Contains(rec.Body.String(), `storefront_http_requests_total{route="/api/products",status="200"} 1`) {
		t.Errorf("metrics missing request counter:\n%s", rec.Body)
	}
}
