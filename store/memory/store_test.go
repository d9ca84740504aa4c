package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/storefront"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/order"
	"github.com/xraph/storefront/product"
	"github.com/xraph/storefront/store"
	"github.com/xraph/storefront/store/storetest"
	"github.com/xraph/storefront/types"
)

func TestConfirmPayment(t *testing.T) {
	storetest.RunConfirmPayment(t, func(*testing.T) store.Store { return New() })
}

func TestCouponCodeLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	s := New()

	c := &coupon.Coupon{Entity: types.NewEntity(), ID: id.NewCouponID(), Code: " welcome10 ", Active: true}
	if err := s.CreateCoupon(ctx, c); err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if err := s.CreateCoupon(ctx, &coupon.Coupon{ID: id.NewCouponID(), Code: "WELCOME10"}); !errors.Is(err, storefront.ErrAlreadyExists) {
		t.Errorf("duplicate code err = %v, want ErrAlreadyExists", err)
	}

	for _, code := range []string{"welcome10", "WELCOME10", "  Welcome10"} {
		got, err := s.GetCouponByCode(ctx, code)
		if err != nil {
			t.Fatalf("GetCouponByCode(%q): %v", code, err)
		}
		if got.Code != "WELCOME10" {
			t.Errorf("Code = %q, want WELCOME10", got.Code)
		}
	}

	_, err := s.GetCouponByCode(ctx, "NOPE")
	if !errors.Is(err, coupon.ErrNotFound) {
		t.Errorf("missing code err = %v, want coupon.ErrNotFound", err)
	}
}

func TestListProducts(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, p := range []*product.Product{
		{Name: "NFC Card", Slug: "nfc-card", Category: "cards", Price: types.INR(89900), Active: true},
		{Name: "NFC Stand", Slug: "nfc-stand", Category: "stands", Price: types.INR(149900), Active: true},
		{Name: "Metal Card", Slug: "metal-card", Category: "cards", Price: types.INR(299900)},
	} {
		p.ID = id.NewProductID()
		p.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if err := s.CreateProduct(ctx, p); err != nil {
			t.Fatalf("CreateProduct: %v", err)
		}
	}

	tests := []struct {
		name  string
		opts  product.ListOpts
		slugs []string
	}{
		{"all", product.ListOpts{}, []string{"nfc-card", "nfc-stand", "metal-card"}},
		{"category", product.ListOpts{Category: "cards"}, []string{"nfc-card", "metal-card"}},
		{"active", product.ListOpts{ActiveOnly: true}, []string{"nfc-card", "nfc-stand"}},
		{"paged", product.ListOpts{Limit: 1, Offset: 1}, []string{"nfc-stand"}},
		{"past end", product.ListOpts{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListProducts(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListProducts: %v", err)
			}
			if len(got) != len(tt.slugs) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.slugs))
			}
			for i, p := range got {
				if p.Slug != tt.slugs[i] {
					t.Errorf("[%d] slug = %s, want %s", i, p.Slug, tt.slugs[i])
				}
			}
		})
	}
}

func TestCartState(t *testing.T) {
	ctx := context.Background()
	s := New()

	if _, ok, _ := s.GetCartState(ctx, "k"); ok {
		t.Fatal("expected missing key")
	}
	if err := s.PutCartState(ctx, "k", `[]`); err != nil {
		t.Fatalf("PutCartState: %v", err)
	}
	v, ok, err := s.GetCartState(ctx, "k")
	if err != nil || !ok || v != `[]` {
		t.Fatalf("GetCartState = %q %v %v", v, ok, err)
	}
	if err := s.DeleteCartState(ctx, "k"); err != nil {
		t.Fatalf("DeleteCartState: %v", err)
	}
	if _, ok, _ := s.GetCartState(ctx, "k"); ok {
		t.Error("key survived delete")
	}
}

func TestStoredOrderIsIsolatedFromCaller(t *testing.T) {
	ctx := context.Background()
	s := New()
	o, _ := storetest.SeedOrder(t, s, "")

	o.Status = order.StatusCancelled
	got, _ := s.GetOrder(ctx, o.ID)
	if got.Status != order.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}
