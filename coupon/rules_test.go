package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/xraph/storefront/types"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"save20":     "SAVE20",
		"  Tap10 \t": "TAP10",
		"WELCOME":    "WELCOME",
		"   ":        "",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	two := 2

	tests := []struct {
		name   string
		coupon Coupon
		want   error
	}{
		{"active", Coupon{Active: true}, nil},
		{"inactive", Coupon{Active: false}, ErrInactive},
		{"expired", Coupon{Active: true, ValidUntil: &past}, ErrExpired},
		{"not yet expired", Coupon{Active: true, ValidUntil: &future}, nil},
		{"exhausted", Coupon{Active: true, MaxUses: &two, CurrentUses: 2}, ErrExhausted},
		{"uses left", Coupon{Active: true, MaxUses: &two, CurrentUses: 1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.coupon.Check(now); !errors.Is(err, tt.want) {
				t.Errorf("Check() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDiscount(t *testing.T) {
	subtotal := types.INR(100000)

	tests := []struct {
		name         string
		applied      *Applied
		wantDiscount int64
	}{
		{"percentage 20", &Applied{Type: TypePercentage, Percentage: 20}, 20000},
		{"fixed 150", &Applied{Type: TypeFixed, Amount: types.INR(15000)}, 15000},
		{"fixed above subtotal", &Applied{Type: TypeFixed, Amount: types.INR(150000)}, 150000},
		{"nil", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.applied.Discount(subtotal)
			if got.Amount != tt.wantDiscount || got.Currency != "inr" {
				t.Errorf("Discount() = %+v, want %d inr", got, tt.wantDiscount)
			}
		})
	}
}

func TestMeetsMinimum(t *testing.T) {
	minimum := types.INR(50000)
	c := &Coupon{MinOrderAmount: &minimum}

	if c.MeetsMinimum(types.INR(40000)) {
		t.Error("400 should not meet a 500 minimum")
	}
	if !c.MeetsMinimum(types.INR(60000)) {
		t.Error("600 should meet a 500 minimum")
	}
	if !c.MeetsMinimum(types.INR(50000)) {
		t.Error("exactly the minimum should pass")
	}
	if !(&Coupon{}).MeetsMinimum(types.INR(0)) {
		t.Error("coupon without minimum should always pass")
	}
}

func TestBindCopiesMinimum(t *testing.T) {
	minimum := types.INR(50000)
	c := &Coupon{Code: "save20", Type: TypePercentage, Percentage: 20, MinOrderAmount: &minimum}

	a := c.Bind()
	minimum.Amount = 1

	if a.Code != "SAVE20" {
		t.Errorf("Code = %q", a.Code)
	}
	if a.MinOrderAmount.Amount != 50000 {
		t.Errorf("MinOrderAmount aliased the record: %d", a.MinOrderAmount.Amount)
	}
	if a.Describe() != "20% off" {
		t.Errorf("Describe() = %q", a.Describe())
	}
}
