package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/storefront/types"
)

var (
	ErrNotFound  = errors.New("coupon: not found")
	ErrInactive  = errors.New("coupon: inactive")
	ErrExpired   = errors.New("coupon: expired")
	ErrExhausted = errors.New("coupon: usage limit reached")
)

// Normalize canonicalizes a user-entered code. Codes match
// case-insensitively, so the canonical form is upper-case.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check reports why a coupon cannot be redeemed at now, or nil.
func (c *Coupon) Check(now time.Time) error {
	switch {
	case !c.Active:
		return ErrInactive
	case c.ValidUntil != nil && now.After(*c.ValidUntil):
		return ErrExpired
	case c.MaxUses != nil && c.CurrentUses >= *c.MaxUses:
		return ErrExhausted
	}
	return nil
}

// MeetsMinimum reports whether subtotal satisfies the coupon's minimum
// order amount. Coupons without a minimum always pass.
func (c *Coupon) MeetsMinimum(subtotal types.Money) bool {
	return meetsMinimum(c.MinOrderAmount, subtotal)
}

// Bind produces the cart-side view of the coupon.
func (c *Coupon) Bind() *Applied {
	a := &Applied{
		Code:       Normalize(c.Code),
		Type:       c.Type,
		Percentage: c.Percentage,
		Amount:     c.Amount,
	}
	if c.MinOrderAmount != nil {
		minimum := *c.MinOrderAmount
		a.MinOrderAmount = &minimum
	}
	return a
}

// Discount returns the amount taken off subtotal. Percentage coupons round
// to the nearest minor unit. Fixed coupons are flat and are not capped at
// the subtotal.
func (a *Applied) Discount(subtotal types.Money) types.Money {
	if a == nil {
		return types.Zero(subtotal.Currency)
	}
	switch a.Type {
	case TypePercentage:
		return subtotal.Percent(int64(a.Percentage))
	case TypeFixed:
		return types.Money{Amount: a.Amount.Amount, Currency: subtotal.Currency}
	default:
		return types.Zero(subtotal.Currency)
	}
}

// MeetsMinimum reports whether subtotal still satisfies the minimum the
// coupon was applied under.
func (a *Applied) MeetsMinimum(subtotal types.Money) bool {
	if a == nil {
		return true
	}
	return meetsMinimum(a.MinOrderAmount, subtotal)
}

// Describe renders the discount for display, e.g. "20% off" or "₹150.00 off".
func (a *Applied) Describe() string {
	if a.Type == TypePercentage {
		return fmt.Sprintf("%d%% off", a.Percentage)
	}
	return a.Amount.String() + " off"
}

func meetsMinimum(minimum *types.Money, subtotal types.Money) bool {
	if minimum == nil || minimum.Amount <= 0 {
		return true
	}
	return subtotal.Amount >= minimum.Amount
}
