package cart

import (
	"errors"
	"fmt"

	"github.com/xraph/storefront/types"
)

var (
	ErrCouponCodeRequired    = errors.New("cart: please enter a coupon code")
	ErrCouponInvalid         = errors.New("cart: invalid coupon code")
	ErrCouponApplyFailed     = errors.New("cart: failed to apply coupon")
	ErrCouponApplyInProgress = errors.New("cart: a coupon is already being applied")
	ErrCheckoutInProgress    = errors.New("cart: checkout already in progress")
	ErrEmptyCart             = errors.New("cart: cart is empty")
	ErrInvalidItem           = errors.New("cart: invalid item")
)

// MinimumOrderError rejects a coupon whose minimum order amount is above
// the cart subtotal.
type MinimumOrderError struct {
	Code    string
	Minimum types.Money
}

func (e *MinimumOrderError) Error() string {
	return fmt.Sprintf("cart: minimum order amount of %s required for coupon %s", e.Minimum, e.Code)
}

// UserMessage turns a cart error into the text shown to the shopper.
// Unknown errors collapse to the generic coupon failure so transport
// details never reach the UI.
func UserMessage(err error) string {
	var minErr *MinimumOrderError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCouponCodeRequired):
		return "Please enter a coupon code"
	case errors.Is(err, ErrCouponInvalid):
		return "Invalid coupon code"
	case errors.As(err, &minErr):
		return fmt.Sprintf("Minimum order amount of %s required", minErr.Minimum)
	case errors.Is(err, ErrCouponApplyInProgress):
		return "A coupon is already being applied"
	case errors.Is(err, ErrCheckoutInProgress):
		return "Checkout is already in progress"
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty"
	case errors.Is(err, ErrInvalidItem):
		return "That item cannot be added to the cart"
	default:
		return "Failed to apply coupon"
	}
}
