package storefront

import (
	"errors"
	"fmt"

	"github.com/xraph/storefront/cart"
	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/payment"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("storefront: not found")
	ErrAlreadyExists = errors.New("storefront: already exists")
	ErrInvalidInput  = errors.New("storefront: invalid input")

	// Catalog errors
	ErrProductNotFound = errors.New("storefront: product not found")
	ErrProductInactive = errors.New("storefront: product is not available")

	// Coupon errors. ErrCouponNotFound is the coupon package's sentinel so a
	// store lookup miss satisfies errors.Is(err, coupon.ErrNotFound) in the
	// cart's coupon validator.
	ErrCouponNotFound = coupon.ErrNotFound

	// Order and payment errors
	ErrOrderNotFound     = errors.New("storefront: order not found")
	ErrOrderNotPending   = errors.New("storefront: order is not pending")
	ErrPaymentNotFound   = errors.New("storefront: payment not found")
	ErrGatewayFailed     = errors.New("storefront: payment gateway request failed")
	ErrSignatureMismatch = payment.ErrSignatureMismatch
	ErrMissingSecret     = payment.ErrMissingSecret

	// Cart errors re-exported for callers that only import the root package
	ErrEmptyCart          = cart.ErrEmptyCart
	ErrCheckoutInProgress = cart.ErrCheckoutInProgress

	// Store errors
	ErrStoreNotReady     = errors.New("storefront: store not ready")
	ErrStoreClosed       = errors.New("storefront: store is closed")
	ErrTransactionFailed = errors.New("storefront: transaction failed")
	ErrMigrationFailed   = errors.New("storefront: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("storefront: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCouponNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable()
	}
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed)
}

// IsUserFacing reports whether err is safe to show to a shopper as is.
// Store, gateway and transport failures are not; callers show a generic
// message for those.
func IsUserFacing(err error) bool {
	var ve ValidationError
	var minErr *cart.MinimumOrderError
	switch {
	case errors.As(err, &ve), errors.As(err, &minErr):
		return true
	case errors.Is(err, ErrGatewayFailed), errors.Is(err, ErrTransactionFailed),
		errors.Is(err, ErrStoreNotReady), errors.Is(err, ErrStoreClosed):
		return false
	}
	return IsNotFound(err) ||
		errors.Is(err, ErrProductInactive) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, cart.ErrCouponCodeRequired) ||
		errors.Is(err, cart.ErrCouponInvalid) ||
		errors.Is(err, cart.ErrCouponApplyInProgress) ||
		errors.Is(err, cart.ErrInvalidItem) ||
		errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrCheckoutInProgress)
}

// IsSignatureMismatch reports whether err is a failed payment signature check.
func IsSignatureMismatch(err error) bool {
	return errors.Is(err, ErrSignatureMismatch)
}
