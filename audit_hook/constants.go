package audithook

// Action constants for audit events.
const (
	// Coupon actions
	ActionCouponApplied  = "coupon.applied"
	ActionCouponRejected = "coupon.rejected"
	ActionCouponRemoved  = "coupon.removed"

	// Cart actions
	ActionCartCleared = "cart.cleared"

	// Order actions
	ActionOrderPlaced = "order.placed"

	// Payment actions
	ActionPaymentVerified = "payment.verified"
	ActionPaymentRejected = "payment.rejected"
)

// Resource constants for audit events.
const (
	ResourceCart    = "cart"
	ResourceCoupon  = "coupon"
	ResourceOrder   = "order"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryCart     = "cart"
	CategoryPromo    = "promotion"
	CategoryCheckout = "checkout"
	CategoryPayment  = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
