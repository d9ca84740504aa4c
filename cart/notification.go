package cart

import (
	"time"

	"github.com/xraph/storefront/coupon"
	"github.com/xraph/storefront/types"
)

// Event names what changed in a cart.
type Event string

const (
	EventItemAdded       Event = "item_added"
	EventItemUpdated     Event = "item_updated"
	EventItemRemoved     Event = "item_removed"
	EventCartCleared     Event = "cart_cleared"
	EventCouponApplied   Event = "coupon_applied"
	EventCouponRejected  Event = "coupon_rejected"
	EventCouponRemoved   Event = "coupon_removed"
	EventCouponDetached  Event = "coupon_detached"
	EventCheckoutStarted Event = "checkout_started"
)

// Kind is the toast style for a notification.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Notification is a fire-and-forget message produced by a cart mutation.
type Notification struct {
	SessionID  string    `json:"session_id"`
	Event      Event     `json:"event"`
	Kind       Kind      `json:"kind"`
	Message    string    `json:"message"`
	ProductID  string    `json:"product_id,omitempty"`
	CouponCode string    `json:"coupon_code,omitempty"`
	Err        error     `json:"-"`
	At         time.Time `json:"at"`
}

// Snapshot is a point-in-time copy of the cart with its derived values.
type Snapshot struct {
	SessionID      string          `json:"session_id"`
	Items          []Item          `json:"items"`
	ItemCount      int             `json:"item_count"`
	Subtotal       types.Money     `json:"subtotal"`
	Discount       types.Money     `json:"discount"`
	Total          types.Money     `json:"total"`
	AppliedCoupon  *coupon.Applied `json:"applied_coupon"`
	PanelOpen      bool            `json:"panel_open"`
	ApplyingCoupon bool            `json:"applying_coupon"`
	CheckingOut    bool            `json:"checking_out"`
}

// Outcome is what a mutation returns: the state after the mutation and the
// notifications it produced, in order.
type Outcome struct {
	Cart          Snapshot       `json:"cart"`
	Notifications []Notification `json:"notifications"`
}

// Listener observes notifications after the mutation that produced them
// has committed.
type Listener func(Snapshot, Notification)
