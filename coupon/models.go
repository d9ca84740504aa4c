package coupon

import (
	"time"

	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/types"
)

type Coupon struct {
	types.Entity
	ID             id.CouponID       `json:"id"`
	Code           string            `json:"code"`
	Name           string            `json:"name"`
	Type           Type              `json:"type"`
	Percentage     int               `json:"percentage,omitempty"`
	Amount         types.Money       `json:"amount,omitempty"`
	MinOrderAmount *types.Money      `json:"min_order_amount,omitempty"`
	MaxUses        *int              `json:"max_uses,omitempty"`
	CurrentUses    int               `json:"current_uses"`
	Active         bool              `json:"active"`
	ValidUntil     *time.Time        `json:"valid_until,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type Type string

const (
	TypePercentage Type = "percentage"
	TypeFixed      Type = "fixed"
)

// Applied is the coupon as bound to a cart. It carries only what pricing
// needs, so a cart keeps pricing the same way even if the record changes.
type Applied struct {
	Code           string       `json:"code"`
	Type           Type         `json:"type"`
	Percentage     int          `json:"percentage,omitempty"`
	Amount         types.Money  `json:"amount,omitempty"`
	MinOrderAmount *types.Money `json:"min_order_amount,omitempty"`
}
