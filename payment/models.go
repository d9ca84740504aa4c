package payment

import (
	"time"

	"github.com/xraph/storefront/id"
	"github.com/xraph/storefront/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Payment struct {
	types.Entity
	ID             id.PaymentID      `json:"id"`
	OrderID        id.OrderID        `json:"order_id"`
	Amount         types.Money       `json:"amount"`
	Status         Status            `json:"status"`
	Provider       string            `json:"provider"`
	GatewayOrderID string            `json:"gateway_order_id,omitempty"`
	TransactionRef string            `json:"transaction_ref,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	PaidAt         *time.Time        `json:"paid_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}
