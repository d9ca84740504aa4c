package payment

import (
	"context"
	"fmt"
)

// OrderRequest asks the gateway to open an order for a checkout. Amount is
// in the currency's minor unit.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// GatewayOrder is the gateway's reply. Only ID is used; the echoed amount
// and currency are informational and never feed back into pricing.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Gateway creates orders on a hosted payment gateway.
type Gateway interface {
	Name() string
	// KeyID is the public key the client SDK needs to open checkout.
	KeyID() string
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
}

// GatewayError is a non-2xx reply from the gateway.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("payment: gateway returned %d: %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("payment: gateway returned %d", e.StatusCode)
}

// Retryable reports whether the failure was on the gateway's side.
func (e *GatewayError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
