package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrSignatureMismatch = errors.New("payment: signature mismatch")
	ErrMissingSecret     = errors.New("payment: signing secret not configured")
)

// Signature computes the gateway checkout signature: hex HMAC-SHA256 of
// gatewayOrderID + "|" + gatewayPaymentID keyed by secret.
func Signature(gatewayOrderID, gatewayPaymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature and compares it byte for byte
// with the one the client supplied.
func VerifySignature(gatewayOrderID, gatewayPaymentID, signature, secret string) error {
	if secret == "" {
		return ErrMissingSecret
	}
	expected := Signature(gatewayOrderID, gatewayPaymentID, secret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
