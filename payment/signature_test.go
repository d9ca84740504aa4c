package payment

import (
	"errors"
	"testing"
)

func TestSignatureVectors(t *testing.T) {
	tests := []struct {
		orderID, paymentID, secret string
		want                       string
	}{
		{"O1", "P1", "S", "ef4d0829667a3e0bb91e3c6b6bafdd17035694be0cff91ab24b74c1fcdf2f48c"},
		{
			"order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f", "test_secret",
			"a982c20f48234e966ccc8d903bff75730b34341007236ad8c8a9d7c0ae5848c5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.orderID, func(t *testing.T) {
			if got := Signature(tt.orderID, tt.paymentID, tt.secret); got != tt.want {
				t.Errorf("Signature() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVerifySignature(t *testing.T) {
	valid := "ef4d0829667a3e0bb91e3c6b6bafdd17035694be0cff91ab24b74c1fcdf2f48c"

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		secret    string
		want      error
	}{
		{"valid", "O1", "P1", valid, "S", nil},
		{"wrong secret", "O1", "P1", valid, "T", ErrSignatureMismatch},
		{"swapped ids", "P1", "O1", valid, "S", ErrSignatureMismatch},
		{"upper-case hex", "O1", "P1", "EF4D0829667A3E0BB91E3C6B6BAFDD17035694BE0CFF91AB24B74C1FCDF2F48C", "S", ErrSignatureMismatch},
		{"truncated", "O1", "P1", valid[:32], "S", ErrSignatureMismatch},
		{"empty signature", "O1", "P1", "", "S", ErrSignatureMismatch},
		{"any non-empty value", "O1", "P1", "present", "S", ErrSignatureMismatch},
		{"no secret", "O1", "P1", valid, "", ErrMissingSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.orderID, tt.paymentID, tt.signature, tt.secret)
			if !errors.Is(err, tt.want) {
				t.Errorf("VerifySignature() = %v, want %v", err, tt.want)
			}
		})
	}
}
