// Package types provides the value types shared across the storefront.
package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultCurrency is used when a price or total is created without one.
const DefaultCurrency = "inr"

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only. Conversion from a major-unit decimal
// happens once, at the edge, through FromMajor.
//
// Examples:
//   - INR(49900) = ₹499.00 (49900 paise)
//   - USD(4900) = $49.00 (4900 cents)
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (paise, cents, pence)
	Currency string `json:"currency"` // ISO 4217 lowercase: "inr", "usd"
}

// INR creates a Money value in Indian Rupees (paise).
func INR(paise int64) Money { return Money{Amount: paise, Currency: "inr"} }

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// GBP creates a Money value in British Pounds (pence).
func GBP(pence int64) Money { return Money{Amount: pence, Currency: "gbp"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Money{Amount: 0, Currency: strings.ToLower(currency)}
}

// FromMajor converts a major-unit decimal (rupees, dollars) into Money.
// The value is scaled by the currency's minor-unit factor and rounded to
// the nearest integer, half away from zero.
func FromMajor(major float64, currency string) Money {
	if currency == "" {
		currency = DefaultCurrency
	}
	currency = strings.ToLower(currency)
	factor := math.Pow10(currencyDecimals(currency))
	return Money{Amount: int64(math.Round(major * factor)), Currency: currency}
}

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Percent returns pct percent of m, rounded to the nearest minor unit.
func (m Money) Percent(pct int64) Money {
	return Money{Amount: roundDiv(m.Amount*pct, 100), Currency: m.Currency}
}

// ClampZero returns m, or zero in m's currency if m is negative.
func (m Money) ClampZero() Money {
	if m.Amount < 0 {
		return Money{Amount: 0, Currency: m.Currency}
	}
	return m
}

// MinorUnits returns the amount in the currency's smallest unit, the form
// payment gateways expect.
func (m Money) MinorUnits() int64 { return m.Amount }

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol and
// without digit grouping: "499.00" for INR(49900).
func (m Money) FormatMajor() string {
	major, minor, negative := m.split()
	result := fmt.Sprintf("%d", major)
	if decimals := currencyDecimals(m.Currency); decimals > 0 {
		result = fmt.Sprintf("%d.%0*d", major, decimals, minor)
	}
	if negative {
		return "-" + result
	}
	return result
}

// String returns the storefront display form: currency symbol, grouped
// major units and the minor part.
// Examples: "₹1,499.00", "$49.00", "-₹20.00"
func (m Money) String() string {
	major, minor, negative := m.split()
	out := currencySymbol(m.Currency) + humanize.Comma(major)
	if decimals := currencyDecimals(m.Currency); decimals > 0 {
		out += fmt.Sprintf(".%0*d", decimals, minor)
	}
	if negative {
		return "-" + out
	}
	return out
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler. The display field is ignored.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Amount = raw.Amount
	m.Currency = strings.ToLower(raw.Currency)
	return nil
}

// DiscountPercent returns how far price sits below compareAt, as a whole
// percentage of compareAt. It returns 0 when there is no markdown.
func DiscountPercent(price, compareAt Money) int {
	if compareAt.Amount <= 0 || price.Currency != compareAt.Currency || price.Amount >= compareAt.Amount {
		return 0
	}
	return int(roundDiv((compareAt.Amount-price.Amount)*100, compareAt.Amount))
}

// Helper functions

func (m Money) split() (major, minor int64, negative bool) {
	abs := m.Amount
	if abs < 0 {
		negative = true
		abs = -abs
	}
	divisor := int64(math.Pow10(currencyDecimals(m.Currency)))
	return abs / divisor, abs % divisor, negative
}

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// roundDiv divides n by d rounding half away from zero.
func roundDiv(n, d int64) int64 {
	if (n < 0) != (d < 0) {
		return (n - d/2) / d
	}
	return (n + d/2) / d
}

func currencySymbol(currency string) string {
	symbols := map[string]string{
		"inr": "₹",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

func currencyDecimals(currency string) int {
	zeroDecimal := map[string]bool{
		"jpy": true,
		"krw": true,
		"vnd": true,
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// Sum calculates the sum of multiple Money values. All must have the same currency.
func Sum(currency string, values ...Money) Money {
	result := Zero(currency)
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}
