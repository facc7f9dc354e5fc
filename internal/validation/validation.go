// Package validation holds the pure checks applied to payment input before it
// reaches the gateway or the database.
package validation

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// sensitiveKeys are removed by SanitizePaymentData. Keys are compared after
// lowercasing and dropping '_' and '-'.
var sensitiveKeys = map[string]struct{}{
	"cardnumber":     {},
	"number":         {},
	"pan":            {},
	"cvv":            {},
	"cvc":            {},
	"cvv2":           {},
	"securitycode":   {},
	"cardholdername": {},
	"cardholder":     {},
	"nameoncard":     {},
}

// ValidatePaymentAmount reports whether amount is positive and has at most two
// decimal places.
func ValidatePaymentAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Round(2).Equal(amount)
}

// ValidateZipCode reports whether zip is exactly five ASCII digits.
func ValidateZipCode(zip string) bool {
	if len(zip) != 5 {
		return false
	}
	for i := 0; i < len(zip); i++ {
		if zip[i] < '0' || zip[i] > '9' {
			return false
		}
	}
	return true
}

// SanitizePaymentData returns a shallow copy of data without card number,
// CVV and cardholder name fields, for logging.
func SanitizePaymentData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		if isSensitiveKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(key)
	normalized = strings.NewReplacer("_", "", "-", "").Replace(normalized)
	_, ok := sensitiveKeys[normalized]
	return ok
}

// AmountToCents converts a validated amount to minor units.
func AmountToCents(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).IntPart()
}

// CentsToAmount converts minor units back to a two-place decimal.
func CentsToAmount(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
