package valueobject

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

// AmountScale is the number of fractional digits persisted for monetary amounts
const AmountScale = 4

// MaxAmount is the largest value a DECIMAL(18,4) amount column holds
var MaxAmount = decimal.RequireFromString("99999999999999.9999")

// Currency represents an ISO 4217 currency code
type Currency string

// ParseCurrency normalizes and validates an ISO 4217 code
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("currency cannot be empty")
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("unknown currency %q", code)
	}
	return Currency(unit.String()), nil
}

// String returns the currency code
func (c Currency) String() string {
	return string(c)
}

// CheckPositiveAmount verifies that d is strictly positive and fits the persisted precision
func CheckPositiveAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if d.GreaterThan(MaxAmount) {
		return fmt.Errorf("amount cannot exceed %s", MaxAmount.String())
	}
	if d.Exponent() < -AmountScale && !d.Equal(d.Truncate(AmountScale)) {
		return fmt.Errorf("amount supports at most %d decimal places", AmountScale)
	}
	return nil
}
