package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyScale is the number of minor-unit digits used for monetary values.
const CurrencyScale = 2

// Method identifies a payment method.
type Method string

const (
	MethodPix  Method = "pix"
	MethodCard Method = "card"
)

// DefaultMinInstallmentValue is the smallest installment the platform accepts.
var DefaultMinInstallmentValue = decimal.RequireFromString("5.00")

// ErrNegativeValue is returned when a monetary input is below zero.
var ErrNegativeValue = errors.New("pricing: negative monetary value")

// ParseMoney parses a decimal string, rejecting negative amounts.
func ParseMoney(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing: invalid monetary value %q: %w", raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrNegativeValue, raw)
	}
	return d, nil
}

// RoundCurrency rounds half-up to the currency minor unit.
func RoundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

func floorCurrency(d decimal.Decimal) decimal.Decimal {
	return d.RoundFloor(CurrencyScale)
}
