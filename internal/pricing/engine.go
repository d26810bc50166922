package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Split is the outcome of dividing a total into installments.
type Split struct {
	MonthlyValue  decimal.Decimal `json:"monthlyValue"`
	LastValue     decimal.Decimal `json:"lastValue"`
	AdjustedTotal decimal.Decimal `json:"adjustedTotal"`
	// Clamped reports that the even share fell below the minimum and MonthlyValue was raised to it.
	Clamped bool `json:"-"`
}

// Validation reports whether an installment request is acceptable.
type Validation struct {
	Valid  bool
	Reason string
}

// Engine evaluates rates, totals, splits and validation against a rule set.
type Engine struct {
	Rules Rules
	// EnforceMinInstallment toggles the card minimum-installment-value check.
	EnforceMinInstallment bool
}

// NewEngine returns an engine over rules with the minimum-value check enabled.
func NewEngine(rules Rules) Engine {
	return Engine{Rules: rules, EnforceMinInstallment: true}
}

// Rate returns the interest rate for method and installment count.
// Card switches to InstallmentBaseRate at 2x, so the curve jumps between 1x and 2x.
func (e Engine) Rate(method Method, installments int) decimal.Decimal {
	if method == MethodPix {
		return decimal.Zero
	}
	rule, ok := e.Rules.Lookup(method)
	if !ok {
		return decimal.Zero
	}
	if installments <= 1 {
		return rule.BaseRate
	}
	extra := rule.AdditionalRatePerInstallment.Mul(decimal.NewFromInt(int64(installments - 1)))
	return rule.InstallmentBaseRate.Add(extra)
}

// Total returns value*(1+rate) rounded half-up to the minor unit. Fee and net value are
// derived from this cent-rounded total, never from the raw product.
func Total(value, rate decimal.Decimal) decimal.Decimal {
	return RoundCurrency(value.Mul(one.Add(rate)))
}

// SplitInstallments divides total into count installments. The even share is floored to
// the minor unit and the last installment absorbs the remainder.
func SplitInstallments(total decimal.Decimal, count int, minValue decimal.Decimal) Split {
	if count <= 1 {
		return Split{MonthlyValue: total, LastValue: total, AdjustedTotal: total}
	}
	n := decimal.NewFromInt(int64(count))
	others := decimal.NewFromInt(int64(count - 1))
	base := floorCurrency(total.Div(n))

	if base.LessThan(minValue) {
		allButLast := minValue.Mul(others)
		last := total.Sub(allButLast)
		return Split{
			MonthlyValue:  minValue,
			LastValue:     last,
			AdjustedTotal: allButLast.Add(last),
			Clamped:       true,
		}
	}

	last := total.Sub(base.Mul(others))
	return Split{
		MonthlyValue:  base,
		LastValue:     last,
		AdjustedTotal: base.Mul(others).Add(last),
	}
}

// Validate checks whether installments is allowed for method at value.
func (e Engine) Validate(value decimal.Decimal, installments int, method Method) Validation {
	rule, ok := e.Rules.Lookup(method)
	if !ok {
		return Validation{Reason: "invalid payment method"}
	}
	if installments > rule.MaxInstallments {
		if rule.MaxInstallments == 1 {
			return Validation{Reason: "maximum of 1 installment"}
		}
		return Validation{Reason: fmt.Sprintf("maximum of %d installments", rule.MaxInstallments)}
	}
	if installments < 1 {
		return Validation{Reason: "minimum of 1 installment"}
	}
	// Stricter than a plain monthly < min comparison: a split that had to be clamped up to the
	// minimum is rejected too, so 10.00 in 3x is invalid by default. Disable with
	// EnforceMinInstallment to accept clamped plans.
	if e.EnforceMinInstallment && method == MethodCard && installments > 1 {
		total := Total(value, e.Rate(method, installments))
		split := SplitInstallments(total, installments, rule.MinInstallmentValue)
		if split.Clamped || split.MonthlyValue.LessThan(rule.MinInstallmentValue) {
			return Validation{Reason: "installment value below minimum of R$ " + commaDecimal(rule.MinInstallmentValue)}
		}
	}
	return Validation{Valid: true}
}

// minInstallmentValue is the split floor for method. Unknown methods fall back to the platform default.
func (e Engine) minInstallmentValue(method Method) decimal.Decimal {
	if rule, ok := e.Rules.Lookup(method); ok {
		return rule.MinInstallmentValue
	}
	return DefaultMinInstallmentValue
}

// InstallmentOption is one row of the installment matrix.
type InstallmentOption struct {
	Value         int             `json:"value"`
	Label         string          `json:"label"`
	Rate          decimal.Decimal `json:"rate"`
	MonthlyValue  decimal.Decimal `json:"monthlyValue"`
	LastValue     decimal.Decimal `json:"lastValue"`
	Total         decimal.Decimal `json:"total"`
	AdjustedTotal decimal.Decimal `json:"adjustedTotal"`
}

// Options builds the installment matrix from 1 to the method's maximum.
func (e Engine) Options(value decimal.Decimal, method Method) []InstallmentOption {
	rule, ok := e.Rules.Lookup(method)
	if !ok {
		return nil
	}
	opts := make([]InstallmentOption, 0, rule.MaxInstallments)
	for i := 1; i <= rule.MaxInstallments; i++ {
		rate := e.Rate(method, i)
		total := Total(value, rate)
		split := SplitInstallments(total, i, rule.MinInstallmentValue)
		opts = append(opts, InstallmentOption{
			Value:         i,
			Label:         optionLabel(i),
			Rate:          rate,
			MonthlyValue:  split.MonthlyValue,
			LastValue:     split.LastValue,
			Total:         total,
			AdjustedTotal: split.AdjustedTotal,
		})
	}
	return opts
}

func optionLabel(n int) string {
	if n == 1 {
		return "1x sem juros"
	}
	return fmt.Sprintf("%dx de", n)
}

func commaDecimal(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(CurrencyScale), ".", ",", 1)
}
