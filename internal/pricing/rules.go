package pricing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Rule holds the rate configuration for a single payment method.
type Rule struct {
	Method Method
	// BaseRate applies to single-installment payments.
	BaseRate decimal.Decimal
	// InstallmentBaseRate replaces BaseRate once the payment is split in two or more installments.
	InstallmentBaseRate          decimal.Decimal
	AdditionalRatePerInstallment decimal.Decimal
	MinInstallmentValue          decimal.Decimal
	MaxInstallments              int
}

// Rules is an immutable set of per-method rules.
type Rules struct {
	byMethod map[Method]Rule
}

// NewRules indexes the provided rules by method. Later duplicates win.
func NewRules(rules ...Rule) Rules {
	idx := make(map[Method]Rule, len(rules))
	for _, r := range rules {
		idx[r.Method] = r
	}
	return Rules{byMethod: idx}
}

// DefaultRules returns the checkout's rate table: PIX is feeless and single-shot,
// card charges 3.99% at 1x and 4.99% + 2% per extra installment up to 12x.
func DefaultRules() Rules {
	return NewRules(
		Rule{
			Method:                       MethodPix,
			BaseRate:                     decimal.Zero,
			InstallmentBaseRate:          decimal.Zero,
			AdditionalRatePerInstallment: decimal.Zero,
			MinInstallmentValue:          decimal.Zero,
			MaxInstallments:              1,
		},
		Rule{
			Method:                       MethodCard,
			BaseRate:                     decimal.RequireFromString("0.0399"),
			InstallmentBaseRate:          decimal.RequireFromString("0.0499"),
			AdditionalRatePerInstallment: decimal.RequireFromString("0.02"),
			MinInstallmentValue:          DefaultMinInstallmentValue,
			MaxInstallments:              12,
		},
	)
}

// WithMinInstallmentValue returns a copy of the rules where every method that splits
// payments uses floor as its installment minimum. A non-positive floor keeps the current values.
func (r Rules) WithMinInstallmentValue(floor decimal.Decimal) Rules {
	idx := make(map[Method]Rule, len(r.byMethod))
	for method, rule := range r.byMethod {
		if floor.IsPositive() && rule.MaxInstallments > 1 {
			rule.MinInstallmentValue = floor
		}
		idx[method] = rule
	}
	return Rules{byMethod: idx}
}

// Lookup returns the rule configured for method.
func (r Rules) Lookup(method Method) (Rule, bool) {
	rule, ok := r.byMethod[method]
	return rule, ok
}

// Methods lists configured methods in lexical order.
func (r Rules) Methods() []Method {
	out := make([]Method, 0, len(r.byMethod))
	for m := range r.byMethod {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
