package pricing

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	lowRateCeiling      = decimal.RequireFromString("0.05")
	moderateRateCeiling = decimal.RequireFromString("0.15")
)

// Formatter renders pricing values for a locale and currency. Rendered strings are memoized.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit

	mu   sync.Mutex
	memo map[string]string
}

// NewFormatter builds a Formatter for a BCP 47 locale and an ISO 4217 currency code.
func NewFormatter(locale, currencyCode string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", currencyCode, err)
	}
	return &Formatter{
		printer: message.NewPrinter(tag),
		unit:    unit,
		memo:    make(map[string]string),
	}, nil
}

// DefaultFormatter renders Brazilian reais.
func DefaultFormatter() *Formatter {
	f, err := NewFormatter("pt-BR", "BRL")
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Formatter) remember(key string, render func() string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.memo[key]; ok {
		return s
	}
	s := render()
	f.memo[key] = s
	return s
}

// Currency renders d with the currency symbol, e.g. "R$ 1.234,56".
func (f *Formatter) Currency(d decimal.Decimal) string {
	rounded := RoundCurrency(d)
	return f.remember("currency_"+rounded.String(), func() string {
		// Values are already cent-exact, so the float conversion round-trips.
		return f.printer.Sprint(currency.Symbol(f.unit.Amount(rounded.InexactFloat64())))
	})
}

// Percent renders a percentage that is already scaled to 0..100, e.g. 40.24 -> "40,24%".
func (f *Formatter) Percent(pct decimal.Decimal) string {
	rounded := pct.Round(2)
	return f.remember("percent_"+rounded.String(), func() string {
		return f.printer.Sprint(number.Decimal(rounded.InexactFloat64(), number.Scale(2))) + "%"
	})
}

// Rate renders a fractional rate as a percentage, e.g. 0.0399 -> "3,99%".
func (f *Formatter) Rate(rate decimal.Decimal) string {
	return f.Percent(rate.Mul(hundred))
}

// InterestRate renders a rate with a qualitative label.
func (f *Formatter) InterestRate(rate decimal.Decimal) string {
	switch {
	case rate.IsZero():
		return "0% (sem juros)"
	case rate.LessThan(lowRateCeiling):
		return f.Rate(rate) + " (baixa taxa)"
	case rate.LessThan(moderateRateCeiling):
		return f.Rate(rate) + " (taxa moderada)"
	default:
		return f.Rate(rate) + " (alta taxa)"
	}
}

// InstallmentFormat toggles the optional suffixes of Installment.
type InstallmentFormat struct {
	ShowRate  bool
	Rate      decimal.Decimal
	ShowTotal bool
}

// Installment renders "3x de R$ 107,90", noting a differing last installment and optional suffixes.
func (f *Formatter) Installment(monthly, last decimal.Decimal, count int, opts InstallmentFormat) string {
	out := fmt.Sprintf("%dx de %s", count, f.Currency(monthly))
	if count > 1 && !RoundCurrency(monthly).Equal(RoundCurrency(last)) {
		out += fmt.Sprintf(" (última: %s)", f.Currency(last))
	}
	if opts.ShowRate {
		out += fmt.Sprintf(" (%s)", f.Rate(opts.Rate))
	}
	if opts.ShowTotal {
		total := monthly.Mul(decimal.NewFromInt(int64(count - 1))).Add(last)
		out += " - Total: " + f.Currency(total)
	}
	return out
}

// Savings renders "Economia de R$ 200,00 (40,24%)".
func (f *Formatter) Savings(original, current decimal.Decimal, showPercentage bool) string {
	savings := original.Sub(current)
	out := "Economia de " + f.Currency(savings)
	if showPercentage {
		pct := decimal.Zero
		if original.IsPositive() {
			pct = savings.Div(original).Mul(hundred)
		}
		out += fmt.Sprintf(" (%s)", f.Percent(pct))
	}
	return out
}

// ClearCache drops memoized renderings.
func (f *Formatter) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memo = make(map[string]string)
}

// FormattedResult carries the display strings for a Result.
type FormattedResult struct {
	OriginalValue     string `json:"originalValue"`
	EffectiveValue    string `json:"effectiveValue"`
	Total             string `json:"total"`
	MonthlyValue      string `json:"monthlyValue"`
	LastValue         string `json:"lastValue"`
	AdjustedTotal     string `json:"adjustedTotal"`
	NetValue          string `json:"netValue"`
	Savings           string `json:"savings"`
	SavingsPercentage string `json:"savingsPercentage"`
	FeeAmount         string `json:"feeAmount"`
	Rate              string `json:"rate"`
	Installment       string `json:"installment"`
}

// Format renders every monetary and rate field of r.
func (f *Formatter) Format(r *Result) FormattedResult {
	count := r.Installments
	if count < 1 {
		count = 1
	}
	return FormattedResult{
		OriginalValue:     f.Currency(r.OriginalValue),
		EffectiveValue:    f.Currency(r.EffectiveValue),
		Total:             f.Currency(r.Total),
		MonthlyValue:      f.Currency(r.MonthlyValue),
		LastValue:         f.Currency(r.LastValue),
		AdjustedTotal:     f.Currency(r.AdjustedTotal),
		NetValue:          f.Currency(r.NetValue),
		Savings:           f.Currency(r.Savings),
		SavingsPercentage: f.Percent(r.SavingsPercentage),
		FeeAmount:         f.Currency(r.FeeAmount),
		Rate:              f.InterestRate(r.Rate),
		Installment: f.Installment(r.MonthlyValue, r.LastValue, count, InstallmentFormat{
			ShowRate:  true,
			Rate:      r.Rate,
			ShowTotal: true,
		}),
	}
}
