package pricing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/checkout-pricing/internal/obs"
)

var hundred = decimal.NewFromInt(100)

// Request carries the inputs of a pricing computation.
type Request struct {
	OriginalValue  decimal.Decimal
	CurrentValue   decimal.Decimal
	Method         Method
	Installments   int
	IncludeOptions bool
}

// Key returns the content-addressed cache signature of the request.
func (r Request) Key() string {
	return fmt.Sprintf("%s_%s_%s_%d_%t",
		r.OriginalValue.String(), r.CurrentValue.String(), r.Method, r.Installments, r.IncludeOptions)
}

// Result is the full pricing breakdown. Cached results are shared and must not be mutated.
type Result struct {
	OriginalValue     decimal.Decimal     `json:"originalValue"`
	EffectiveValue    decimal.Decimal     `json:"effectiveValue"`
	Method            Method              `json:"paymentMethod"`
	Installments      int                 `json:"installments"`
	Rate              decimal.Decimal     `json:"rate"`
	Total             decimal.Decimal     `json:"total"`
	MonthlyValue      decimal.Decimal     `json:"monthlyValue"`
	LastValue         decimal.Decimal     `json:"lastValue"`
	AdjustedTotal     decimal.Decimal     `json:"adjustedTotal"`
	NetValue          decimal.Decimal     `json:"netValue"`
	Savings           decimal.Decimal     `json:"savings"`
	SavingsPercentage decimal.Decimal     `json:"savingsPercentage"`
	FeeAmount         decimal.Decimal     `json:"feeAmount"`
	Valid             bool                `json:"isValid"`
	Reason            string              `json:"validationReason,omitempty"`
	Options           []InstallmentOption `json:"installmentOptions"`
}

// ServiceConfig wires the Service dependencies.
type ServiceConfig struct {
	Engine Engine
	Cache  Cache
	Logger *zerolog.Logger
	Tracer trace.Tracer
}

// Service is the single entry point for checkout pricing.
type Service struct {
	engine Engine
	cache  Cache
	log    zerolog.Logger
	tracer trace.Tracer
}

// NewService constructs a Service, defaulting missing collaborators.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Engine.Rules.byMethod == nil {
		cfg.Engine = NewEngine(DefaultRules())
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("pricing")
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Service{
		engine: cfg.Engine,
		cache:  cfg.Cache,
		log:    logger,
		tracer: cfg.Tracer,
	}
}

// Engine exposes the underlying rate engine.
func (s *Service) Engine() Engine { return s.engine }

// Compute returns the pricing for req. Identical requests return the same *Result until the
// cache is cleared. Invalid installment plans are reported through Valid/Reason; only negative
// monetary input produces an error.
func (s *Service) Compute(ctx context.Context, req Request) (*Result, error) {
	if req.OriginalValue.IsNegative() || req.CurrentValue.IsNegative() {
		return nil, fmt.Errorf("%w: original=%s current=%s", ErrNegativeValue, req.OriginalValue, req.CurrentValue)
	}

	key := req.Key()
	if cached, ok := s.cache.Get(key); ok {
		observeCache("hit")
		return cached, nil
	}
	observeCache("miss")

	_, span := s.tracer.Start(ctx, "pricing.Compute", trace.WithAttributes(
		attribute.String("pricing.method", string(req.Method)),
		attribute.Int("pricing.installments", req.Installments),
		attribute.Bool("pricing.include_options", req.IncludeOptions),
	))
	defer span.End()

	res := s.compute(req)
	span.SetAttributes(attribute.Bool("pricing.valid", res.Valid))

	if obs.PricingComputationsTotal != nil {
		obs.PricingComputationsTotal.WithLabelValues(string(req.Method), strconv.FormatBool(res.Valid)).Inc()
	}
	s.log.Debug().
		Str("key", key).
		Str("total", res.Total.StringFixed(CurrencyScale)).
		Bool("valid", res.Valid).
		Msg("pricing computed")
	if !res.Valid {
		s.log.Info().Str("method", string(req.Method)).Int("installments", req.Installments).
			Str("reason", res.Reason).Msg("invalid installment plan")
	}

	return s.cache.Store(key, res), nil
}

func (s *Service) compute(req Request) *Result {
	original := req.OriginalValue
	effective := req.CurrentValue

	validation := s.engine.Validate(effective, req.Installments, req.Method)
	rate := s.engine.Rate(req.Method, req.Installments)
	total := Total(effective, rate)
	split := SplitInstallments(total, req.Installments, s.engine.minInstallmentValue(req.Method))

	savings := original.Sub(effective)
	savingsPct := decimal.Zero
	if original.IsPositive() {
		savingsPct = savings.Div(original).Mul(hundred).Round(4)
	}

	var options []InstallmentOption
	if req.IncludeOptions {
		options = s.engine.Options(effective, req.Method)
	}
	if options == nil {
		options = []InstallmentOption{}
	}

	return &Result{
		OriginalValue:     original,
		EffectiveValue:    effective,
		Method:            req.Method,
		Installments:      req.Installments,
		Rate:              rate,
		Total:             total,
		MonthlyValue:      split.MonthlyValue,
		LastValue:         split.LastValue,
		AdjustedTotal:     split.AdjustedTotal,
		NetValue:          NetValue(effective, total),
		Savings:           savings,
		SavingsPercentage: savingsPct,
		FeeAmount:         total.Sub(effective),
		Valid:             validation.Valid,
		Reason:            validation.Reason,
		Options:           options,
	}
}

// NetValue is what the producer keeps: the effective value less the fee charged on top of it.
func NetValue(effective, total decimal.Decimal) decimal.Decimal {
	return effective.Mul(decimal.NewFromInt(2)).Sub(total)
}

// ClearCache drops every memoized result.
func (s *Service) ClearCache() {
	s.cache.Clear()
	s.log.Debug().Msg("pricing cache cleared")
}

// CacheStats reports the memoization cache contents.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

func observeCache(result string) {
	if obs.PricingCacheLookupsTotal != nil {
		obs.PricingCacheLookupsTotal.WithLabelValues(result).Inc()
	}
}
