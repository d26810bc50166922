package order

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/events"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/pricing"
	"github.com/noah-isme/checkout-pricing/internal/promo"
)

const maxIDAttempts = 3

// Input is the checkout form submitted by the buyer.
type Input struct {
	ProductID     string     `json:"productId" validate:"omitempty,max=128"`
	Email         string     `json:"email" validate:"required,email"`
	CPF           string     `json:"cpf" validate:"required,cpf"`
	PaymentMethod string     `json:"paymentMethod" validate:"required,oneof=pix card"`
	Installments  int        `json:"installments" validate:"min=1,max=12"`
	StartedAt     *time.Time `json:"startedAt,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// InputError is returned when the submitted form fails validation.
type InputError struct {
	Fields []FieldError
}

func (e *InputError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "order: invalid input: " + strings.Join(names, ", ")
}

// QuoteRejectedError is returned when the pricing engine refuses the requested plan.
type QuoteRejectedError struct {
	Reason string
}

func (e *QuoteRejectedError) Error() string {
	return "order: quote rejected: " + e.Reason
}

// ServiceConfig wires order placement.
type ServiceConfig struct {
	Store     Store
	Pricing   *pricing.Service
	Catalog   *catalog.Service
	Validator *validator.Validate
	// Promo, when set, decides the effective price from Input.StartedAt.
	Promo  *promo.Window
	Events *events.Bus
	Clock  func() time.Time
	Logger *zerolog.Logger
}

// Service places and reads orders.
type Service struct {
	store    Store
	pricing  *pricing.Service
	catalog  *catalog.Service
	validate *validator.Validate
	promo    *promo.Window
	events   *events.Bus
	now      func() time.Time
	log      zerolog.Logger
}

// NewService constructs a Service. A nil validator gets one with the cpf rule registered.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil || cfg.Pricing == nil || cfg.Catalog == nil {
		return nil, errors.New("order: store, pricing and catalog are required")
	}
	if cfg.Validator == nil {
		v, err := NewValidator()
		if err != nil {
			return nil, err
		}
		cfg.Validator = v
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "order").Logger()
	}
	return &Service{
		store:    cfg.Store,
		pricing:  cfg.Pricing,
		catalog:  cfg.Catalog,
		validate: cfg.Validator,
		promo:    cfg.Promo,
		events:   cfg.Events,
		now:      cfg.Clock,
		log:      log,
	}, nil
}

// NewValidator returns a validator with the checkout rules registered.
func NewValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return ValidCPF(fl.Field().String())
	})
	if err != nil {
		return nil, fmt.Errorf("order: register cpf rule: %w", err)
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v, nil
}

// Place validates the form, prices it and persists the order.
func (s *Service) Place(ctx context.Context, in Input) (Order, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.PaymentMethod = strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	in.ProductID = strings.TrimSpace(in.ProductID)
	if err := s.validate.StructCtx(ctx, in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
			}
			s.observe(in.PaymentMethod, "invalid_input")
			return Order{}, &InputError{Fields: fields}
		}
		return Order{}, err
	}

	product := s.catalog.Default()
	if in.ProductID != "" {
		p, err := s.catalog.Get(ctx, in.ProductID)
		if err != nil {
			s.observe(in.PaymentMethod, "unknown_product")
			return Order{}, err
		}
		product = p
	}

	now := s.now()
	current := product.CurrentPrice
	if s.promo != nil && in.StartedAt != nil {
		current = s.promo.StartedAt(*in.StartedAt).EffectivePrice(product.OriginalPrice, product.CurrentPrice, now)
	}
	quote, err := s.pricing.Compute(ctx, pricing.Request{
		OriginalValue: product.OriginalPrice,
		CurrentValue:  current,
		Method:        pricing.Method(in.PaymentMethod),
		Installments:  in.Installments,
	})
	if err != nil {
		return Order{}, err
	}
	if !quote.Valid {
		s.observe(in.PaymentMethod, "rejected")
		return Order{}, &QuoteRejectedError{Reason: quote.Reason}
	}

	o := Order{
		ProductID:     product.ID,
		Email:         in.Email,
		CPF:           digitsOnly(in.CPF),
		PaymentMethod: quote.Method,
		Installments:  quote.Installments,
		Status:        StatusConfirmed,
		CreatedAt:     now.UTC(),
		Pricing:       quote,
	}
	for attempt := 1; ; attempt++ {
		o.ID = NewID(now)
		err = s.store.Save(ctx, o)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicate) || attempt == maxIDAttempts {
			s.observe(in.PaymentMethod, "error")
			return Order{}, fmt.Errorf("order: save: %w", err)
		}
	}
	s.observe(in.PaymentMethod, "placed")
	s.log.Info().
		Str("order_id", o.ID).
		Str("product_id", o.ProductID).
		Str("method", string(o.PaymentMethod)).
		Int("installments", o.Installments).
		Str("total", quote.Total.StringFixed(2)).
		Msg("order placed")
	s.emit(ctx, events.TopicOrderPlaced, o.ID, map[string]any{
		"productId":     o.ProductID,
		"paymentMethod": o.PaymentMethod,
		"installments":  o.Installments,
		"total":         quote.Total.StringFixed(pricing.CurrencyScale),
	})
	return o, nil
}

// Get loads an order by id.
func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	if !ValidID(id) {
		return Order{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// Exists reports whether an order id is known.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	if !ValidID(id) {
		return false, nil
	}
	return s.store.Exists(ctx, id)
}

// List pages through stored orders.
func (s *Service) List(ctx context.Context, offset, limit int) ([]Order, int, error) {
	return s.store.List(ctx, offset, limit)
}

// Stats counts stored orders by status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.Stats(ctx)
}

// UpdateStatus advances an order through its lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (Order, error) {
	o, err := s.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return Order{}, err
	}
	s.log.Info().Str("order_id", id).Str("status", string(status)).Msg("order status updated")
	s.emit(ctx, events.TopicOrderStatusChanged, id, map[string]any{"status": status})
	return o, nil
}

func (s *Service) emit(ctx context.Context, topic, id string, payload any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Emit(ctx, topic, id, payload); err != nil {
		s.log.Warn().Err(err).Str("topic", topic).Str("order_id", id).Msg("emit event")
	}
}

func (s *Service) observe(method, result string) {
	if obs.OrdersPlacedTotal == nil {
		return
	}
	if method != string(pricing.MethodPix) && method != string(pricing.MethodCard) {
		method = "unknown"
	}
	obs.OrdersPlacedTotal.WithLabelValues(method, result).Inc()
}
