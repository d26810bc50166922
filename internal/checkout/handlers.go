// Package checkout serves the pricing endpoints used by the checkout page.
package checkout

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/common"
	"github.com/noah-isme/checkout-pricing/internal/pricing"
	"github.com/noah-isme/checkout-pricing/internal/promo"
)

// Handler exposes the pricing endpoints.
type Handler struct {
	Pricing   *pricing.Service
	Catalog   *catalog.Service
	Formatter *pricing.Formatter
	Promo     *promo.Window
	Validator *validator.Validate
	Clock     func() time.Time
}

// QuoteRequest is the body of POST /api/v1/pricing/quote. Amounts may be JSON numbers or strings.
type QuoteRequest struct {
	OriginalValue  *decimal.Decimal `json:"originalValue" validate:"required"`
	CurrentValue   *decimal.Decimal `json:"currentValue" validate:"required"`
	PaymentMethod  string           `json:"paymentMethod" validate:"required"`
	Installments   int              `json:"installments"`
	IncludeOptions bool             `json:"includeOptions"`
}

// Quote is a pricing result with its display strings.
type Quote struct {
	*pricing.Result
	Formatted pricing.FormattedResult `json:"formatted"`
}

// PromoStatus describes the promotional countdown at request time.
type PromoStatus struct {
	Open             bool      `json:"open"`
	Deadline         time.Time `json:"deadline"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

// ProductQuote is the response of the product pricing endpoint.
type ProductQuote struct {
	Product catalog.Product `json:"product"`
	Quote   Quote           `json:"quote"`
	Promo   *PromoStatus    `json:"promo,omitempty"`
}

type ruleView struct {
	Method                       pricing.Method  `json:"method"`
	BaseRate                     decimal.Decimal `json:"baseRate"`
	InstallmentBaseRate          decimal.Decimal `json:"installmentBaseRate"`
	AdditionalRatePerInstallment decimal.Decimal `json:"additionalRatePerInstallment"`
	MinInstallmentValue          decimal.Decimal `json:"minInstallmentValue"`
	MaxInstallments              int             `json:"maxInstallments"`
}

func (h *Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock()
}

func (h *Handler) formatter() *pricing.Formatter {
	if h.Formatter == nil {
		return pricing.DefaultFormatter()
	}
	return h.Formatter
}

// Quote handles POST /api/v1/pricing/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Pricing == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	var req QuoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if h.Validator != nil {
		if err := h.Validator.StructCtx(r.Context(), req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "originalValue, currentValue and paymentMethod are required", nil)
			return
		}
	} else if req.OriginalValue == nil || req.CurrentValue == nil || req.PaymentMethod == "" {
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "originalValue, currentValue and paymentMethod are required", nil)
		return
	}
	res, err := h.Pricing.Compute(r.Context(), pricing.Request{
		OriginalValue:  *req.OriginalValue,
		CurrentValue:   *req.CurrentValue,
		Method:         pricing.Method(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		Installments:   req.Installments,
		IncludeOptions: req.IncludeOptions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, Quote{Result: res, Formatted: h.formatter().Format(res)})
}

// ProductPricing handles GET /api/v1/products/{id}/pricing. Query parameters: method (default pix),
// installments (default 1), options (bool) and startedAt (RFC 3339 checkout start for the promo window).
func (h *Handler) ProductPricing(w http.ResponseWriter, r *http.Request) {
	if h.Pricing == nil || h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	product, err := h.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	method := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("method")))
	if method == "" {
		method = string(pricing.MethodPix)
	}
	current := product.CurrentPrice
	var status *PromoStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("startedAt")); raw != "" && h.Promo != nil {
		startedAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "startedAt must be an RFC 3339 timestamp", nil)
			return
		}
		window := h.Promo.StartedAt(startedAt)
		now := h.now()
		current = window.EffectivePrice(product.OriginalPrice, product.CurrentPrice, now)
		status = &PromoStatus{
			Open:             window.Open(now),
			Deadline:         window.Deadline().UTC(),
			RemainingSeconds: int64(window.Remaining(now) / time.Second),
		}
	}

	res, err := h.Pricing.Compute(r.Context(), pricing.Request{
		OriginalValue:  product.OriginalPrice,
		CurrentValue:   current,
		Method:         pricing.Method(method),
		Installments:   common.QueryInt(r, "installments", 1),
		IncludeOptions: common.QueryBool(r, "options", false),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, ProductQuote{
		Product: product,
		Quote:   Quote{Result: res, Formatted: h.formatter().Format(res)},
		Promo:   status,
	})
}

// Rules handles GET /api/v1/pricing/rules.
func (h *Handler) Rules(w http.ResponseWriter, r *http.Request) {
	if h.Pricing == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	rules := h.Pricing.Engine().Rules
	out := make([]ruleView, 0)
	for _, m := range rules.Methods() {
		rule, _ := rules.Lookup(m)
		out = append(out, ruleView{
			Method:                       rule.Method,
			BaseRate:                     rule.BaseRate,
			InstallmentBaseRate:          rule.InstallmentBaseRate,
			AdditionalRatePerInstallment: rule.AdditionalRatePerInstallment,
			MinInstallmentValue:          rule.MinInstallmentValue,
			MaxInstallments:              rule.MaxInstallments,
		})
	}
	common.Data(w, http.StatusOK, out)
}

// CacheStats handles GET /api/v1/pricing/cache.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.Pricing == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	common.Data(w, http.StatusOK, h.Pricing.CacheStats())
}

// ClearCache handles DELETE /api/v1/admin/pricing/cache.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if h.Pricing == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing service not configured", nil)
		return
	}
	h.Pricing.ClearCache()
	h.formatter().ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pricing.ErrNegativeValue):
		common.WriteError(w, common.BadRequest("monetary values must not be negative", err))
	case errors.Is(err, catalog.ErrProductNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	default:
		common.WriteError(w, err)
	}
}
