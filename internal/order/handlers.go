package order

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/common"
	"github.com/noah-isme/checkout-pricing/internal/pricing"
)

// Handler exposes order endpoints.
type Handler struct {
	Service   *Service
	Formatter *pricing.Formatter
}

// Create handles POST /api/v1/orders.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	var in Input
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	o, err := h.Service.Place(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+o.ID)
	common.Data(w, http.StatusCreated, h.present(o))
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	o, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, h.present(o))
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	orders, total, err := h.Service.List(r.Context(), (page-1)*perPage, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(orders))
	for _, o := range orders {
		items = append(items, map[string]any{
			"id":            o.ID,
			"productId":     o.ProductID,
			"paymentMethod": o.PaymentMethod,
			"installments":  o.Installments,
			"status":        o.Status,
			"createdAt":     o.CreatedAt,
		})
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"pagination": common.Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalItems: total,
		},
	})
}

// Stats handles GET /api/v1/orders/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	st, err := h.Service.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st)
}

// Exists handles HEAD /api/v1/orders/{id}.
func (h *Handler) Exists(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	ok, err := h.Service.Exists(r.Context(), chi.URLParam(r, "id"))
	switch {
	case err != nil:
		w.WriteHeader(http.StatusInternalServerError)
	case !ok:
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

type orderView struct {
	Order
	CPF       string                   `json:"cpf"`
	Formatted *pricing.FormattedResult `json:"formatted,omitempty"`
}

// present masks the CPF and attaches display strings when a formatter is configured.
func (h *Handler) present(o Order) orderView {
	view := orderView{Order: o, CPF: MaskCPF(o.CPF)}
	if h.Formatter != nil && o.Pricing != nil {
		f := h.Formatter.Format(o.Pricing)
		view.Formatted = &f
	}
	return view
}

func writeError(w http.ResponseWriter, err error) {
	var inputErr *InputError
	var rejected *QuoteRejectedError
	switch {
	case errors.As(err, &inputErr):
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid checkout data", inputErr.Fields)
	case errors.As(err, &rejected):
		common.WriteError(w, common.Unprocessable("QUOTE_REJECTED", rejected.Reason, nil))
	case errors.Is(err, ErrNotFound):
		common.WriteError(w, common.NotFound("order not found", err))
	case errors.Is(err, catalog.ErrProductNotFound):
		common.WriteError(w, common.NotFound("product not found", err))
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "cannot transition to equal or previous state", nil)
	default:
		common.WriteError(w, err)
	}
}
