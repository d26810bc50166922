package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/pricing"
	"github.com/noah-isme/checkout-pricing/internal/promo"
)

var now = time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)

type quoteEnvelope struct {
	Data struct {
		Total              string `json:"total"`
		MonthlyValue       string `json:"monthlyValue"`
		IsValid            bool   `json:"isValid"`
		ValidationReason   string `json:"validationReason"`
		InstallmentOptions []struct {
			Value int    `json:"value"`
			Label string `json:"label"`
		} `json:"installmentOptions"`
		Formatted struct {
			Total       string `json:"total"`
			Installment string `json:"installment"`
		} `json:"formatted"`
	} `json:"data"`
}

func newRouter(t *testing.T) (http.Handler, *pricing.Service) {
	t.Helper()
	products, err := catalog.NewService(catalog.DemoProducts())
	require.NoError(t, err)
	svc := pricing.NewService(pricing.ServiceConfig{})
	window := promo.Window{Duration: promo.DefaultDuration}
	h := &checkout.Handler{
		Pricing:   svc,
		Catalog:   products,
		Formatter: pricing.DefaultFormatter(),
		Promo:     &window,
		Validator: validator.New(),
		Clock:     func() time.Time { return now },
	}
	r := chi.NewRouter()
	r.Get("/api/v1/products/{id}/pricing", h.ProductPricing)
	r.Post("/api/v1/pricing/quote", h.Quote)
	r.Get("/api/v1/pricing/rules", h.Rules)
	r.Get("/api/v1/pricing/cache", h.CacheStats)
	r.Delete("/api/v1/admin/pricing/cache", h.ClearCache)
	return r, svc
}

func post(router http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func get(router http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestQuote(t *testing.T) {
	router, svc := newRouter(t)

	rr := post(router, "/api/v1/pricing/quote",
		`{"originalValue":497,"currentValue":"297.00","paymentMethod":"card","installments":3,"includeOptions":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp quoteEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Data.IsValid)
	assert.Equal(t, "323.7", resp.Data.Total)
	assert.Equal(t, "107.9", resp.Data.MonthlyValue)
	assert.Len(t, resp.Data.InstallmentOptions, 12)
	assert.Equal(t, "1x sem juros", resp.Data.InstallmentOptions[0].Label)
	assert.Equal(t, "R$ 323,70", resp.Data.Formatted.Total)

	assert.Equal(t, 1, svc.CacheStats().Size)
	assert.Equal(t, []string{"497_297_card_3_true"}, svc.CacheStats().Keys)
}

func TestQuoteInvalidPlans(t *testing.T) {
	router, _ := newRouter(t)

	cases := []struct {
		name   string
		body   string
		reason string
	}{
		{"too many installments", `{"originalValue":497,"currentValue":297,"paymentMethod":"card","installments":24}`, "maximum of 12 installments"},
		{"unknown method", `{"originalValue":497,"currentValue":297,"paymentMethod":"boleto","installments":1}`, "invalid payment method"},
		{"zero installments", `{"originalValue":497,"currentValue":297,"paymentMethod":"card","installments":0}`, "minimum of 1 installment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(router, "/api/v1/pricing/quote", tc.body)
			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			var resp quoteEnvelope
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.False(t, resp.Data.IsValid)
			assert.Equal(t, tc.reason, resp.Data.ValidationReason)
		})
	}
}

func TestQuoteBadRequests(t *testing.T) {
	router, _ := newRouter(t)

	rr := post(router, "/api/v1/pricing/quote", `{"originalValue":497,"currentValue":-1,"paymentMethod":"pix","installments":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(router, "/api/v1/pricing/quote", `{"currentValue":297,"paymentMethod":"pix"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "VALIDATION_FAILED")

	rr = post(router, "/api/v1/pricing/quote", `{"originalValue":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProductPricing(t *testing.T) {
	router, _ := newRouter(t)

	t.Run("defaults to pix", func(t *testing.T) {
		rr := get(router, http.MethodGet, "/api/v1/products/curso-marketing-digital/pricing")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"paymentMethod":"pix"`)
		assert.Contains(t, rr.Body.String(), `"total":"297"`)
		assert.NotContains(t, rr.Body.String(), `"promo"`)
	})

	t.Run("promo open", func(t *testing.T) {
		started := now.Add(-4 * time.Minute).Format(time.RFC3339)
		rr := get(router, http.MethodGet, "/api/v1/products/curso-react/pricing?method=card&installments=2&startedAt="+started)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Data checkout.ProductQuote `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		require.NotNil(t, resp.Data.Promo)
		assert.True(t, resp.Data.Promo.Open)
		assert.EqualValues(t, 360, resp.Data.Promo.RemainingSeconds)
	})

	t.Run("promo expired charges the original price", func(t *testing.T) {
		started := now.Add(-30 * time.Minute).Format(time.RFC3339)
		rr := get(router, http.MethodGet, "/api/v1/products/curso-react/pricing?startedAt="+started)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"effectiveValue":"397"`)
		assert.Contains(t, rr.Body.String(), `"open":false`)
	})

	t.Run("bad startedAt", func(t *testing.T) {
		rr := get(router, http.MethodGet, "/api/v1/products/curso-react/pricing?startedAt=yesterday")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown product", func(t *testing.T) {
		rr := get(router, http.MethodGet, "/api/v1/products/nope/pricing")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRulesAndCacheEndpoints(t *testing.T) {
	router, svc := newRouter(t)

	rr := get(router, http.MethodGet, "/api/v1/pricing/rules")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"method":"card"`)
	assert.Contains(t, rr.Body.String(), `"maxInstallments":12`)

	post(router, "/api/v1/pricing/quote", `{"originalValue":497,"currentValue":297,"paymentMethod":"pix","installments":1}`)
	rr = get(router, http.MethodGet, "/api/v1/pricing/cache")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"data":{"size":1,"keys":["497_297_pix_1_false"]}}`, rr.Body.String())

	rr = get(router, http.MethodDelete, "/api/v1/admin/pricing/cache")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Zero(t, svc.CacheStats().Size)
}
