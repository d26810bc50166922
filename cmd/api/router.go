package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/checkout-pricing/internal/catalog"
	"github.com/noah-isme/checkout-pricing/internal/checkout"
	"github.com/noah-isme/checkout-pricing/internal/common"
	"github.com/noah-isme/checkout-pricing/internal/config"
	"github.com/noah-isme/checkout-pricing/internal/health"
	"github.com/noah-isme/checkout-pricing/internal/obs"
	"github.com/noah-isme/checkout-pricing/internal/order"
	"github.com/noah-isme/checkout-pricing/internal/pricing"
	"github.com/noah-isme/checkout-pricing/internal/promo"
	"github.com/noah-isme/checkout-pricing/internal/ratelimit"
	"github.com/noah-isme/checkout-pricing/internal/security"
)

type routerDeps struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Redis        *redis.Client
	Pricing      *pricing.Service
	Formatter    *pricing.Formatter
	Catalog      *catalog.Service
	Orders       *order.Service
	Validator    *validator.Validate
	Promo        *promo.Window
	HTTPMetrics  *obs.HTTPMetrics
	Tracing      bool
	Pprof        bool
	PprofUser    string
	PprofPass    string
	RedisTimeout time.Duration
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	logger := d.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"Location", "X-Request-ID", "X-Total-Count", "Retry-After"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeadersEnabled, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if d.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Pprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.PprofUser, d.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:      health.RedisChecker{Client: d.Redis},
		RedisTimeout: d.RedisTimeout,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: d.Catalog})
	pricingHandler := &checkout.Handler{
		Pricing:   d.Pricing,
		Catalog:   d.Catalog,
		Formatter: d.Formatter,
		Promo:     d.Promo,
		Validator: d.Validator,
	}
	orderHandler := &order.Handler{Service: d.Orders, Formatter: d.Formatter}
	orderAdmin := &order.AdminHandler{Service: d.Orders}

	quoteLimit := ratelimit.Handler{
		Config: ratelimit.Config{
			Key:    ratelimit.KeyByClientRoute,
			Window: cfg.QuoteRateLimitWindow,
			Max:    cfg.QuoteRateLimitMax,
		},
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("rate limiter unavailable")
		},
	}
	if d.Redis != nil {
		quoteLimit.Limiter = ratelimit.Limiter{Client: d.Redis, Prefix: "ratelimit:"}
	}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL, Prefix: "idem:"}
	noStore := security.Headers{Enable: cfg.SecurityHeadersEnabled, NoStore: true}.Middleware

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.ProductDetail)
		v.With(quoteLimit.Middleware).Get("/products/{id}/pricing", pricingHandler.ProductPricing)

		v.Route("/pricing", func(p chi.Router) {
			p.With(quoteLimit.Middleware, noStore).Post("/quote", pricingHandler.Quote)
			p.Get("/rules", pricingHandler.Rules)
			p.Get("/cache", pricingHandler.CacheStats)
		})

		v.Route("/orders", func(o chi.Router) {
			o.Use(noStore)
			o.With(idem.Middleware).Post("/", orderHandler.Create)
			o.Get("/", orderHandler.List)
			o.Get("/stats", orderHandler.Stats)
			o.Get("/{id}", orderHandler.Get)
			o.Head("/{id}", orderHandler.Exists)
		})

		if cfg.AdminToken != "" {
			v.Route("/admin", func(admin chi.Router) {
				admin.Use(security.RequireToken(cfg.AdminToken))
				admin.Patch("/orders/{id}/status", orderAdmin.PatchStatus)
				admin.Delete("/pricing/cache", pricingHandler.ClearCache)
			})
		}
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
