package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	MinInstallmentValue   decimal.Decimal
	EnforceMinInstallment bool
	CurrencyCode          string
	Locale                string

	PromoWindow    time.Duration
	OrderTTL       time.Duration
	IdempotencyTTL time.Duration
	SeedDemoOrders bool

	QuoteRateLimitMax    int
	QuoteRateLimitWindow time.Duration

	BodyLimitBytes         int64
	SecurityHeadersEnabled bool
	ShutdownTimeout        time.Duration
	AdminToken             string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	minValue, err := parseDecimal(k.String("PRICING_MIN_INSTALLMENT_VALUE"), "5.00")
	if err != nil {
		return nil, fmt.Errorf("PRICING_MIN_INSTALLMENT_VALUE: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		MinInstallmentValue:   minValue,
		EnforceMinInstallment: parseBool(k.String("PRICING_ENFORCE_MIN_INSTALLMENT"), true),
		CurrencyCode:          strings.ToUpper(valueOrDefault(k.String("PRICING_CURRENCY_CODE"), "BRL")),
		Locale:                valueOrDefault(k.String("PRICING_LOCALE"), "pt-BR"),

		PromoWindow:    parseDuration(k.String("PROMO_WINDOW"), "10m"),
		OrderTTL:       parseDuration(k.String("ORDER_TTL"), "720h"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		SeedDemoOrders: parseBool(k.String("ORDERS_SEED_DEMO"), false),

		QuoteRateLimitMax:    parseInt(k.String("RATE_LIMIT_QUOTE_MAX"), 60),
		QuoteRateLimitWindow: parseDuration(k.String("RATE_LIMIT_QUOTE_WINDOW"), "1m"),

		BodyLimitBytes:         int64(parseInt(k.String("BODY_LIMIT_BYTES"), 64<<10)),
		SecurityHeadersEnabled: parseBool(k.String("SECURITY_HEADERS_ENABLED"), true),
		ShutdownTimeout:        parseDuration(k.String("SHUTDOWN_TIMEOUT"), "10s"),
		AdminToken:             strings.TrimSpace(k.String("ADMIN_TOKEN")),
	}

	if cfg.MinInstallmentValue.IsNegative() {
		return nil, fmt.Errorf("PRICING_MIN_INSTALLMENT_VALUE must not be negative")
	}
	if cfg.PromoWindow <= 0 {
		return nil, fmt.Errorf("PROMO_WINDOW must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// RedisEnabled reports whether a Redis URL was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseDecimal(value, fallback string) (decimal.Decimal, error) {
	return decimal.NewFromString(valueOrDefault(value, fallback))
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
