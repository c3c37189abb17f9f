package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (KASSA_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (KASSA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	PublicBaseURL string `default:"http://localhost:8080" usage:"Public base URL used in checkout redirect links" flag:"public-base-url"`
	UsdToRub      string `default:"80" usage:"USD to RUB settlement exchange rate" flag:"usd-to-rub"`
	Stripe        StripeConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// StripeConfig holds the payment processor credentials and client tuning.
type StripeConfig struct {
	SecretKey string        `usage:"Stripe secret API key (KASSA_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
	BaseURL   string        `default:"" usage:"Override Stripe API base URL (tests only)" flag:"stripe-base-url"`
	Timeout   time.Duration `default:"10s" usage:"Stripe HTTP client timeout"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// ExchangeRate parses the configured USD to RUB rate.
func (c *Config) ExchangeRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.UsdToRub)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "parse exchange rate")
	}
	if !rate.IsPositive() {
		return decimal.Decimal{}, errors.New("exchange rate must be positive")
	}
	return rate, nil
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KASSA",
		Files:     []string{"config.yaml", "/etc/kassa/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set KASSA_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Stripe.SecretKey == "" {
		return nil, errors.New("stripe secret key is required: set KASSA_STRIPE_SECRET_KEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's KASSA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Stripe.SecretKey == "" {
		if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
			c.Stripe.SecretKey = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
