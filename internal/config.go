package internal

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/DukeRupert/reelscout/internal/domain"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public URL of the web client (checkout and portal return URLs)
	AppURL string

	// CORS origins allowed to call the API. Empty allows any origin.
	CORSOrigins []string

	// Timezone for quota days, typed dates and export timestamps
	Timezone string

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string // Base directory for local file storage
	LocalStorageURL  string // Base URL for accessing local files

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string // Optional custom domain URL

	// Key-value store for lockout state, subscription cache and preferences
	KVBackend       string // "memory" or "redis"
	KVMemorySize    int
	RedisURL        string
	RedisPrefix     string
	RedisDefaultTTL time.Duration

	// Scraper Provider Configuration
	ScraperProvider       string // "apify" or "mock"
	ApifyToken            string
	ApifyBaseURL          string
	ApifyInstagramActor   string
	ApifyTikTokActor      string
	ScraperMaxRetries     int
	ScraperRetryBaseDelay time.Duration
	ScraperRequestTimeout time.Duration
	ScraperRequestsPerSec float64

	// Search lockout
	LockoutMaxAttempts int
	LockoutDuration    time.Duration

	// Per-IP request limit across the API
	RequestRateLimit  int
	RequestRateWindow time.Duration

	// Background maintenance
	WorkerEnabled        bool
	SessionPurgeInterval time.Duration

	// Stripe Billing Configuration
	// In development, billing endpoints report "not implemented" if these are empty.
	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Stripe Price IDs for subscription plans
	Prices domain.PriceConfig

	// Scrape access to /metrics. Open when all three are empty.
	MetricsUsername    string
	MetricsPassword    string
	MetricsAllowedNets []netip.Prefix
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		AppURL:   strings.TrimRight(getEnv("APP_URL", "http://localhost:5173"), "/"),
		Timezone: getEnv("TIMEZONE", "Europe/Berlin"),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		// KV defaults to an in-process store for development
		KVBackend:       getEnv("KV_BACKEND", "memory"),
		KVMemorySize:    getEnvInt("KV_MEMORY_SIZE", 10000),
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPrefix:     getEnv("REDIS_PREFIX", "reelscout:"),
		RedisDefaultTTL: getEnvDuration("REDIS_DEFAULT_TTL", 24*time.Hour),

		// Scraper defaults to canned posts for development
		ScraperProvider:       getEnv("SCRAPER_PROVIDER", "mock"),
		ApifyToken:            getEnv("APIFY_TOKEN", ""),
		ApifyBaseURL:          getEnv("APIFY_BASE_URL", ""),
		ApifyInstagramActor:   getEnv("APIFY_INSTAGRAM_ACTOR", ""),
		ApifyTikTokActor:      getEnv("APIFY_TIKTOK_ACTOR", ""),
		ScraperMaxRetries:     getEnvInt("SCRAPER_MAX_RETRIES", 2),
		ScraperRetryBaseDelay: getEnvDuration("SCRAPER_RETRY_BASE_DELAY", 1*time.Second),
		ScraperRequestTimeout: getEnvDuration("SCRAPER_REQUEST_TIMEOUT", 120*time.Second),
		ScraperRequestsPerSec: getEnvFloat("SCRAPER_REQUESTS_PER_SECOND", 2),

		RequestRateLimit:  getEnvInt("REQUEST_RATE_LIMIT", 120),
		RequestRateWindow: getEnvDuration("REQUEST_RATE_WINDOW", time.Minute),

		WorkerEnabled:        getEnvBool("WORKER_ENABLED", true),
		SessionPurgeInterval: getEnvDuration("SESSION_PURGE_INTERVAL", time.Hour),

		// Stripe billing (optional)
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		Prices: PricesFromEnv(),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	cfg.LockoutMaxAttempts, cfg.LockoutDuration = LockoutFromEnv()
	cfg.CORSOrigins = getEnvList("CORS_ORIGINS")

	nets, err := parseNets(getEnvList("METRICS_ALLOWED_NETS"))
	if err != nil {
		return nil, fmt.Errorf("METRICS_ALLOWED_NETS: %w", err)
	}
	cfg.MetricsAllowedNets = nets

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	// Validate storage configuration
	if cfg.StorageProvider == "r2" {
		if cfg.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if cfg.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if cfg.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", cfg.StorageProvider)
	}

	// Validate KV configuration
	if cfg.KVBackend == "redis" {
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when KV_BACKEND is 'redis'")
		}
	} else if cfg.KVBackend != "memory" {
		return fmt.Errorf("KV_BACKEND must be either 'memory' or 'redis', got: %s", cfg.KVBackend)
	}

	// Validate scraper configuration
	if cfg.ScraperProvider == "apify" {
		if cfg.ApifyToken == "" {
			return fmt.Errorf("APIFY_TOKEN is required when SCRAPER_PROVIDER is 'apify'")
		}
	} else if cfg.ScraperProvider != "mock" {
		return fmt.Errorf("SCRAPER_PROVIDER must be either 'apify' or 'mock', got: %s", cfg.ScraperProvider)
	}

	if cfg.LockoutMaxAttempts < 1 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be at least 1, got %d", cfg.LockoutMaxAttempts)
	}
	if cfg.LockoutDuration < time.Second {
		return fmt.Errorf("LOCKOUT_DURATION must be at least 1s, got %v", cfg.LockoutDuration)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}

	// Webhooks cannot be verified without the signing secret.
	if cfg.StripeSecretKey != "" && cfg.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return nil
}

// PricesFromEnv reads the Stripe price IDs of the paid plans.
func PricesFromEnv() domain.PriceConfig {
	_ = godotenv.Load()
	return domain.PriceConfig{
		CreatorMonthlyPriceID:  getEnv("STRIPE_CREATOR_MONTHLY_PRICE_ID", ""),
		CreatorYearlyPriceID:   getEnv("STRIPE_CREATOR_YEARLY_PRICE_ID", ""),
		ProMonthlyPriceID:      getEnv("STRIPE_PRO_MONTHLY_PRICE_ID", ""),
		ProYearlyPriceID:       getEnv("STRIPE_PRO_YEARLY_PRICE_ID", ""),
		SteroidsMonthlyPriceID: getEnv("STRIPE_STEROIDS_MONTHLY_PRICE_ID", ""),
		SteroidsYearlyPriceID:  getEnv("STRIPE_STEROIDS_YEARLY_PRICE_ID", ""),
	}
}

// LockoutFromEnv reads the search lockout settings.
func LockoutFromEnv() (maxAttempts int, duration time.Duration) {
	_ = godotenv.Load()
	return getEnvInt("LOCKOUT_MAX_ATTEMPTS", 5), getEnvDuration("LOCKOUT_DURATION", 60*time.Second)
}

// Location returns the configured timezone. validate has already checked it.
func (cfg *Config) Location() *time.Location {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// BillingEnabled reports whether Stripe credentials are configured.
func (cfg *Config) BillingEnabled() bool {
	return cfg.StripeSecretKey != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseNets accepts CIDR prefixes or bare addresses.
func parseNets(items []string) ([]netip.Prefix, error) {
	nets := make([]netip.Prefix, 0, len(items))
	for _, item := range items {
		if prefix, err := netip.ParsePrefix(item); err == nil {
			nets = append(nets, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, fmt.Errorf("%q is neither an address nor a CIDR prefix", item)
		}
		addr = addr.Unmap()
		nets = append(nets, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return nets, nil
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
