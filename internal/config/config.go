package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/labstack/gommon/random"
)

// Config carries the environment-driven settings shared by both services.
type Config struct {
	DatabaseURL string
	Port        int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// WebhookSecret is the HMAC key shared by dispatcher and receiver.
	WebhookSecret string

	// IdempotencyTTL is how long a committed idempotency record is replayed
	// before the sweep removes it.
	IdempotencyTTL time.Duration

	// RequireIdempotencyKey makes the dedup gate reject mutations without an
	// Idempotency-Key header instead of passing them through.
	RequireIdempotencyKey bool

	// PaymentServiceURL is where the subscription service initiates payments.
	PaymentServiceURL string
	// SubscriptionWebhookURL is where the payment service delivers outcome
	// webhooks.
	SubscriptionWebhookURL string

	HTTPTimeout        time.Duration
	WebhookMaxAttempts int
	WebhookBaseDelay   time.Duration
}

// Load reads configuration from the environment with development defaults.
// DATABASE_URL is the only hard requirement.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		Port:                   envInt("PORT", 8080),
		RedisAddr:              envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envInt("REDIS_DB", 0),
		WebhookSecret:          os.Getenv("WEBHOOK_SECRET"),
		IdempotencyTTL:         envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		RequireIdempotencyKey:  envBool("IDEMPOTENCY_REQUIRE_KEY", false),
		PaymentServiceURL:      envString("PAYMENT_SERVICE_URL", "http://localhost:8081"),
		SubscriptionWebhookURL: envString("SUBSCRIPTION_WEBHOOK_URL", "http://localhost:8080/v1/webhooks/payment"),
		HTTPTimeout:            envDuration("HTTP_TIMEOUT", 10*time.Second),
		WebhookMaxAttempts:     envInt("WEBHOOK_MAX_ATTEMPTS", 3),
		WebhookBaseDelay:       envDuration("WEBHOOK_BASE_DELAY", 500*time.Millisecond),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = random.String(32)
		log.Printf("WARNING: WEBHOOK_SECRET not set, using generated secret (webhooks will not verify across restarts)")
	}

	return cfg
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid %s=%q, using default %d", name, os.Getenv(name), fallback)
	}
	return fallback
}

func envBool(name string, fallback bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid %s=%q, using default %s", name, os.Getenv(name), fallback)
	}
	return fallback
}
