package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8080"`

	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	JWTSecret          string `envconfig:"JWT_SECRET" required:"true"`

	// Redis is used for webhook event deduplication.
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// S3-compatible storage for artwork and rendered mockups.
	S3URL           string `envconfig:"S3_URL" required:"true"`
	S3Bucket        string `envconfig:"S3_BUCKET" required:"true"`
	S3Region        string `envconfig:"S3_REGION" required:"true"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY" required:"true"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL" required:"true"`

	// Image generation service settings
	RenderAPIBaseURL        string `envconfig:"RENDER_API_BASE_URL" required:"true"`
	RenderAPIKey            string `envconfig:"RENDER_API_KEY" required:"true"`
	RenderRequestTimeoutSec int    `envconfig:"RENDER_REQUEST_TIMEOUT_SEC" default:"120"`

	// Stripe settings
	StripeSecretKey      string `envconfig:"STRIPE_SECRET_KEY" required:"true"`
	StripeWebhookSecret  string `envconfig:"STRIPE_WEBHOOK_SECRET" required:"true"`
	StripePriceMonthly   string `envconfig:"STRIPE_PRICE_MONTHLY"`
	StripePriceQuarterly string `envconfig:"STRIPE_PRICE_QUARTERLY"`
	StripePriceSixMonths string `envconfig:"STRIPE_PRICE_SIX_MONTHS"`
	StripePriceTopUp     string `envconfig:"STRIPE_PRICE_TOPUP"`
	CheckoutReturnURL    string `envconfig:"CHECKOUT_RETURN_URL"`

	// Credit policy
	SignupBonusCredits int `envconfig:"SIGNUP_BONUS_CREDITS" default:"5"`
	PlanCredits        int `envconfig:"PLAN_CREDITS" default:"50"`
	TopUpCredits       int `envconfig:"TOPUP_CREDITS" default:"50"`

	// Guest rate limits (per fingerprint per 24h window)
	GuestGenerateDailyLimit int `envconfig:"GUEST_GENERATE_DAILY_LIMIT" default:"10"`
	GuestEmailDailyLimit    int `envconfig:"GUEST_EMAIL_DAILY_LIMIT" default:"5"`

	// Comma-separated allowlists
	AllowedImageHosts string `envconfig:"ALLOWED_IMAGE_HOSTS" default:""`
	AdminEmails       string `envconfig:"ADMIN_EMAILS" default:""`

	// SMTP settings for guest mockup delivery
	SMTPHost     string `envconfig:"SMTP_HOST" default:"localhost"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"noreply@localhost"`

	// Pub/Sub settings for the email delivery pipeline
	GCPProjectID                  string `envconfig:"GCP_PROJECT_ID"`
	PubSubEmulatorHost            string `envconfig:"PUBSUB_EMULATOR_HOST"`
	DeliveryTopic                 string `envconfig:"DELIVERY_TOPIC" default:"guest_email_delivery"`
	DeliverySubscription          string `envconfig:"DELIVERY_SUBSCRIPTION" default:"guest_email_delivery_sub"`
	DeliveryDeadLetterTopic       string `envconfig:"DELIVERY_DEAD_LETTER_TOPIC" default:"guest_email_delivery_dlq"`
	DeliveryMaxRetries            int    `envconfig:"DELIVERY_MAX_RETRIES" default:"5"`
	DeliveryBackoffInitialSec     int    `envconfig:"DELIVERY_BACKOFF_INITIAL_SEC" default:"1"`
	DeliveryBackoffMaxSec         int    `envconfig:"DELIVERY_BACKOFF_MAX_SEC" default:"60"`
	DLQEndpointURL                string `envconfig:"DLQ_ENDPOINT_URL"`
	PubSubPushServiceAccountEmail string `envconfig:"PUBSUB_PUSH_SERVICE_ACCOUNT_EMAIL"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PlanForPrice maps a Stripe price ID to a plan name.
func (c *Config) PlanForPrice(priceID string) (string, bool) {
	switch priceID {
	case c.StripePriceMonthly:
		return "monthly", priceID != ""
	case c.StripePriceQuarterly:
		return "quarterly", priceID != ""
	case c.StripePriceSixMonths:
		return "sixMonths", priceID != ""
	default:
		return "", false
	}
}

// PriceForPlan maps a plan name to its configured Stripe price ID.
func (c *Config) PriceForPlan(plan string) (string, bool) {
	switch plan {
	case "monthly":
		return c.StripePriceMonthly, c.StripePriceMonthly != ""
	case "quarterly":
		return c.StripePriceQuarterly, c.StripePriceQuarterly != ""
	case "sixMonths":
		return c.StripePriceSixMonths, c.StripePriceSixMonths != ""
	default:
		return "", false
	}
}

// AllowedImageHostList splits the configured allowlist. Empty means any host.
func (c *Config) AllowedImageHostList() []string {
	return splitList(c.AllowedImageHosts)
}

// AdminEmailList splits the configured admin allowlist.
func (c *Config) AdminEmailList() []string {
	return splitList(c.AdminEmails)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
