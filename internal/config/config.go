// Package config loads process configuration from the environment once at
// startup. The resulting Config is passed explicitly to every collaborator.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string `env:"APP_ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"5000"`

	Mongo
	JWT
	Stripe
	Mail
	HTTP

	ClientURL       string `env:"CLIENT_URL" env-default:"http://localhost:3000"`
	DocxFullContent bool   `env:"DOCX_FULL_CONTENT" env-default:"false"`
}

type Mongo struct {
	URI    string `env:"MONGODB_URI" env-default:"mongodb://localhost:27017"`
	DBName string `env:"DB_NAME" env-default:"proposalmate"`
}

type JWT struct {
	Secret string        `env:"JWT_SECRET" env-required:"true"`
	Expire time.Duration `env:"JWT_EXPIRE" env-default:"168h"`
}

// Stripe is optional. Billing endpoints answer 503 while SecretKey is empty.
type Stripe struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceID       string `env:"STRIPE_PRICE_ID"`
	TrialDays     int64  `env:"STRIPE_TRIAL_DAYS" env-default:"7"`
}

type Mail struct {
	ResendAPIKey string `env:"RESEND_API_KEY"`
	From         string `env:"EMAIL_FROM" env-default:"noreply@proposalmate.com"`
}

type HTTP struct {
	ReadTimeout        time.Duration `env:"HTTP_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout       time.Duration `env:"HTTP_WRITE_TIMEOUT" env-default:"60s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
	AuthRateLimitRPS   float64       `env:"AUTH_RATE_LIMIT_RPS" env-default:"1"`
	AuthRateLimitBurst int           `env:"AUTH_RATE_LIMIT_BURST" env-default:"5"`
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine: production sets variables directly.
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("config.Load: JWT_SECRET is required")
	}
	return &cfg, nil
}

func (c *Config) BillingEnabled() bool {
	return c.Stripe.SecretKey != ""
}

func (c *Config) String() string {
	return fmt.Sprintf("env=%s port=%s db=%s billing=%t mail=%t docx_full=%t",
		c.Env, c.Port, c.Mongo.DBName, c.BillingEnabled(), c.Mail.ResendAPIKey != "", c.DocxFullContent)
}
