// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles;
// .env.local and .env are read first when present and never override the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// MinSessionSecretLength is the shortest accepted SESSION_SECRET.
const MinSessionSecretLength = 32

// dotenvFiles are loaded in order; earlier files win.
var dotenvFiles = []string{".env.local", ".env"}

// MailConfig configures the outbound mail relay.
type MailConfig struct {
	ResendAPIKey  string `env:"RESEND_API_KEY"`
	ResendBaseURL string `env:"RESEND_BASE_URL" envDefault:"https://api.resend.com"`
	// From is the sender shown on every relayed mail.
	From string `env:"EMAIL_FROM" envDefault:"Client Portal <onboarding@resend.dev>"`
	// To is the fixed operator mailbox; comma-separated.
	To        []string `env:"EMAIL_TO" envSeparator:"," envDefault:"hello@twopelicans.ai"`
	PortalURL string   `env:"PORTAL_URL" envDefault:"http://localhost:3000"`
}

// EventsConfig configures the domain event publisher. An empty URL disables it.
type EventsConfig struct {
	AMQPURL  string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"portal.events"`
}

// ProvisionConfig tunes the provisioning workflow.
type ProvisionConfig struct {
	LoginProbe bool          `env:"PROVISION_LOGIN_PROBE" envDefault:"true"`
	Timeout    time.Duration `env:"PROVISION_TIMEOUT" envDefault:"30s"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Config holds the API server configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET,required"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	Log LogConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	Mail      MailConfig
	Events    EventsConfig
	Provision ProvisionConfig

	// Rate limiting of the unauthenticated login and contact routes
	RateLimitEnabled    bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitLoginRPS   int  `env:"RATE_LIMIT_LOGIN_RPS" envDefault:"1"`
	RateLimitLoginBurst int  `env:"RATE_LIMIT_LOGIN_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://portal.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// AdminConfig holds what the portaladmin CLI needs. Redis is optional;
// without it the login probe is skipped.
type AdminConfig struct {
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RedisURL      string `env:"REDIS_URL"`
	SessionSecret string `env:"SESSION_SECRET"`

	Log       LogConfig
	Mail      MailConfig
	Events    EventsConfig
	Provision ProvisionConfig
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks constraints env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.SessionSecret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d bytes", MinSessionSecretLength))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.RateLimitEnabled && (c.RateLimitLoginRPS <= 0 || c.RateLimitLoginBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_LOGIN_RPS and RATE_LIMIT_LOGIN_BURST must be positive"))
	}
	if len(c.Mail.To) == 0 {
		errs = append(errs, errors.New("EMAIL_TO must name at least one recipient"))
	}
	return errors.Join(errs...)
}

// Load parses environment variables and returns a Config.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	loadDotenv()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadAdmin parses the CLI configuration.
func LoadAdmin() (*AdminConfig, error) {
	loadDotenv()

	cfg := &AdminConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func loadDotenv() {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}
