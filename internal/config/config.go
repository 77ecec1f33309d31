package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config captures runtime configuration for the storefront services.
type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
	Auth      AuthConfig
	Payment   PaymentConfig
}

type HTTPConfig struct {
	Port          int    `env:"API_HTTP_PORT" env-default:"8080"`
	MetricsPath   string `env:"API_METRICS_PATH" env-default:"/metrics"`
	ShutdownGrace int    `env:"API_SHUTDOWN_GRACE_SECONDS" env-default:"15"`
	CORSOrigin    string `env:"FRONTEND_URL" env-default:"http://localhost:5173"`
}

type DatabaseConfig struct {
	// Driver selects the repository implementation: "postgres" or "memory".
	Driver         string `env:"STORE_DRIVER" env-default:"postgres"`
	URL            string `env:"DATABASE_URL"`
	Host           string `env:"DB_HOST" env-default:"localhost"`
	Port           string `env:"DB_PORT" env-default:"5432"`
	User           string `env:"DB_USER" env-default:"postgres"`
	Password       string `env:"DB_PASSWORD" env-default:"postgres"`
	Name           string `env:"DB_NAME" env-default:"storefront"`
	SSLMode        string `env:"DB_SSLMODE" env-default:"disable"`
	MaxConns       string `env:"DB_MAX_CONNS" env-default:"25"`
	MinConns       string `env:"DB_MIN_CONNS" env-default:"5"`
	MaxLifetime    string `env:"DB_MAX_CONN_LIFETIME" env-default:"5m"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE" env-default:"true"`
	MigrationsPath string `env:"MIGRATIONS_PATH" env-default:"migrations"`
}

type EventsConfig struct {
	// AMQPURL enables the RabbitMQ publisher when set; otherwise events are only logged.
	AMQPURL  string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" env-default:"storefront.orders"`
}

type TelemetryConfig struct {
	LogLevel      string  `env:"LOG_LEVEL" env-default:"info"`
	OTelEndpoint  string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTracing bool    `env:"OTEL_ENABLE_TRACING" env-default:"true"`
	EnableMetrics bool    `env:"OTEL_ENABLE_METRICS" env-default:"true"`
	SampleRate    float64 `env:"OTEL_SAMPLE_RATE" env-default:"1.0"`
}

type ServiceConfig struct {
	Name        string `env:"API_SERVICE_NAME" env-default:"storefront-api"`
	Version     string `env:"SERVICE_VERSION" env-default:"0.1.0"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
}

type AuthConfig struct {
	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"JWT_TTL" env-default:"72h"`
	CookieSecure bool          `env:"AUTH_COOKIE_SECURE" env-default:"false"`
	BcryptCost   int           `env:"BCRYPT_COST" env-default:"10"`
	// The bootstrap admin is created or promoted at startup when AdminEmail is set.
	AdminName     string `env:"ADMIN_NAME" env-default:"Administrator"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

type PaymentConfig struct {
	// Gateway selects the payment gateway adapter: "http" or "sandbox".
	Gateway       string        `env:"PAYMENT_GATEWAY" env-default:"sandbox"`
	BaseURL       string        `env:"PAYMENT_BASE_URL" env-default:"https://api.razorpay.com"`
	KeyID         string        `env:"PAYMENT_KEY_ID"`
	KeySecret     string        `env:"PAYMENT_KEY_SECRET"`
	WebhookSecret string        `env:"PAYMENT_WEBHOOK_SECRET"`
	Currency      string        `env:"PAYMENT_CURRENCY" env-default:"INR"`
	Timeout       time.Duration `env:"PAYMENT_TIMEOUT" env-default:"10s"`
	// ReconcileAfter is how long an order may stay without a gateway intent before the reconciler inspects it.
	ReconcileAfter time.Duration `env:"PAYMENT_RECONCILE_AFTER" env-default:"15m"`
}

var (
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrMissingSigningSecret = errors.New("PAYMENT_WEBHOOK_SECRET is required")
	ErrUnknownStoreDriver   = errors.New("STORE_DRIVER must be postgres or memory")
	ErrUnknownGateway       = errors.New("PAYMENT_GATEWAY must be http or sandbox")
)

// Load reads configuration from environment variables, applying defaults when needed.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = cfg.Database.buildURL()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDatabase reads only the database settings. Tools that touch the
// schema use it so they do not need the service secrets.
func LoadDatabase() (DatabaseConfig, error) {
	var cfg DatabaseConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.URL == "" {
		cfg.URL = cfg.buildURL()
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env tags cannot express.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Payment.WebhookSecret == "" {
		return ErrMissingSigningSecret
	}
	if c.Auth.AdminEmail != "" && c.Auth.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}

	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownStoreDriver, c.Database.Driver)
	}

	switch c.Payment.Gateway {
	case "http":
		if c.Payment.KeyID == "" || c.Payment.KeySecret == "" {
			return errors.New("PAYMENT_KEY_ID and PAYMENT_KEY_SECRET are required for the http gateway")
		}
	case "sandbox":
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownGateway, c.Payment.Gateway)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("invalid OTEL_SAMPLE_RATE: %v", c.Telemetry.SampleRate)
	}

	return nil
}

// IsLocal reports whether the service runs on a developer machine.
func (c *Config) IsLocal() bool {
	return c.Service.Environment == "local"
}

// String renders the configuration with secrets redacted, safe for logging.
func (c Config) String() string {
	return fmt.Sprintf(
		"service=%s/%s env=%s http_port=%d store=%s gateway=%s currency=%s amqp=%t tracing=%t metrics=%t",
		c.Service.Name, c.Service.Version, c.Service.Environment,
		c.HTTP.Port, c.Database.Driver, c.Payment.Gateway, c.Payment.Currency,
		c.Events.AMQPURL != "", c.Telemetry.EnableTracing, c.Telemetry.EnableMetrics,
	)
}

func (d DatabaseConfig) buildURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&pool_max_conns=%s&pool_min_conns=%s&pool_max_conn_lifetime=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode, d.MaxConns, d.MinConns, d.MaxLifetime,
	)
}
