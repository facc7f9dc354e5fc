// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvironmentDevelopment = "development"
	EnvironmentProduction  = "production"

	PaymentsSandbox    = "sandbox"
	PaymentsProduction = "production"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type PaymentsConfig struct {
	Environment         string `yaml:"environment"` // sandbox or production
	Currency            string `yaml:"currency"`
	StatementDescriptor string `yaml:"statement_descriptor"`
	WebhookToleranceSec int    `yaml:"webhook_tolerance_seconds"`
	SubmitMaxPerHour    int    `yaml:"submit_max_per_hour"`
	SubmitMaxIPPerHour  int    `yaml:"submit_max_ip_per_hour"`

	StripeSecretKey     string `yaml:"-"` // Loaded from environment
	StripeWebhookSecret string `yaml:"-"` // Loaded from environment
	PeerWebhookSecret   string `yaml:"-"` // Loaded from environment
}

type AuthConfig struct {
	Issuer string `yaml:"issuer"`

	JWTSecret     string `yaml:"-"` // Loaded from environment
	OpsAPIKeyHash string `yaml:"-"` // Loaded from environment
}

type EmailConfig struct {
	Region string `yaml:"region"`
	Sender string `yaml:"sender"`

	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

type JobsConfig struct {
	ReconciliationCron    string `yaml:"reconciliation_cron"`
	FulfillmentRetryCron  string `yaml:"fulfillment_retry_cron"`
	LedgerCleanupCron     string `yaml:"ledger_cleanup_cron"`
	StalePaymentMinutes   int    `yaml:"stale_payment_minutes"`
	StaleOutcomeMinutes   int    `yaml:"stale_outcome_minutes"`
	MaxFulfillmentRetries int    `yaml:"max_fulfillment_retries"`
	LedgerRetentionDays   int    `yaml:"ledger_retention_days"`
}

type Config struct {
	App struct {
		Name                   string `yaml:"name"`
		Environment            string `yaml:"environment"`
		Port                   int    `yaml:"port"`
		TrustProxy             bool   `yaml:"trust_proxy"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Payments PaymentsConfig `yaml:"payments"`
	Auth     AuthConfig     `yaml:"auth"`
	Email    EmailConfig    `yaml:"email"`
	Jobs     JobsConfig     `yaml:"jobs"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	// Load sensitive values from environment
	cfg.Payments.StripeSecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Payments.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.Payments.PeerWebhookSecret = os.Getenv("PEER_WEBHOOK_SECRET")
	cfg.Auth.JWTSecret = os.Getenv("AUTH_JWT_SECRET")
	cfg.Auth.OpsAPIKeyHash = os.Getenv("OPS_API_KEY_HASH")
	cfg.Email.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and fills defaults. It does not read the
// environment or validate secrets.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = EnvironmentDevelopment
	}
	if c.App.ShutdownTimeoutSeconds <= 0 {
		c.App.ShutdownTimeoutSeconds = 30
	}
	if c.Payments.Environment == "" {
		c.Payments.Environment = PaymentsSandbox
	}
	if c.Payments.Currency == "" {
		c.Payments.Currency = "USD"
	}
	c.Payments.Currency = strings.ToUpper(c.Payments.Currency)
	if c.Payments.WebhookToleranceSec <= 0 {
		c.Payments.WebhookToleranceSec = 300
	}
	if c.Payments.SubmitMaxPerHour <= 0 {
		c.Payments.SubmitMaxPerHour = 10
	}
	if c.Payments.SubmitMaxIPPerHour <= 0 {
		c.Payments.SubmitMaxIPPerHour = 30
	}
	if c.Jobs.ReconciliationCron == "" {
		c.Jobs.ReconciliationCron = "*/10 * * * *"
	}
	if c.Jobs.FulfillmentRetryCron == "" {
		c.Jobs.FulfillmentRetryCron = "*/5 * * * *"
	}
	if c.Jobs.LedgerCleanupCron == "" {
		c.Jobs.LedgerCleanupCron = "0 3 * * *"
	}
	if c.Jobs.StalePaymentMinutes <= 0 {
		c.Jobs.StalePaymentMinutes = 15
	}
	if c.Jobs.StaleOutcomeMinutes <= 0 {
		c.Jobs.StaleOutcomeMinutes = 10
	}
	if c.Jobs.MaxFulfillmentRetries <= 0 {
		c.Jobs.MaxFulfillmentRetries = 5
	}
	if c.Jobs.LedgerRetentionDays <= 0 {
		c.Jobs.LedgerRetentionDays = 30
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	switch c.Payments.Environment {
	case PaymentsSandbox, PaymentsProduction:
	default:
		return fmt.Errorf("unsupported payments environment: %s", c.Payments.Environment)
	}
	if len(c.Payments.Currency) != 3 {
		return fmt.Errorf("payments currency must be an ISO 4217 code")
	}

	if c.IsProduction() {
		if c.Payments.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.Payments.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
		if c.Payments.PeerWebhookSecret == "" {
			return fmt.Errorf("PEER_WEBHOOK_SECRET is required in production")
		}
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required in production")
		}
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == EnvironmentProduction
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.App.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) WebhookTolerance() time.Duration {
	return time.Duration(c.Payments.WebhookToleranceSec) * time.Second
}
