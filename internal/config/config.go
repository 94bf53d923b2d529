package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Chain     ChainConfig     `yaml:"chain"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	JWT       JWTConfig       `yaml:"jwt"`
	Fees      FeesConfig      `yaml:"fees"`
	Escrow    EscrowConfig    `yaml:"escrow"`
	Log       LogConfig       `yaml:"log"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// ChainConfig contains settlement chain gateway settings
type ChainConfig struct {
	GatewayURL       string `yaml:"gateway_url"`
	APIKey           string `yaml:"api_key"`
	ReserveAddress   string `yaml:"reserve_address"`
	TimeoutSeconds   int    `yaml:"timeout_seconds"`
	MaxAttempts      int    `yaml:"max_attempts"`
	BackoffBaseSecs  int    `yaml:"backoff_base_seconds"`
	SubmitBatchSize  int    `yaml:"submit_batch_size"`
	ReceiptBatchSize int    `yaml:"receipt_batch_size"`
	Mock             bool   `yaml:"mock"`
}

// AlertsConfig contains operator alert settings (SendGrid)
type AlertsConfig struct {
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	OpsEmail       string `yaml:"ops_email"`
	WebhookURL     string `yaml:"webhook_url"`
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// FeesConfig contains transaction fee settings. Fees are basis points of the
// principal, charged on top of it.
type FeesConfig struct {
	TransferBps int   `yaml:"transfer_bps"`
	OfframpBps  int   `yaml:"offramp_bps"`
	UtilityBps  int   `yaml:"utility_bps"`
	MinFeeUSDC  int64 `yaml:"min_fee_usdc"`
}

// EscrowConfig contains escrow payment settings
type EscrowConfig struct {
	ExpiryDays       int `yaml:"expiry_days"`
	CancellableHours int `yaml:"cancellable_hours"`
	SweepBatchSize   int `yaml:"sweep_batch_size"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	SweepExpiredEscrows  string `yaml:"sweep_expired_escrows"`
	SubmitSettlements    string `yaml:"submit_settlements"`
	PollReceipts         string `yaml:"poll_receipts"`
	PurgeIdempotencyKeys string `yaml:"purge_idempotency_keys"`
}

// IdempotencyRetentionHours is how long idempotency records are kept before
// the purge job drops them.
const IdempotencyRetentionHours = 24

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Chain
	if val := os.Getenv("CHAIN_GATEWAY_URL"); val != "" {
		c.Chain.GatewayURL = val
	}
	if val := os.Getenv("CHAIN_API_KEY"); val != "" {
		c.Chain.APIKey = val
	}
	if val := os.Getenv("CHAIN_RESERVE_ADDRESS"); val != "" {
		c.Chain.ReserveAddress = val
	}

	// Alerts
	if val := os.Getenv("SENDGRID_API_KEY"); val != "" {
		c.Alerts.SendGridAPIKey = val
	}
	if val := os.Getenv("OPS_EMAIL"); val != "" {
		c.Alerts.OpsEmail = val
	}
	if val := os.Getenv("ALERT_WEBHOOK_URL"); val != "" {
		c.Alerts.WebhookURL = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	// Set defaults for log if not configured
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Database validation
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	// Chain validation
	if !c.Chain.Mock && c.Chain.GatewayURL == "" {
		return fmt.Errorf("chain gateway URL is required")
	}
	if !c.Chain.Mock && c.Chain.ReserveAddress == "" {
		return fmt.Errorf("chain reserve address is required")
	}
	if c.Chain.TimeoutSeconds == 0 {
		c.Chain.TimeoutSeconds = 15
	}
	if c.Chain.MaxAttempts == 0 {
		c.Chain.MaxAttempts = 5
	}
	if c.Chain.BackoffBaseSecs == 0 {
		c.Chain.BackoffBaseSecs = 30
	}
	if c.Chain.SubmitBatchSize == 0 {
		c.Chain.SubmitBatchSize = 100
	}
	if c.Chain.ReceiptBatchSize == 0 {
		c.Chain.ReceiptBatchSize = 200
	}

	// JWT validation
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	// Fee defaults
	if c.Fees.TransferBps == 0 {
		c.Fees.TransferBps = 50 // 0.5%
	}
	if c.Fees.OfframpBps == 0 {
		c.Fees.OfframpBps = 100 // 1%
	}

	// Escrow defaults
	if c.Escrow.ExpiryDays == 0 {
		c.Escrow.ExpiryDays = 3
	}
	if c.Escrow.CancellableHours == 0 {
		c.Escrow.CancellableHours = 24
	}
	if c.Escrow.SweepBatchSize == 0 {
		c.Escrow.SweepBatchSize = 200
	}

	// Scheduler defaults
	if c.Scheduler.SweepExpiredEscrows == "" {
		c.Scheduler.SweepExpiredEscrows = "0 */5 * * * *" // Every 5 minutes
	}
	if c.Scheduler.SubmitSettlements == "" {
		c.Scheduler.SubmitSettlements = "0 * * * * *" // Every minute
	}
	if c.Scheduler.PollReceipts == "" {
		c.Scheduler.PollReceipts = "30 * * * * *" // Every minute, offset 30s
	}
	if c.Scheduler.PurgeIdempotencyKeys == "" {
		c.Scheduler.PurgeIdempotencyKeys = "0 0 4 * * *" // 4 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
