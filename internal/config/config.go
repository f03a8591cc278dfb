package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Snowflake SnowflakeConfig `yaml:"snowflake" envPrefix:"SNOWFLAKE_"`
	Storage   StorageConfig   `yaml:"storage" envPrefix:"STORAGE_"`
	Redis     RedisConfig     `yaml:"redis" envPrefix:"REDIS_"`
	Locks     LockConfig      `yaml:"locks" envPrefix:"LOCKS_"`
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`
	Messaging MessagingConfig `yaml:"messaging" envPrefix:"MESSAGING_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port" env:"PORT"`
	Host           string   `yaml:"host" env:"HOST"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	Version        string   `yaml:"version" env:"VERSION"`
}

// Addr returns host:port for http.Server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/Cloud Run, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("K_SERVICE") != "" {
		return "0.0.0.0"
	}
	return c.Host
}

// SnowflakeConfig holds the warehouse connection used by the eligibility queries.
type SnowflakeConfig struct {
	ConnectionString    string `yaml:"connection_string" env:"CONNECTION_STRING"`
	Account             string `yaml:"account" env:"ACCOUNT"`
	User                string `yaml:"user" env:"USER"`
	Password            string `yaml:"password" env:"PASSWORD"`
	Warehouse           string `yaml:"warehouse" env:"WAREHOUSE"`
	Role                string `yaml:"role" env:"ROLE"`
	Schema              string `yaml:"schema" env:"SCHEMA"`
	QueryTimeoutSeconds int    `yaml:"query_timeout_seconds" env:"QUERY_TIMEOUT_SECONDS"`
	MaxOpenConns        int    `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
}

// QueryTimeout is the per-query execution deadline.
func (c SnowflakeConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// StorageConfig holds the document store and report archive settings.
type StorageConfig struct {
	DynamoDBTable string `yaml:"dynamodb_table" env:"DYNAMODB_TABLE"`
	AWSRegion     string `yaml:"aws_region" env:"AWS_REGION"`
	AWSProfile    string `yaml:"aws_profile" env:"AWS_PROFILE"` // Empty string uses default credential chain
	AWSAccessKey  string `yaml:"aws_access_key_id" env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `yaml:"aws_secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `yaml:"aws_endpoint" env:"AWS_ENDPOINT"` // Local DynamoDB/S3/SQS emulators
	ReportBucket  string `yaml:"report_bucket" env:"REPORT_BUCKET"`
	ReportPrefix  string `yaml:"report_prefix" env:"REPORT_PREFIX"`
}

// GetAWSProfile returns the profile to use, ignoring it inside ECS where the
// task role is authoritative.
func (c StorageConfig) GetAWSProfile() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.AWSProfile
}

// RedisConfig enables Redis-backed stage locks.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

// Enabled reports whether a Redis address is configured.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// LockConfig tunes the per-campaign stage critical section.
type LockConfig struct {
	PostgresURL string `yaml:"postgres_url" env:"POSTGRES_URL"`
	TTLSeconds  int    `yaml:"ttl_seconds" env:"TTL_SECONDS"`
	WaitSeconds int    `yaml:"wait_seconds" env:"WAIT_SECONDS"`
}

// TTL is how long a stage lock survives a crashed holder.
func (c LockConfig) TTL() time.Duration { return time.Duration(c.TTLSeconds) * time.Second }

// Wait bounds how long a stage waits for a competing stage to finish.
func (c LockConfig) Wait() time.Duration { return time.Duration(c.WaitSeconds) * time.Second }

// SchedulerConfig controls the hourly fleet run.
type SchedulerConfig struct {
	Enabled              bool `yaml:"enabled" env:"ENABLED"`
	IntervalMinutes      int  `yaml:"interval_minutes" env:"INTERVAL_MINUTES"`
	MaxConcurrentTenants int  `yaml:"max_concurrent_tenants" env:"MAX_CONCURRENT_TENANTS"`
	TenantTimeoutSeconds int  `yaml:"tenant_timeout_seconds" env:"TENANT_TIMEOUT_SECONDS"`
}

// Interval returns the tick period.
func (c SchedulerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// TenantTimeout is the outer deadline for one tenant's four campaigns.
func (c SchedulerConfig) TenantTimeout() time.Duration {
	return time.Duration(c.TenantTimeoutSeconds) * time.Second
}

// MessagingConfig holds the queues shared with the messaging pipeline.
type MessagingConfig struct {
	StagedQueueURL string `yaml:"staged_queue_url" env:"STAGED_QUEUE_URL"`
	EventsQueueURL string `yaml:"events_queue_url" env:"EVENTS_QUEUE_URL"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level   string `yaml:"level" env:"LEVEL"`
	Format  string `yaml:"format" env:"FORMAT"`
	ShowPII bool   `yaml:"show_pii" env:"SHOW_PII"`
}

// Redact reports whether PII redaction is on. It is unless show_pii is set.
func (c LoggingConfig) Redact() bool { return !c.ShowPII }

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "dev"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Snowflake.Schema == "" {
		cfg.Snowflake.Schema = "PUBLIC"
	}
	if cfg.Snowflake.QueryTimeoutSeconds == 0 {
		cfg.Snowflake.QueryTimeoutSeconds = 60
	}
	if cfg.Snowflake.MaxOpenConns == 0 {
		cfg.Snowflake.MaxOpenConns = 8
	}
	if cfg.Storage.DynamoDBTable == "" {
		cfg.Storage.DynamoDBTable = "campaign-targeting"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "sa-east-1"
	}
	if cfg.Storage.ReportPrefix == "" {
		cfg.Storage.ReportPrefix = "campaign-runs"
	}
	if cfg.Locks.TTLSeconds == 0 {
		cfg.Locks.TTLSeconds = 300
	}
	if cfg.Locks.WaitSeconds == 0 {
		cfg.Locks.WaitSeconds = 30
	}
	if cfg.Scheduler.IntervalMinutes == 0 {
		cfg.Scheduler.IntervalMinutes = 60
	}
	if cfg.Scheduler.MaxConcurrentTenants == 0 {
		cfg.Scheduler.MaxConcurrentTenants = 4
	}
	if cfg.Scheduler.TenantTimeoutSeconds == 0 {
		cfg.Scheduler.TenantTimeoutSeconds = 540
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Only variables that are set replace file values.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if c.Snowflake.ConnectionString == "" && (c.Snowflake.Account == "" || c.Snowflake.User == "") {
		return fmt.Errorf("snowflake: connection_string or account+user is required")
	}
	if c.Storage.DynamoDBTable == "" {
		return fmt.Errorf("storage: dynamodb_table is required")
	}
	if c.Scheduler.MaxConcurrentTenants < 1 {
		return fmt.Errorf("scheduler: max_concurrent_tenants must be positive")
	}
	return nil
}
