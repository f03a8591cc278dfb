package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 9090
  host: "0.0.0.0"

snowflake:
  account: "acme-xy12345"
  user: "targeting"
  password: "secret"
  warehouse: "CAMPAIGNS_WH"
  query_timeout_seconds: 45

storage:
  dynamodb_table: "targets"
  aws_region: "us-east-1"
  report_bucket: "run-reports"

scheduler:
  enabled: true
  max_concurrent_tenants: 8

messaging:
  staged_queue_url: "https://sqs.us-east-1.amazonaws.com/1/staged"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "acme-xy12345", cfg.Snowflake.Account)
	assert.Equal(t, "CAMPAIGNS_WH", cfg.Snowflake.Warehouse)
	assert.Equal(t, 45*time.Second, cfg.Snowflake.QueryTimeout())
	assert.Equal(t, "targets", cfg.Storage.DynamoDBTable)
	assert.Equal(t, "run-reports", cfg.Storage.ReportBucket)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrentTenants)
	assert.Equal(t, "https://sqs.us-east-1.amazonaws.com/1/staged", cfg.Messaging.StagedQueueURL)
}

func TestLoadDefaults(t *testing.T) {
	configPath := writeConfig(t, `
snowflake:
  connection_string: "ACCOUNT=x;USER=y;PASSWORD=z"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 60*time.Second, cfg.Snowflake.QueryTimeout())
	assert.Equal(t, "PUBLIC", cfg.Snowflake.Schema)
	assert.Equal(t, "campaign-targeting", cfg.Storage.DynamoDBTable)
	assert.Equal(t, "sa-east-1", cfg.Storage.AWSRegion)
	assert.Equal(t, time.Hour, cfg.Scheduler.Interval())
	assert.Equal(t, 9*time.Minute, cfg.Scheduler.TenantTimeout())
	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrentTenants)
	assert.Equal(t, 30*time.Second, cfg.Locks.Wait())
	assert.Equal(t, 5*time.Minute, cfg.Locks.TTL())
	assert.True(t, cfg.Logging.Redact())
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoadFromEnv(t *testing.T) {
	configPath := writeConfig(t, `
snowflake:
  account: "file-account"
  user: "file-user"
redis:
  addr: "file:6379"
`)

	t.Setenv("SNOWFLAKE_ACCOUNT", "env-account")
	t.Setenv("STORAGE_DYNAMODB_TABLE", "env-table")
	t.Setenv("SCHEDULER_MAX_CONCURRENT_TENANTS", "2")
	t.Setenv("LOG_SHOW_PII", "true")

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "env-account", cfg.Snowflake.Account)
	assert.Equal(t, "env-table", cfg.Storage.DynamoDBTable)
	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentTenants)
	assert.False(t, cfg.Logging.Redact())

	// Unset variables keep file values
	assert.Equal(t, "file-user", cfg.Snowflake.User)
	assert.Equal(t, "file:6379", cfg.Redis.Addr)
}

func TestLoadFromEnvRequiresWarehouse(t *testing.T) {
	configPath := writeConfig(t, `
server:
  port: 8081
`)
	_, err := LoadFromEnv(configPath)
	assert.Error(t, err)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestServerAddr(t *testing.T) {
	cfg := ServerConfig{Host: "127.0.0.1", Port: 8088}
	assert.Equal(t, "127.0.0.1:8088", cfg.Addr())
}
