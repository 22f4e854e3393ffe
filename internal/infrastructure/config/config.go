package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	HTTP     HTTPConfig
	Sync     SyncConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
	// PublicURL is the externally reachable base URL used when registering
	// webhook callbacks with marketplace platforms
	PublicURL string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
}

// SyncConfig holds sync engine configuration
type SyncConfig struct {
	// MaxConcurrentSyncs bounds how many rule executions may be in flight
	MaxConcurrentSyncs int
	// RetryFailedSync enables re-enqueueing failed runs
	RetryFailedSync bool
	// MaxRetryAttempts bounds retries per run
	MaxRetryAttempts int
	// RetryDelay is how long a failed run waits before re-enqueue
	RetryDelay time.Duration
	// ProductSyncInterval is the period between product catalog passes
	ProductSyncInterval time.Duration
	// InventorySyncInterval is the period between inventory passes
	InventorySyncInterval time.Duration
	// OrderSyncInterval is the period between order passes
	OrderSyncInterval time.Duration
	// InterRuleDelay is the pause between consecutive rules in one pass
	InterRuleDelay time.Duration
	// RequestsPerSecond paces outbound marketplace calls
	RequestsPerSecond float64
	// LogRetentionDays is the age past which sync logs are purged
	LogRetentionDays int
	// RetentionSweepHour is the local hour of the daily retention sweep
	RetentionSweepHour int
	// WebhookSecret is the fallback shared secret for webhook signatures
	// when a store has no per-store secret configured
	WebhookSecret string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with STORESYNC_ prefix (e.g., STORESYNC_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("STORESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:      v.GetString("app.name"),
			Env:       v.GetString("app.env"),
			Port:      v.GetString("app.port"),
			PublicURL: v.GetString("app.public_url"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
		},
		Sync: SyncConfig{
			MaxConcurrentSyncs:    v.GetInt("sync.max_concurrent_syncs"),
			RetryFailedSync:       v.GetBool("sync.retry_failed_sync"),
			MaxRetryAttempts:      v.GetInt("sync.max_retry_attempts"),
			RetryDelay:            v.GetDuration("sync.retry_delay"),
			ProductSyncInterval:   v.GetDuration("sync.product_sync_interval"),
			InventorySyncInterval: v.GetDuration("sync.inventory_sync_interval"),
			OrderSyncInterval:     v.GetDuration("sync.order_sync_interval"),
			InterRuleDelay:        v.GetDuration("sync.inter_rule_delay"),
			RequestsPerSecond:     v.GetFloat64("sync.requests_per_second"),
			LogRetentionDays:      v.GetInt("sync.log_retention_days"),
			RetentionSweepHour:    v.GetInt("sync.retention_sweep_hour"),
			WebhookSecret:         v.GetString("sync.webhook_secret"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storesync-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storesync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 10
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	if cfg.Sync.MaxConcurrentSyncs == 0 {
		cfg.Sync.MaxConcurrentSyncs = 3
	}
	if cfg.Sync.MaxRetryAttempts == 0 {
		cfg.Sync.MaxRetryAttempts = 3
	}
	if cfg.Sync.RetryDelay == 0 {
		cfg.Sync.RetryDelay = time.Minute
	}
	if cfg.Sync.ProductSyncInterval == 0 {
		cfg.Sync.ProductSyncInterval = time.Hour
	}
	if cfg.Sync.InventorySyncInterval == 0 {
		cfg.Sync.InventorySyncInterval = 15 * time.Minute
	}
	if cfg.Sync.OrderSyncInterval == 0 {
		cfg.Sync.OrderSyncInterval = 30 * time.Minute
	}
	if cfg.Sync.InterRuleDelay == 0 {
		cfg.Sync.InterRuleDelay = 5 * time.Second
	}
	if cfg.Sync.RequestsPerSecond == 0 {
		cfg.Sync.RequestsPerSecond = 2
	}
	if cfg.Sync.LogRetentionDays == 0 {
		cfg.Sync.LogRetentionDays = 30
	}
	if cfg.Sync.RetentionSweepHour == 0 {
		cfg.Sync.RetentionSweepHour = 3
	}
}

// validate checks configuration consistency
func (c *Config) validate() error {
	if c.Sync.MaxConcurrentSyncs < 1 {
		return fmt.Errorf("sync.max_concurrent_syncs must be at least 1")
	}
	if c.Sync.MaxRetryAttempts < 0 {
		return fmt.Errorf("sync.max_retry_attempts must not be negative")
	}
	if c.Sync.LogRetentionDays < 1 {
		return fmt.Errorf("sync.log_retention_days must be at least 1")
	}
	if c.Sync.RetentionSweepHour < 0 || c.Sync.RetentionSweepHour > 23 {
		return fmt.Errorf("sync.retention_sweep_hour must be between 0 and 23")
	}
	if c.Sync.RequestsPerSecond <= 0 {
		return fmt.Errorf("sync.requests_per_second must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the Redis address in host:port form
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
