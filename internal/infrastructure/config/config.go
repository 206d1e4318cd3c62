package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App            AppConfig
	Database       DatabaseConfig
	Redis          RedisConfig
	Log            LogConfig
	Queue          QueueConfig
	Breaker        BreakerConfig
	AgentHealth    AgentHealthConfig
	Reconciliation ReconciliationConfig
	HTTP           HTTPConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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

// RedisConfig holds Redis connection settings for the idempotency cache
type RedisConfig struct {
	Enabled  bool
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

// QueueConfig holds queue processor configuration
type QueueConfig struct {
	Workers          int
	BatchSize        int
	PollInterval     time.Duration
	MaxAttempts      int
	BackoffBase      time.Duration
	CleanupEnabled   bool
	CleanupRetention time.Duration
	CleanupInterval  time.Duration
}

// BreakerConfig holds circuit breaker thresholds
type BreakerConfig struct {
	MinVolume    uint32
	ErrorPercent float64
	Window       time.Duration
	ResetTimeout time.Duration
}

// AgentHealthConfig holds the agent health sweep configuration
type AgentHealthConfig struct {
	SweepEnabled  bool
	SweepInterval time.Duration
}

// ReconciliationConfig holds reconciliation log retention configuration
type ReconciliationConfig struct {
	PruneEnabled  bool
	PruneInterval time.Duration
	Retention     time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AgentTimeout time.Duration // per-call timeout for outbound vendor agent requests
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g. SYNC_DATABASE_PASSWORD)
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

	v.SetEnvPrefix("SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
			Enabled:  v.GetBool("redis.enabled"),
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
		Queue: QueueConfig{
			Workers:          v.GetInt("queue.workers"),
			BatchSize:        v.GetInt("queue.batch_size"),
			PollInterval:     v.GetDuration("queue.poll_interval"),
			MaxAttempts:      v.GetInt("queue.max_attempts"),
			BackoffBase:      v.GetDuration("queue.backoff_base"),
			CleanupEnabled:   v.GetBool("queue.cleanup_enabled"),
			CleanupRetention: v.GetDuration("queue.cleanup_retention"),
			CleanupInterval:  v.GetDuration("queue.cleanup_interval"),
		},
		Breaker: BreakerConfig{
			MinVolume:    v.GetUint32("breaker.min_volume"),
			ErrorPercent: v.GetFloat64("breaker.error_percent"),
			Window:       v.GetDuration("breaker.window"),
			ResetTimeout: v.GetDuration("breaker.reset_timeout"),
		},
		AgentHealth: AgentHealthConfig{
			SweepEnabled:  v.GetBool("agent_health.sweep_enabled"),
			SweepInterval: v.GetDuration("agent_health.sweep_interval"),
		},
		Reconciliation: ReconciliationConfig{
			PruneEnabled:  v.GetBool("reconciliation.prune_enabled"),
			PruneInterval: v.GetDuration("reconciliation.prune_interval"),
			Retention:     v.GetDuration("reconciliation.retention"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			AgentTimeout: v.GetDuration("http.agent_timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers built-in defaults
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "syncengine")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "syncengine")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.conn_max_idle_time", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.batch_size", 50)
	v.SetDefault("queue.poll_interval", 5*time.Second)
	v.SetDefault("queue.max_attempts", 5)
	v.SetDefault("queue.backoff_base", 60*time.Second)
	v.SetDefault("queue.cleanup_enabled", true)
	v.SetDefault("queue.cleanup_retention", 24*time.Hour)
	v.SetDefault("queue.cleanup_interval", time.Hour)

	v.SetDefault("breaker.min_volume", 10)
	v.SetDefault("breaker.error_percent", 50.0)
	v.SetDefault("breaker.window", 60*time.Second)
	v.SetDefault("breaker.reset_timeout", 30*time.Second)

	v.SetDefault("agent_health.sweep_enabled", true)
	v.SetDefault("agent_health.sweep_interval", 30*time.Second)

	v.SetDefault("reconciliation.prune_enabled", true)
	v.SetDefault("reconciliation.prune_interval", 6*time.Hour)
	v.SetDefault("reconciliation.retention", 90*24*time.Hour)

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.agent_timeout", 30*time.Second)
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Breaker.ErrorPercent < 0 || c.Breaker.ErrorPercent > 100 {
		return fmt.Errorf("breaker.error_percent must be within [0,100], got %v", c.Breaker.ErrorPercent)
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive, got %d", c.Queue.MaxAttempts)
	}
	return nil
}

// DSN returns the postgres connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the host:port address for Redis
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
