package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/platinummonkey/subledger/pkg/observability"
	"github.com/platinummonkey/subledger/pkg/storage"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name
const EnvPrefix = "SUBLEDGER"

// ConfigFileEnv names the variable pointing at an optional YAML config file
const ConfigFileEnv = "SUBLEDGER_CONFIG"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Storage       storage.Config
	Billing       BillingConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// BillingConfig bounds simulation requests
type BillingConfig struct {
	DefaultMaxSubscriptions int
	DefaultMaxPeriods       int
	MaxSubscriptionsLimit   int
	MaxPeriodsLimit         int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
	OTelSampleRatio    float64
}

// OTel returns the tracing settings in the shape InitOTel expects
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from defaults, the optional YAML file named
// by SUBLEDGER_CONFIG, and SUBLEDGER_* environment variables, in that order.
func LoadConfig() (*Config, error) {
	v := newViper()
	if path := os.Getenv(ConfigFileEnv); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return LoadConfigFrom(v)
}

// LoadConfigFrom builds a Config from an already populated viper instance
func LoadConfigFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			HealthPort:      v.GetString("server.health_port"),
		},
		Storage: storage.Config{
			PostgresURL:         v.GetString("postgres.url"),
			PostgresReplicaURLs: v.GetString("postgres.replica_urls"),
			PostgresMaxConns:    v.GetInt("postgres.max_conns"),
			PostgresMinConns:    v.GetInt("postgres.min_conns"),
			PostgresTimeout:     v.GetDuration("postgres.timeout"),
			PostgresMaxLifetime: v.GetDuration("postgres.max_lifetime"),
			PostgresMaxIdleTime: v.GetDuration("postgres.max_idle_time"),
			RunMigrations:       v.GetBool("postgres.run_migrations"),
			RedisURL:            v.GetString("redis.url"),
			RedisPassword:       v.GetString("redis.password"),
			RedisDB:             v.GetInt("redis.db"),
			RedisMaxRetries:     v.GetInt("redis.max_retries"),
			RedisPoolSize:       v.GetInt("redis.pool_size"),
			CacheEnabled:        v.GetBool("cache.enabled"),
			FXCacheTTL:          v.GetDuration("cache.fx_ttl"),
			L1CacheSize:         v.GetInt("cache.l1_size"),
		},
		Billing: BillingConfig{
			DefaultMaxSubscriptions: v.GetInt("billing.default_max_subscriptions"),
			DefaultMaxPeriods:       v.GetInt("billing.default_max_periods"),
			MaxSubscriptionsLimit:   v.GetInt("billing.max_subscriptions_limit"),
			MaxPeriodsLimit:         v.GetInt("billing.max_periods_limit"),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(v.GetString("log.level")),
			MetricsEnabled:     v.GetBool("metrics.enabled"),
			OTelEnabled:        v.GetBool("otel.enabled"),
			OTelEndpoint:       v.GetString("otel.endpoint"),
			OTelServiceName:    v.GetString("otel.service_name"),
			OTelServiceVersion: v.GetString("otel.service_version"),
			OTelInsecure:       v.GetBool("otel.insecure"),
			OTelSampleRatio:    v.GetFloat64("otel.sample_ratio"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	storageDefaults := storage.DefaultConfig()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.health_port", "9090")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("postgres.url", storageDefaults.PostgresURL)
	v.SetDefault("postgres.replica_urls", "")
	v.SetDefault("postgres.max_conns", storageDefaults.PostgresMaxConns)
	v.SetDefault("postgres.min_conns", storageDefaults.PostgresMinConns)
	v.SetDefault("postgres.timeout", storageDefaults.PostgresTimeout)
	v.SetDefault("postgres.max_lifetime", storageDefaults.PostgresMaxLifetime)
	v.SetDefault("postgres.max_idle_time", storageDefaults.PostgresMaxIdleTime)
	v.SetDefault("postgres.run_migrations", storageDefaults.RunMigrations)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", storageDefaults.RedisDB)
	v.SetDefault("redis.max_retries", storageDefaults.RedisMaxRetries)
	v.SetDefault("redis.pool_size", storageDefaults.RedisPoolSize)

	v.SetDefault("cache.enabled", storageDefaults.CacheEnabled)
	v.SetDefault("cache.fx_ttl", storageDefaults.FXCacheTTL)
	v.SetDefault("cache.l1_size", storageDefaults.L1CacheSize)

	v.SetDefault("billing.default_max_subscriptions", 100)
	v.SetDefault("billing.default_max_periods", 12)
	v.SetDefault("billing.max_subscriptions_limit", 1000)
	v.SetDefault("billing.max_periods_limit", 60)

	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.service_name", "subledger")
	v.SetDefault("otel.service_version", "1.0.0")
	v.SetDefault("otel.insecure", true)
	v.SetDefault("otel.sample_ratio", 1.0)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Storage.PostgresMaxConns <= 0 {
		return fmt.Errorf("postgres max conns must be positive")
	}
	if c.Storage.CacheEnabled && c.Storage.L1CacheSize <= 0 {
		return fmt.Errorf("L1 cache size must be positive when the cache is enabled")
	}
	if c.Storage.CacheEnabled && c.Storage.FXCacheTTL <= 0 {
		return fmt.Errorf("fx cache ttl must be positive when the cache is enabled")
	}

	b := c.Billing
	if b.MaxSubscriptionsLimit < 1 || b.MaxPeriodsLimit < 1 {
		return fmt.Errorf("billing limits must be positive")
	}
	if b.DefaultMaxSubscriptions < 1 || b.DefaultMaxSubscriptions > b.MaxSubscriptionsLimit {
		return fmt.Errorf("default max subscriptions must be within [1, %d]", b.MaxSubscriptionsLimit)
	}
	if b.DefaultMaxPeriods < 1 || b.DefaultMaxPeriods > b.MaxPeriodsLimit {
		return fmt.Errorf("default max periods must be within [1, %d]", b.MaxPeriodsLimit)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}
