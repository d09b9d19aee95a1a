// services/rental/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the complete configuration for the service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	ServiceBus ServiceBusConfig `mapstructure:"service_bus"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Booking    BookingConfig    `mapstructure:"booking"`
	Tenancy    TenancyConfig    `mapstructure:"tenancy"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Log        LogConfig        `mapstructure:"log"`
	Logger     *logrus.Logger
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	EnableTracing   bool          `mapstructure:"enable_tracing"`
}

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
}

// ServiceBusConfig holds the Azure Service Bus settings used for domain events.
type ServiceBusConfig struct {
	ConnectionString string        `mapstructure:"connection_string"`
	QueueName        string        `mapstructure:"queue_name"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
}

// MQTTConfig holds the broker settings for inbound mobile-money notifications.
type MQTTConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BrokerURL         string        `mapstructure:"broker_url"`
	ClientID          string        `mapstructure:"client_id"`
	Username          string        `mapstructure:"username"`
	Password          string        `mapstructure:"password"`
	QoS               byte          `mapstructure:"qos"`
	CleanSession      bool          `mapstructure:"clean_session"`
	Topics            []string      `mapstructure:"topics"`
	KeepAlive         time.Duration `mapstructure:"keep_alive"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay"`
	HandlerTimeout    time.Duration `mapstructure:"handler_timeout"`
}

// PricingConfig holds platform fee settings.
type PricingConfig struct {
	CommissionRate float64 `mapstructure:"commission_rate"`
}

// BookingConfig holds booking lifecycle rules.
type BookingConfig struct {
	CancellationWindowDays int `mapstructure:"cancellation_window_days"`
}

// TenancyConfig holds defaults applied when a landlord omits lease terms.
type TenancyConfig struct {
	DefaultRentDueDay      int           `mapstructure:"default_rent_due_day"`
	DefaultGracePeriodDays int           `mapstructure:"default_grace_period_days"`
	StatsCacheTTL          time.Duration `mapstructure:"stats_cache_ttl"`
	DefaultCountryCode     string        `mapstructure:"default_country_code"`
}

// AuthConfig holds session settings.
type AuthConfig struct {
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from a file and environment variables.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RENTAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Pricing.CommissionRate < 0 || c.Pricing.CommissionRate >= 1 {
		return fmt.Errorf("pricing.commission_rate must be in [0, 1), got %v", c.Pricing.CommissionRate)
	}
	if c.Booking.CancellationWindowDays < 0 {
		return fmt.Errorf("booking.cancellation_window_days must not be negative")
	}
	if c.Tenancy.DefaultRentDueDay < 1 || c.Tenancy.DefaultRentDueDay > 31 {
		return fmt.Errorf("tenancy.default_rent_due_day must be between 1 and 31")
	}
	if c.Tenancy.DefaultGracePeriodDays < 0 {
		return fmt.Errorf("tenancy.default_grace_period_days must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_minute", 120)

	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("database.enable_tracing", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.dial_timeout", "5s")

	v.SetDefault("service_bus.queue_name", "rental-events")
	v.SetDefault("service_bus.max_retries", 3)
	v.SetDefault("service_bus.retry_delay", "1s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.clean_session", false)
	v.SetDefault("mqtt.topics", []string{"payments/+/received"})
	v.SetDefault("mqtt.keep_alive", "30s")
	v.SetDefault("mqtt.connect_timeout", "10s")
	v.SetDefault("mqtt.max_reconnect_delay", "2m")
	v.SetDefault("mqtt.handler_timeout", "10s")

	v.SetDefault("pricing.commission_rate", 0.10)
	v.SetDefault("booking.cancellation_window_days", 7)

	v.SetDefault("tenancy.default_rent_due_day", 1)
	v.SetDefault("tenancy.default_grace_period_days", 5)
	v.SetDefault("tenancy.stats_cache_ttl", "60s")
	v.SetDefault("tenancy.default_country_code", "255")

	v.SetDefault("auth.token_ttl", "720h")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("log.level", "info")
}
