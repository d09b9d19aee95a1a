package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 120, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 0.10, cfg.Pricing.CommissionRate)
	assert.Equal(t, 7, cfg.Booking.CancellationWindowDays)
	assert.Equal(t, 1, cfg.Tenancy.DefaultRentDueDay)
	assert.Equal(t, 5, cfg.Tenancy.DefaultGracePeriodDays)
	assert.Equal(t, time.Minute, cfg.Tenancy.StatsCacheTTL)
	assert.Equal(t, "255", cfg.Tenancy.DefaultCountryCode)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"payments/+/received"}, cfg.MQTT.Topics)
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
tenancy:
  default_grace_period_days: 3
mqtt:
  enabled: true
  broker_url: tcp://broker:1883
`), 0o600))
	t.Setenv("RENTAL_PRICING_COMMISSION_RATE", "0.15")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Tenancy.DefaultGracePeriodDays)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.BrokerURL)
	assert.Equal(t, 0.15, cfg.Pricing.CommissionRate)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pricing:\n  commission_rate: 1.5\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Pricing: PricingConfig{CommissionRate: 0.1},
			Booking: BookingConfig{CancellationWindowDays: 7},
			Tenancy: TenancyConfig{DefaultRentDueDay: 1, DefaultGracePeriodDays: 5},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(*Config){
		"negative commission": func(c *Config) { c.Pricing.CommissionRate = -0.1 },
		"negative window":     func(c *Config) { c.Booking.CancellationWindowDays = -1 },
		"due day zero":        func(c *Config) { c.Tenancy.DefaultRentDueDay = 0 },
		"due day 32":          func(c *Config) { c.Tenancy.DefaultRentDueDay = 32 },
		"negative grace":      func(c *Config) { c.Tenancy.DefaultGracePeriodDays = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
