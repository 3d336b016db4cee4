package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "test")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_USER", "incentives")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "incentives")
}

func TestLoad(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_PASS", "")
	t.Setenv("MIGRATE_ON_START", "yes")

	cfg := Load()
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "incentives", cfg.DBName)
	assert.Empty(t, cfg.DBPass)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.MigrateOnStart)
	assert.False(t, cfg.IsProduction())
}

func TestIsProduction(t *testing.T) {
	assert.True(t, Config{Env: "prod"}.IsProduction())
	assert.True(t, Config{Env: "Production"}.IsProduction())
	assert.False(t, Config{Env: "dev"}.IsProduction())
}

func TestLoadRateLimitConfig_Defaults(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 20, cfg.Capacity)
	assert.Equal(t, 3*time.Second, cfg.RefillInterval)
	assert.Equal(t, "ip_route", cfg.KeyStrategy)
	assert.Equal(t, "incentives:rl", cfg.Prefix)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 1, cfg.RefillTokens)
	assert.Equal(t, 10*time.Second, cfg.TTL, "ttl is raised to five refill intervals")
}

func TestLoadRateLimitConfig_Burst(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "7")
	assert.Equal(t, 7, LoadRateLimitConfig().Capacity)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg := LoadCacheConfig()
	assert.True(t, cfg.Methods["GET"])
	assert.True(t, cfg.Methods["HEAD"])
	assert.False(t, cfg.Methods["POST"])
	assert.Equal(t, time.Second, cfg.TTL)
	assert.Equal(t, 1048576, cfg.MaxBodyBytes)
}

func TestLoadEventsConfig(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
	t.Setenv("EVENTS_ENABLED", "off")

	cfg := LoadEventsConfig()
	assert.Equal(t, "amqp://u:p@broker:5672/", cfg.URL)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "logs", cfg.LogDir)
}

func TestNewLogger_Level(t *testing.T) {
	l := NewLogger(Config{Env: "prod", LogLevel: "warn"})
	require.Equal(t, zerolog.WarnLevel, l.GetLevel())

	l = NewLogger(Config{Env: "dev", LogLevel: "bogus"})
	require.Equal(t, zerolog.InfoLevel, l.GetLevel())
}

func TestLoadLogging_NoRequiredVars(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadLogging()
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.DBName)
}
