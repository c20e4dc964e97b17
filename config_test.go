package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kylycht/ratebot/controller/bot"
	"github.com/kylycht/ratebot/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "builtin", cfg.Catalog.Source)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, "RUB", cfg.Rates.Target)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Fiat, cfg.Fiat)
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
http_port: ":8080"
cache:
  backend: memory
  ttl: 30s
rates:
  popular: [usd, btc]
  target: eur
bot:
  pairs:
    - {from: BTC, to: EUR, label: "BTC → EUR"}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, []string{"usd", "btc"}, cfg.Rates.Popular)
	assert.Equal(t, []PairConfig{{From: "BTC", To: "EUR", Label: "BTC → EUR"}}, cfg.Bot.Pairs)

	// untouched sections keep defaults
	assert.Equal(t, 10*time.Second, cfg.Crypto.Timeout)
	assert.Equal(t, 8, cfg.Bot.Workers)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("FIAT_TIMEOUT", "3s")
	t.Setenv("RATES_POPULAR", "USD,TON")
	t.Setenv("BOT_TOKEN", "secret")

	path := writeConfig(t, "cache:\n  backend: memory\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 3*time.Second, cfg.Fiat.Timeout)
	assert.Equal(t, []string{"USD", "TON"}, cfg.Rates.Popular)
	assert.Equal(t, "secret", cfg.BotToken)
}

func TestLoadConfig_BareEnvIgnored(t *testing.T) {
	t.Setenv("API_KEY", "fiat-secret")
	t.Setenv("TIMEOUT", "1ms")
	t.Setenv("BASE_URL", "http://other.example")
	t.Setenv("PORT", "8080")
	t.Setenv("FIAT_API_KEY", "fiat-only")
	t.Setenv("CATALOG_DB_SSL_MODE", "require")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	defaults := DefaultConfig()

	assert.Equal(t, "fiat-only", cfg.Fiat.APIKey)
	assert.Empty(t, cfg.Crypto.APIKey)
	assert.Equal(t, defaults.Fiat.Timeout, cfg.Fiat.Timeout)
	assert.Equal(t, defaults.Crypto.Timeout, cfg.Crypto.Timeout)
	assert.Equal(t, defaults.Breaker.Timeout, cfg.Breaker.Timeout)
	assert.Equal(t, defaults.Fiat.BaseURL, cfg.Fiat.BaseURL)
	assert.Equal(t, defaults.Crypto.BaseURL, cfg.Crypto.BaseURL)
	assert.Equal(t, "5432", cfg.Catalog.DB.Port)
	assert.Equal(t, "require", cfg.Catalog.DB.SSLMode)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "log level", content: "log_level: loud\n"},
		{name: "catalog source", content: "catalog:\n  source: mongo\n"},
		{name: "redis without address", content: "cache:\n  backend: redis\n"},
		{name: "provider url", content: "fiat:\n  base_url: not a url\n"},
		{name: "breaker successes", content: "breaker:\n  successes: 0\n"},
		{name: "popular symbol", content: "rates:\n  popular: [DOLLAR]\n"},
		{name: "max amount", content: "bot:\n  max_amount: -1\n"},
		{name: "malformed yaml", content: "cache: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestDBConfig_DSN(t *testing.T) {
	d := DBConfig{
		Username: "ratebot",
		Password: "p@ss",
		Host:     "db",
		Port:     "5432",
		Name:     "rates",
		SSLMode:  "disable",
	}

	assert.Equal(t, "postgresql://ratebot:p%40ss@db:5432/rates?sslmode=disable", d.DSN())
}

func TestToSymbols(t *testing.T) {
	symbols, err := toSymbols([]string{"usd", " btc "})
	require.NoError(t, err)
	assert.Equal(t, []model.Symbol{"USD", "BTC"}, symbols)

	_, err = toSymbols([]string{"usd", "bitcoin"})
	assert.Error(t, err)
}

func TestBotConfig_ToBot(t *testing.T) {
	c := DefaultConfig().Bot
	c.DefaultTarget = "uah"
	c.Pairs = []PairConfig{{From: "usdt", To: "uah", Label: "USDT → UAH"}}

	got, err := c.toBot()
	require.NoError(t, err)

	assert.Equal(t, model.Symbol("UAH"), got.DefaultTarget)
	assert.Equal(t, []bot.Pair{{From: "USDT", To: "UAH", Label: "USDT → UAH"}}, got.Pairs)
	assert.Equal(t, c.Workers, got.Workers)
	assert.Equal(t, c.FloodBurst, got.FloodBurst)

	c.Pairs = []PairConfig{{From: "usdt", To: "hryvnia"}}
	_, err = c.toBot()
	assert.Error(t, err)
}
