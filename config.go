package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/kylycht/ratebot/controller/bot"
	"github.com/kylycht/ratebot/model"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort  string `yaml:"http_port" envconfig:"HTTP_PORT" validate:"required"`
	LogLevel  string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=trace debug info warn error"`
	LogPretty bool   `yaml:"log_pretty" envconfig:"LOG_PRETTY"`
	BotToken  string `yaml:"bot_token" envconfig:"BOT_TOKEN"`

	Catalog CatalogConfig  `yaml:"catalog" envconfig:"CATALOG"`
	Fiat    ProviderConfig `yaml:"fiat" envconfig:"FIAT"`
	Crypto  ProviderConfig `yaml:"crypto" envconfig:"CRYPTO"`
	Breaker BreakerConfig  `yaml:"breaker" envconfig:"BREAKER"`
	Cache   CacheConfig    `yaml:"cache" envconfig:"CACHE"`
	Rates   RatesConfig    `yaml:"rates" envconfig:"RATES"`
	Bot     BotConfig      `yaml:"bot" envconfig:"BOT"`
}

type CatalogConfig struct {
	Source string   `yaml:"source" split_words:"true" validate:"oneof=builtin postgres"`
	DB     DBConfig `yaml:"db" envconfig:"DB"`
}

type DBConfig struct {
	Username string `yaml:"username" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Host     string `yaml:"host" split_words:"true"`
	Port     string `yaml:"port" split_words:"true"`
	Name     string `yaml:"name" split_words:"true"`
	SSLMode  string `yaml:"sslmode" split_words:"true"`
}

// DSN returns postgres connection string
func (d DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgresql",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type ProviderConfig struct {
	BaseURL string        `yaml:"base_url" split_words:"true" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
	APIKey  string        `yaml:"api_key" split_words:"true"`
}

type BreakerConfig struct {
	Errors    int           `yaml:"errors" split_words:"true" validate:"gte=0"` // consecutive failures opening the circuit, 0 disables it
	Successes int           `yaml:"successes" split_words:"true" validate:"gte=1"`
	Timeout   time.Duration `yaml:"timeout" split_words:"true" validate:"gt=0"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend" split_words:"true" validate:"oneof=none memory redis"`
	TTL           time.Duration `yaml:"ttl" split_words:"true" validate:"gte=0"`
	RedisAddr     string        `yaml:"redis_addr" split_words:"true" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password" split_words:"true"`
	RedisDB       int           `yaml:"redis_db" split_words:"true" validate:"gte=0"`
}

type RatesConfig struct {
	Popular     []string `yaml:"popular" split_words:"true" validate:"dive,alpha,min=3,max=4"`
	Target      string   `yaml:"target" split_words:"true" validate:"required,alpha,min=3,max=4"`
	Parallelism int      `yaml:"parallelism" split_words:"true" validate:"gte=1"`
}

type BotConfig struct {
	Workers       int           `yaml:"workers" split_words:"true" validate:"gte=1"`
	QueueSize     int           `yaml:"queue_size" split_words:"true" validate:"gte=1"`
	DefaultTarget string        `yaml:"default_target" split_words:"true" validate:"required,alpha,min=3,max=4"`
	MaxAmount     float64       `yaml:"max_amount" split_words:"true" validate:"gt=0"`
	PendingTTL    time.Duration `yaml:"pending_ttl" split_words:"true" validate:"gte=0"`
	FloodRate     float64       `yaml:"flood_rate" split_words:"true" validate:"gte=0"`
	FloodBurst    int           `yaml:"flood_burst" split_words:"true" validate:"gte=0"`
	Pairs         []PairConfig  `yaml:"pairs" ignored:"true" validate:"dive"`
}

type PairConfig struct {
	From  string `yaml:"from" validate:"required,alpha,min=3,max=4"`
	To    string `yaml:"to" validate:"required,alpha,min=3,max=4"`
	Label string `yaml:"label"`
}

// DefaultConfig returns configuration used
// when no file or environment override is present
func DefaultConfig() Config {
	return Config{
		HTTPPort: ":3000",
		LogLevel: "info",
		Catalog: CatalogConfig{
			Source: "builtin",
			DB: DBConfig{
				Host:    "localhost",
				Port:    "5432",
				Name:    "ratebot",
				SSLMode: "disable",
			},
		},
		Fiat: ProviderConfig{
			BaseURL: "https://api.exchangerate-api.com/v4/latest",
			Timeout: 10 * time.Second,
		},
		Crypto: ProviderConfig{
			BaseURL: "https://api.coingecko.com/api/v3",
			Timeout: 10 * time.Second,
		},
		Breaker: BreakerConfig{
			Errors:    5,
			Successes: 1,
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			Backend: "none",
			TTL:     time.Minute,
		},
		Rates: RatesConfig{
			Popular:     []string{"USD", "EUR", "UAH", "BTC", "ETH", "TRX", "TON"},
			Target:      "RUB",
			Parallelism: 4,
		},
		Bot: BotConfig{
			Workers:       8,
			QueueSize:     64,
			DefaultTarget: "RUB",
			MaxAmount:     1_000_000_000,
			PendingTTL:    30 * time.Minute,
			FloodRate:     1,
			FloodBurst:    5,
		},
	}
}

// LoadConfig layers defaults, the yaml file at path,
// .env and the process environment, then validates the result
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Warn().Str("path", path).Msg("configuration file not found, using defaults")
	case err != nil:
		return cfg, fmt.Errorf("read configuration file: %w", err)
	default:
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse configuration file: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// toSymbols converts configured symbol lists, input may be lowercase
func toSymbols(in []string) ([]model.Symbol, error) {
	out := make([]model.Symbol, 0, len(in))
	for _, s := range in {
		sym, err := model.ParseSymbol(s)
		if err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, nil
}

func (c BotConfig) toBot() (bot.Config, error) {
	target, err := model.ParseSymbol(c.DefaultTarget)
	if err != nil {
		return bot.Config{}, err
	}

	pairs := make([]bot.Pair, 0, len(c.Pairs))
	for _, p := range c.Pairs {
		from, err := model.ParseSymbol(p.From)
		if err != nil {
			return bot.Config{}, err
		}
		to, err := model.ParseSymbol(p.To)
		if err != nil {
			return bot.Config{}, err
		}
		pairs = append(pairs, bot.Pair{From: from, To: to, Label: p.Label})
	}

	return bot.Config{
		Workers:       c.Workers,
		QueueSize:     c.QueueSize,
		DefaultTarget: target,
		MaxAmount:     c.MaxAmount,
		Pairs:         pairs,
		FloodRate:     c.FloodRate,
		FloodBurst:    c.FloodBurst,
	}, nil
}
