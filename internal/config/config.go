// Package config loads service settings from defaults, an optional YAML file
// and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	LockLocal    = "local"
	LockRedis    = "redis"
	LockPostgres = "postgres"

	GatewayMock = "mock"
	GatewayLive = "live"
)

type Config struct {
	HTTPAddr           string  `mapstructure:"http_addr"`
	PGURL              string  `mapstructure:"pg_url"`
	StoreBackend       string  `mapstructure:"store_backend"`
	LockBackend        string  `mapstructure:"lock_backend"`
	RedisAddr          string  `mapstructure:"redis_addr"`
	KafkaAddr          string  `mapstructure:"kafka_addr"`
	OutboxTopic        string  `mapstructure:"outbox_topic"`
	NotificationsTopic string  `mapstructure:"notifications_topic"`
	ConsumerGroup      string  `mapstructure:"consumer_group"`
	OTLPEndpoint       string  `mapstructure:"otlp_endpoint"`
	LogLevel           string  `mapstructure:"log_level"`
	LogJSON            bool    `mapstructure:"log_json"`
	GatewayMode        string  `mapstructure:"gateway_mode"`
	GatewayBaseURL     string  `mapstructure:"gateway_base_url"`
	GatewayAccessToken string  `mapstructure:"gateway_access_token"`
	GatewayRPS         float64 `mapstructure:"gateway_rps"`
	ShippingCost       string  `mapstructure:"shipping_cost"`
	DefaultCurrency    string  `mapstructure:"default_currency"`
	DefaultCountry     string  `mapstructure:"default_country"`
	// StatusAliases extends the gateway status table, e.g.
	// "authorized=approved,expired=cancelled".
	StatusAliases string `mapstructure:"status_aliases"`
}

func defaults() map[string]any {
	return map[string]any{
		"http_addr":            ":8080",
		"pg_url":               "",
		"store_backend":        "",
		"lock_backend":         "",
		"redis_addr":           "",
		"kafka_addr":           "",
		"outbox_topic":         "order.events",
		"notifications_topic":  "",
		"consumer_group":       "storefront-reconciler",
		"otlp_endpoint":        "",
		"log_level":            "info",
		"log_json":             true,
		"gateway_mode":         GatewayMock,
		"gateway_base_url":     "https://api.mercadopago.com",
		"gateway_access_token": "",
		"gateway_rps":          5.0,
		"shipping_cost":        "15.00",
		"default_currency":     "BRL",
		"default_country":      "Brasil",
		"status_aliases":       "",
	}
}

// Load reads the YAML file at path when path is non-empty, then lets
// environment variables (HTTP_ADDR, PG_URL, ...) override it.
func Load(path string) (Config, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.resolve()
	return cfg, cfg.Validate()
}

// resolve fills backends that depend on other settings: without a database
// the service runs on in-memory stores.
func (c *Config) resolve() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	if c.StoreBackend == "" {
		c.StoreBackend = StoreMemory
		if c.PGURL != "" {
			c.StoreBackend = StorePostgres
		}
	}
	c.LockBackend = strings.ToLower(strings.TrimSpace(c.LockBackend))
	if c.LockBackend == "" {
		c.LockBackend = LockLocal
		if c.StoreBackend == StorePostgres {
			c.LockBackend = LockPostgres
		}
	}
	c.GatewayMode = strings.ToLower(strings.TrimSpace(c.GatewayMode))
	c.DefaultCurrency = strings.ToUpper(strings.TrimSpace(c.DefaultCurrency))
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreBackend {
	case StoreMemory:
	case StorePostgres:
		if c.PGURL == "" {
			errs = append(errs, errors.New("STORE_BACKEND=postgres requires PG_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}

	switch c.LockBackend {
	case LockLocal:
	case LockRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("LOCK_BACKEND=redis requires REDIS_ADDR"))
		}
	case LockPostgres:
		if c.StoreBackend != StorePostgres {
			errs = append(errs, errors.New("LOCK_BACKEND=postgres requires the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.LockBackend))
	}

	switch c.GatewayMode {
	case GatewayMock:
	case GatewayLive:
		if c.GatewayBaseURL == "" || c.GatewayAccessToken == "" {
			errs = append(errs, errors.New("GATEWAY_MODE=live requires GATEWAY_BASE_URL and GATEWAY_ACCESS_TOKEN"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown GATEWAY_MODE %q", c.GatewayMode))
	}

	if c.NotificationsTopic != "" && c.KafkaAddr == "" {
		errs = append(errs, errors.New("NOTIFICATIONS_TOPIC requires KAFKA_ADDR"))
	}
	if len(c.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("DEFAULT_CURRENCY %q is not a 3-letter code", c.DefaultCurrency))
	}
	if _, err := c.Shipping(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Aliases(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) Shipping() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.ShippingCost))
	if err != nil {
		return decimal.Zero, fmt.Errorf("SHIPPING_COST: %w", err)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("SHIPPING_COST must not be negative")
	}
	return d, nil
}

func (c Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaAddr, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Aliases parses StatusAliases. Targets must be local payment statuses.
func (c Config) Aliases() (map[string]domain.Status, error) {
	out := make(map[string]domain.Status)
	for _, pair := range strings.Split(c.StatusAliases, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		st := domain.Status(strings.ToLower(strings.TrimSpace(to)))
		if !ok || strings.TrimSpace(from) == "" || !st.Valid() {
			return nil, fmt.Errorf("STATUS_ALIASES: bad entry %q", pair)
		}
		out[strings.ToLower(strings.TrimSpace(from))] = st
	}
	return out, nil
}
