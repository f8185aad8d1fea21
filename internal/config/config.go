// Package config loads the service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	Engine   EngineConfig `mapstructure:"engine"`
	Kafka    KafkaConfig  `mapstructure:"kafka"`
	Store    StoreConfig  `mapstructure:"store"`
	HTTP     HTTPConfig   `mapstructure:"http"`
	Finnhub  FeedConfig   `mapstructure:"finnhub"`
}

// EngineConfig holds matching engine settings.
type EngineConfig struct {
	// DayEnd is the wall-clock cutoff for DAY orders, "HH:MM" in UTC.
	DayEnd string `mapstructure:"day_end"`
}

// KafkaConfig holds broker addresses and topic names.
type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	OrdersTopic    string        `mapstructure:"orders_topic"`
	ExecutionTopic string        `mapstructure:"execution_topic"`
	FailedTopic    string        `mapstructure:"failed_topic"`
	GroupID        string        `mapstructure:"group_id"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig holds the badger database location.
type StoreConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"`
}

// HTTPConfig holds the diagnostics server settings.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// FeedConfig holds the market data feed settings.
type FeedConfig struct {
	URL     string   `mapstructure:"url"`
	Token   string   `mapstructure:"token"`
	Symbols []string `mapstructure:"symbols"`
}

// DayEndCutoff resolves the configured DAY cutoff to today's instant in UTC.
func (c EngineConfig) DayEndCutoff(now time.Time) (time.Time, error) {
	t, err := time.Parse("15:04", c.DayEnd)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing engine.day_end %q: %w", c.DayEnd, err)
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

// Load reads the configuration file and applies env overrides of the form
// EXCHANGE_KAFKA_BROKERS, EXCHANGE_FINNHUB_TOKEN, etc.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_level", "info")
	v.SetDefault("engine.day_end", "21:00")
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.orders_topic", "orders.v1")
	v.SetDefault("kafka.execution_topic", "execution.v1")
	v.SetDefault("kafka.failed_topic", "failed.v1")
	v.SetDefault("kafka.group_id", "exchange-core")
	v.SetDefault("kafka.write_timeout", time.Second)
	v.SetDefault("store.dir", "./data/badger")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("finnhub.url", "wss://ws.finnhub.io")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
