package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all stockwatch configuration.
type Config struct {
	Storage     StorageConfig   `mapstructure:"storage"`
	Monitor     MonitorConfig   `mapstructure:"monitor"`
	Providers   ProvidersConfig `mapstructure:"providers"`
	Notify      NotifyConfig    `mapstructure:"notify"`
	Server      ServerConfig    `mapstructure:"server"`
	Logging     LoggingConfig   `mapstructure:"logging"`
	MarketsFile string          `mapstructure:"markets_file"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// MonitorConfig defines the two cycle intervals.
type MonitorConfig struct {
	FastInterval    time.Duration `mapstructure:"fast_interval"`
	MeteredInterval time.Duration `mapstructure:"metered_interval"`
}

// ProvidersConfig groups the three price sources.
type ProvidersConfig struct {
	MOEX       MOEXConfig       `mapstructure:"moex"`
	Yahoo      YahooConfig      `mapstructure:"yahoo"`
	TwelveData TwelveDataConfig `mapstructure:"twelvedata"`
}

// MOEXConfig defines the domestic quote source.
type MOEXConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Board   string `mapstructure:"board"`
}

// YahooConfig defines the free batch source.
type YahooConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// TwelveDataConfig defines the metered source and its budget.
type TwelveDataConfig struct {
	BaseURL              string `mapstructure:"base_url"`
	APIKey               string `mapstructure:"api_key"`
	DailyLimit           int    `mapstructure:"daily_limit"`
	Reserve              int    `mapstructure:"reserve"`
	ChunkSize            int    `mapstructure:"chunk_size"`
	MaxRequestsPerMinute int    `mapstructure:"max_requests_per_minute"`
}

// NotifyConfig defines notification channels.
type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// TelegramConfig defines Bot API delivery settings.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
	BaseURL string `mapstructure:"base_url"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// ServerConfig defines the status API listener.
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".stockwatch"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("storage.path", filepath.Join(home, ".stockwatch", "stockwatch.db"))
	v.SetDefault("monitor.fast_interval", "30s")
	v.SetDefault("monitor.metered_interval", "3h")
	v.SetDefault("providers.moex.base_url", "https://iss.moex.com/iss")
	v.SetDefault("providers.moex.board", "TQBR")
	v.SetDefault("providers.yahoo.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.twelvedata.base_url", "https://api.twelvedata.com")
	v.SetDefault("providers.twelvedata.daily_limit", 800)
	v.SetDefault("providers.twelvedata.reserve", 100)
	v.SetDefault("providers.twelvedata.chunk_size", 8)
	v.SetDefault("providers.twelvedata.max_requests_per_minute", 8)
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.webhook.enabled", false)
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen", ":8090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Environment variables
	v.SetEnvPrefix("STOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
