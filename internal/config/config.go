package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Browser     BrowserConfig     `mapstructure:"browser"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Typing      TypingConfig      `mapstructure:"typing"`
	Images      ImagesConfig      `mapstructure:"images"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
}

// BrowserConfig holds browser session configuration
type BrowserConfig struct {
	ProfilePath string `mapstructure:"profile_path"`
}

// MarketplaceConfig holds listing-form configuration
type MarketplaceConfig struct {
	CreateURL          string `mapstructure:"create_url"`
	LoginWaitSeconds   int    `mapstructure:"login_wait_seconds"`
	AutoJoinFirstGroup bool   `mapstructure:"auto_join_first_group"`
}

// SchedulerConfig holds inter-listing pacing configuration
type SchedulerConfig struct {
	MinDelaySeconds int `mapstructure:"min_delay_seconds"`
	MaxDelaySeconds int `mapstructure:"max_delay_seconds"`
}

// TypingConfig holds per-character typing pace configuration
type TypingConfig struct {
	MinCharDelayMs int `mapstructure:"min_char_delay_ms"`
	MaxCharDelayMs int `mapstructure:"max_char_delay_ms"`
}

// ImagesConfig holds remote image download configuration
type ImagesConfig struct {
	CacheDir             string   `mapstructure:"cache_dir"`
	MaxRequestsPerSecond int      `mapstructure:"max_requests_per_second"`
	Proxies              []string `mapstructure:"proxies"`
	ProxyTestURL         string   `mapstructure:"proxy_test_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
}

// MinDelay returns the scheduler's minimum inter-listing gap.
func (c SchedulerConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelaySeconds) * time.Second
}

// MaxDelay returns the scheduler's maximum inter-listing gap.
func (c SchedulerConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds) * time.Second
}

// LoginWait returns how long to wait for a manual login.
func (c MarketplaceConfig) LoginWait() time.Duration {
	return time.Duration(c.LoginWaitSeconds) * time.Second
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config.yaml file not found in current directory")
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Browser.ProfilePath == "" {
		return fmt.Errorf("browser.profile_path must be set: a persistent profile keeps the login session")
	}
	if c.Scheduler.MinDelaySeconds <= 0 || c.Scheduler.MaxDelaySeconds < c.Scheduler.MinDelaySeconds {
		return fmt.Errorf("scheduler delays must satisfy 0 < min <= max, got min=%d max=%d",
			c.Scheduler.MinDelaySeconds, c.Scheduler.MaxDelaySeconds)
	}
	if c.Typing.MinCharDelayMs <= 0 || c.Typing.MaxCharDelayMs < c.Typing.MinCharDelayMs {
		return fmt.Errorf("typing delays must satisfy 0 < min <= max, got min=%d max=%d",
			c.Typing.MinCharDelayMs, c.Typing.MaxCharDelayMs)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("browser.profile_path", "")

	viper.SetDefault("marketplace.create_url", "https://www.facebook.com/marketplace/create/item")
	viper.SetDefault("marketplace.login_wait_seconds", 300)
	viper.SetDefault("marketplace.auto_join_first_group", false)

	viper.SetDefault("scheduler.min_delay_seconds", 60)
	viper.SetDefault("scheduler.max_delay_seconds", 180)

	viper.SetDefault("typing.min_char_delay_ms", 50)
	viper.SetDefault("typing.max_char_delay_ms", 150)

	viper.SetDefault("images.cache_dir", "")
	viper.SetDefault("images.max_requests_per_second", 2)
	viper.SetDefault("images.proxies", []string{})
	viper.SetDefault("images.proxy_test_url", "https://www.google.com")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "autoposter")
	viper.SetDefault("database.user", "autoposter_user")
	viper.SetDefault("database.password", "autoposter_pass")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.consumer_group", "autoposter_consumer")
}
