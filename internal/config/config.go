package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"fundboard/internal/staleness"
)

// Config holds all configuration for the fund board application.
type Config struct {
	// ProductsPath points at the CSV product list.
	ProductsPath string `mapstructure:"products_path"`

	// Exchange clock settings
	Timezone       string   `mapstructure:"timezone"`
	SessionWindows []string `mapstructure:"session_windows"` // "HH:MM-HH:MM"
	GraceMinutes   int      `mapstructure:"grace_minutes"`

	// Per-product policy defaults, overridable per row via the ref column
	DefaultProviders      []string `mapstructure:"default_providers"`
	DefaultTimeoutSeconds int      `mapstructure:"default_timeout_s"`

	// Base URLs for the data sources (configurable for testing)
	FundgzBaseURL string `mapstructure:"fundgz_base_url"`
	AniuBaseURL   string `mapstructure:"aniu_base_url"`

	// RefreshTimeoutSeconds bounds one whole refresh cycle.
	RefreshTimeoutSeconds int `mapstructure:"refresh_timeout_s"`
}

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over config file values.
//
// Expected environment variables (all optional):
//   - PRODUCTS_PATH
//   - EXCHANGE_TIMEZONE
//   - GRACE_MINUTES
//   - FUNDGZ_BASE_URL
//   - ANIU_BASE_URL
//   - REFRESH_TIMEOUT_S
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("") // No prefix, use full names
	v.AutomaticEnv()

	// Defaults match the mainland fund session the board was built for.
	v.SetDefault("products_path", "data/products.csv")
	v.SetDefault("timezone", "Asia/Singapore")
	v.SetDefault("session_windows", []string{"09:30-11:30", "13:00-15:00"})
	v.SetDefault("grace_minutes", int(staleness.DefaultGrace/time.Minute))
	v.SetDefault("default_providers", []string{"fundgz", "aniu"})
	v.SetDefault("default_timeout_s", 3)
	v.SetDefault("fundgz_base_url", "http://fundgz.1234567.com.cn")
	v.SetDefault("aniu_base_url", "https://www.aniu.com")
	v.SetDefault("refresh_timeout_s", 30)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.fundboard")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	v.BindEnv("products_path", "PRODUCTS_PATH")
	v.BindEnv("timezone", "EXCHANGE_TIMEZONE")
	v.BindEnv("grace_minutes", "GRACE_MINUTES")
	v.BindEnv("fundgz_base_url", "FUNDGZ_BASE_URL")
	v.BindEnv("aniu_base_url", "ANIU_BASE_URL")
	v.BindEnv("refresh_timeout_s", "REFRESH_TIMEOUT_S")

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if len(c.SessionWindows) == 0 {
		return fmt.Errorf("at least one session window is required")
	}
	for _, w := range c.SessionWindows {
		if _, err := staleness.ParseWindow(w); err != nil {
			return err
		}
	}
	if c.GraceMinutes < 0 {
		return fmt.Errorf("grace_minutes must not be negative")
	}
	if len(c.DefaultProviders) == 0 {
		return fmt.Errorf("default_providers must not be empty")
	}
	if c.DefaultTimeoutSeconds <= 0 {
		return fmt.Errorf("default_timeout_s must be positive")
	}
	if c.RefreshTimeoutSeconds <= 0 {
		return fmt.Errorf("refresh_timeout_s must be positive")
	}
	return nil
}

// Location returns the exchange timezone. validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, _ := time.LoadLocation(c.Timezone)
	return loc
}

// Clock builds the session clock the staleness classifier judges against.
func (c *Config) Clock() (staleness.Clock, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return staleness.Clock{}, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	windows := make([]staleness.Window, 0, len(c.SessionWindows))
	for _, s := range c.SessionWindows {
		w, err := staleness.ParseWindow(s)
		if err != nil {
			return staleness.Clock{}, err
		}
		windows = append(windows, w)
	}
	return staleness.Clock{
		Location: loc,
		Windows:  windows,
		Grace:    time.Duration(c.GraceMinutes) * time.Minute,
	}, nil
}
