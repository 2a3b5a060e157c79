// Package config loads runtime configuration from the environment.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Every field maps 1:1 to an env var.
type Config struct {
	// Server
	Port int    `mapstructure:"PORT"`
	Env  string `mapstructure:"APP_ENV"` // development | production

	// Logging
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Database
	DBPath string `mapstructure:"DB_PATH"`

	// Certificates. A warning window of 0 flags only the expiry day; a
	// negative one, or an upcoming window <= 0, uses the default.
	ExpiryWarningDays  int `mapstructure:"EXPIRY_WARNING_DAYS"`
	UpcomingWindowDays int `mapstructure:"UPCOMING_WINDOW_DAYS"`

	// Zero disables the background estado refresh
	EstadoRefreshInterval time.Duration `mapstructure:"ESTADO_REFRESH_INTERVAL"`

	// Comma separated
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// Load reads configuration from environment variables (and an optional .env
// file in the working directory).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_PATH", "lots.db")
	v.SetDefault("EXPIRY_WARNING_DAYS", 10)
	v.SetDefault("UPCOMING_WINDOW_DAYS", 30)
	v.SetDefault("ESTADO_REFRESH_INTERVAL", "1h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080")

	// Missing .env is fine
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// AllowedOrigins splits CORSAllowedOrigins.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
