// config/config.go - Application configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	defaultDatabaseURL = "sqlite://wordlewise.db"
	minSecretLength    = 32
)

// Config holds every setting the server and the admin CLI need.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	Env         string `yaml:"env"`
	Port        string `yaml:"port"`
	CORSOrigins string `yaml:"cors_origins"`
}

// DatabaseConfig holds the DSN and pool settings. A URL starting with
// "sqlite://" or "file:" selects SQLite, anything else PostgreSQL.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type JWTConfig struct {
	Secret string        `yaml:"secret"`
	TTL    time.Duration `yaml:"ttl"`
}

type RateLimitConfig struct {
	Enabled               bool `yaml:"enabled"`
	RequestsPerMinute     int  `yaml:"requests_per_minute"`
	Burst                 int  `yaml:"burst"`
	AuthRequestsPerMinute int  `yaml:"auth_requests_per_minute"`
	AuthBurst             int  `yaml:"auth_burst"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:         EnvDevelopment,
			Port:        "3000",
			CORSOrigins: "http://localhost:3000",
		},
		Database: DatabaseConfig{
			URL:             defaultDatabaseURL,
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			TTL: 30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			RequestsPerMinute:     120,
			Burst:                 30,
			AuthRequestsPerMinute: 5,
			AuthBurst:             5,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides.
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.App.Port = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.App.CORSOrigins = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	} else if host := os.Getenv("DB_HOST"); host != "" {
		c.Database.URL = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host,
			getEnvOrDefault("DB_PORT", "5432"),
			getEnvOrDefault("DB_USER", "postgres"),
			getEnvOrDefault("DB_PASSWORD", ""),
			getEnvOrDefault("DB_NAME", "wordlewise"),
			getEnvOrDefault("DB_SSLMODE", "disable"),
		)
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("JWT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_TTL %q: %w", v, err)
		}
		c.JWT.TTL = d
	}

	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		c.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("RATE_LIMIT_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid RATE_LIMIT_RPM %q: %w", v, err)
		}
		c.RateLimit.RequestsPerMinute = n
	}
	if v := os.Getenv("AUTH_RATE_LIMIT_RPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid AUTH_RATE_LIMIT_RPM %q: %w", v, err)
		}
		c.RateLimit.AuthRequestsPerMinute = n
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = parseBool(v)
	}
	return nil
}

// Validate checks the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET must be set (generate one with: openssl rand -base64 64)")
	}
	if c.IsProduction() && len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minSecretLength)
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be positive")
	}
	if c.Database.URL == "" {
		return errors.New("database URL must be set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

// ListenAddr returns the port in ":port" form.
func (c *Config) ListenAddr() string {
	if strings.HasPrefix(c.App.Port, ":") {
		return c.App.Port
	}
	return ":" + c.App.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "false", "0", "no", "off":
		return false
	}
	return true
}
