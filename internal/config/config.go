package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration. Every field maps to an env var.
type Config struct {
	// Server
	Port              int    `mapstructure:"PORT"`
	Env               string `mapstructure:"APP_ENV"` // development | production
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`
	AllowRegistration bool   `mapstructure:"ALLOW_REGISTRATION"`

	// Database
	DBDriver     string `mapstructure:"DB_DRIVER"` // mysql | sqlite
	DBDSN        string `mapstructure:"DB_DSN"`
	DBMaxRetries int    `mapstructure:"DB_MAX_RETRIES"`
	DBLogLevel   string `mapstructure:"DB_LOG_LEVEL"`

	// Redis (optional, bag locks)
	RedisURL string        `mapstructure:"REDIS_URL"`
	LockTTL  time.Duration `mapstructure:"LOCK_TTL"`

	// Auth
	JWTSecret          string `mapstructure:"JWT_SECRET"`
	JWTExpirationHours int    `mapstructure:"JWT_EXPIRATION_HOURS"`

	// Business
	DefaultCommissionPercent float64 `mapstructure:"DEFAULT_COMMISSION_PERCENT"`

	// Assistant
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`
}

var keys = []string{
	"PORT", "APP_ENV", "CORS_ORIGINS", "ALLOW_REGISTRATION",
	"DB_DRIVER", "DB_DSN", "DB_MAX_RETRIES", "DB_LOG_LEVEL",
	"REDIS_URL", "LOCK_TTL",
	"JWT_SECRET", "JWT_EXPIRATION_HOURS",
	"DEFAULT_COMMISSION_PERCENT",
	"GEMINI_API_KEY", "GEMINI_MODEL",
}

// Load reads configuration from the environment, after loading an optional .env file.
func Load() (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("ALLOW_REGISTRATION", false)
	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_MAX_RETRIES", 5)
	v.SetDefault("DB_LOG_LEVEL", "warn")
	v.SetDefault("LOCK_TTL", 10*time.Second)
	v.SetDefault("JWT_EXPIRATION_HOURS", 24)
	v.SetDefault("DEFAULT_COMMISSION_PERCENT", 30)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-001")

	// AutomaticEnv only resolves keys viper already knows about during Unmarshal
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return errors.New("DB_DRIVER must be mysql or sqlite")
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in production")
	}
	if c.DefaultCommissionPercent < 0 || c.DefaultCommissionPercent > 100 {
		return errors.New("DEFAULT_COMMISSION_PERCENT must be between 0 and 100")
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "dev-only-secret-change-me"
	}
	return nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) DefaultCommission() decimal.Decimal {
	return decimal.NewFromFloat(c.DefaultCommissionPercent)
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}
