package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL      string   `mapstructure:"REDIS_URL"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	// AuthSigningKey is the HMAC key for admin API bearer tokens. Required
	// outside development.
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	// Audit core budgets and digest tuning.
	AuditMetadataMaxBytes int           `mapstructure:"AUDIT_METADATA_MAX_BYTES"`
	AuditDiffMaxBytes     int           `mapstructure:"AUDIT_DIFF_MAX_BYTES"`
	DigestMaxRows         int           `mapstructure:"DIGEST_MAX_ROWS"`
	DigestMinInterval     time.Duration `mapstructure:"DIGEST_MIN_INTERVAL"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUDIT_METADATA_MAX_BYTES", 2048)
	v.SetDefault("AUDIT_DIFF_MAX_BYTES", 4096)
	v.SetDefault("DIGEST_MAX_ROWS", 50000)
	v.SetDefault("DIGEST_MIN_INTERVAL", "60s")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("REDIS_URL")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("AUDIT_METADATA_MAX_BYTES")
	v.BindEnv("AUDIT_DIFF_MAX_BYTES")
	v.BindEnv("DIGEST_MAX_ROWS")
	v.BindEnv("DIGEST_MIN_INTERVAL")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the admin API must have a real signing key, and the payload budgets must
// stay sane: a metadata budget too small to hold a truncation marker would
// make every capped payload collapse to an empty object.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY is required when ENV=%q; refusing to serve the admin API unauthenticated", c.Env)
	}
	if c.AuditMetadataMaxBytes < 256 {
		return fmt.Errorf("AUDIT_METADATA_MAX_BYTES must be at least 256, got %d", c.AuditMetadataMaxBytes)
	}
	if c.AuditDiffMaxBytes < c.AuditMetadataMaxBytes {
		return fmt.Errorf("AUDIT_DIFF_MAX_BYTES (%d) must be >= AUDIT_METADATA_MAX_BYTES (%d)",
			c.AuditDiffMaxBytes, c.AuditMetadataMaxBytes)
	}
	if c.DigestMaxRows < 1 {
		return fmt.Errorf("DIGEST_MAX_ROWS must be positive, got %d", c.DigestMaxRows)
	}
	if c.DigestMinInterval < time.Second {
		return fmt.Errorf("DIGEST_MIN_INTERVAL must be at least 1s, got %s", c.DigestMinInterval)
	}

	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
