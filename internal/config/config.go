package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"medical-book/internal/auth"
	"medical-book/internal/rangecheck"
)

// DevSecret signs tokens when JWT_SECRET_KEY is unset in development.
const DevSecret = "dev-secret-change-me"

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabasePath     string        `mapstructure:"DATABASE_PATH"`
	JWTSecret        string        `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer        string        `mapstructure:"JWT_ISSUER"`
	AccessTTL        time.Duration `mapstructure:"JWT_ACCESS_TOKEN_EXPIRES"`
	RefreshTTL       time.Duration `mapstructure:"JWT_REFRESH_TOKEN_EXPIRES"`
	BcryptCost       int           `mapstructure:"BCRYPT_COST"`
	SeedDemo         bool          `mapstructure:"SEED_DEMO"`
	AbnormalRule     string        `mapstructure:"ABNORMAL_RULE"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	AuthRateLimitRPS float64       `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
}

var keys = []string{
	"PORT",
	"ENV",
	"DATABASE_PATH",
	"JWT_SECRET_KEY",
	"JWT_ISSUER",
	"JWT_ACCESS_TOKEN_EXPIRES",
	"JWT_REFRESH_TOKEN_EXPIRES",
	"BCRYPT_COST",
	"SEED_DEMO",
	"ABNORMAL_RULE",
	"CORS_ORIGINS",
	"AUTH_RATE_LIMIT_RPS",
	"LOG_LEVEL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "5000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DATABASE_PATH", "data/medical.db")
	v.SetDefault("JWT_ISSUER", "medical-book")
	v.SetDefault("JWT_ACCESS_TOKEN_EXPIRES", "24h")
	v.SetDefault("JWT_REFRESH_TOKEN_EXPIRES", "720h")
	v.SetDefault("BCRYPT_COST", bcrypt.DefaultCost)
	v.SetDefault("SEED_DEMO", true)
	v.SetDefault("ABNORMAL_RULE", rangecheck.DefaultRule)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("AUTH_RATE_LIMIT_RPS", 5)
	v.SetDefault("LOG_LEVEL", "info")

	// Bind explicitly so Unmarshal sees variables without defaults
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = DevSecret
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that the configuration is safe to serve with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required when ENV=%q", c.Env)
	}
	if !c.IsDev() && c.JWTSecret == DevSecret {
		return fmt.Errorf("JWT_SECRET_KEY must not be the development secret when ENV=%q", c.Env)
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TOKEN_EXPIRES must be positive, got %s", c.AccessTTL)
	}
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRES must be positive, got %s", c.RefreshTTL)
	}
	if c.RefreshTTL < c.AccessTTL {
		return fmt.Errorf("JWT_REFRESH_TOKEN_EXPIRES (%s) is shorter than JWT_ACCESS_TOKEN_EXPIRES (%s)", c.RefreshTTL, c.AccessTTL)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.AuthRateLimitRPS < 0 {
		return fmt.Errorf("AUTH_RATE_LIMIT_RPS must not be negative, got %g", c.AuthRateLimitRPS)
	}
	if _, err := c.Rule(); err != nil {
		return fmt.Errorf("ABNORMAL_RULE: %w", err)
	}
	return nil
}

func (c *Config) Rule() (*rangecheck.Rule, error) {
	return rangecheck.Compile(c.AbnormalRule)
}

func (c *Config) AuthOptions() auth.Options {
	return auth.Options{
		Secret:     []byte(c.JWTSecret),
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		Issuer:     c.JWTIssuer,
	}
}
