package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port                   string        `mapstructure:"PORT"`
	Env                    string        `mapstructure:"ENV"`
	DatabaseURL            string        `mapstructure:"DATABASE_URL"`
	DBMaxConns             int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns             int32         `mapstructure:"DB_MIN_CONNS"`
	SupabaseURL            string        `mapstructure:"SUPABASE_URL"`
	SupabaseJWTSecret      string        `mapstructure:"SUPABASE_JWT_SECRET"`
	AuthAudience           string        `mapstructure:"AUTH_AUDIENCE"`
	DefaultSite            string        `mapstructure:"DEFAULT_SITE"`
	CORSOrigins            []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS           float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst         int           `mapstructure:"RATE_LIMIT_BURST"`
	RulesFile              string        `mapstructure:"RULES_FILE"`
	MigrationsDir          string        `mapstructure:"MIGRATIONS_DIR"`
	AnalyticsBuffer        int           `mapstructure:"ANALYTICS_BUFFER"`
	AnalyticsFlushInterval time.Duration `mapstructure:"ANALYTICS_FLUSH_INTERVAL"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"SUPABASE_URL", "SUPABASE_JWT_SECRET", "AUTH_AUDIENCE", "DEFAULT_SITE",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "RULES_FILE",
	"MIGRATIONS_DIR", "ANALYTICS_BUFFER", "ANALYTICS_FLUSH_INTERVAL",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_AUDIENCE", "authenticated")
	v.SetDefault("DEFAULT_SITE", "main")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("ANALYTICS_BUFFER", 10000)
	v.SetDefault("ANALYTICS_FLUSH_INTERVAL", "5s")

	// Unmarshal only sees keys viper knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = splitList(origins)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("running in DEVELOPMENT mode: unauthenticated requests are treated as admin")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// AuthIssuer is the expected iss claim of hosted-auth tokens. Empty when no
// Supabase project URL is configured, which disables the issuer check.
func (c *Config) AuthIssuer() string {
	if c.SupabaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.SupabaseURL, "/") + "/auth/v1"
}

// JWKSURL is the hosted identity provider's key endpoint.
func (c *Config) JWKSURL() string {
	if c.SupabaseURL == "" {
		return ""
	}
	return c.AuthIssuer() + "/.well-known/jwks.json"
}

// Validate checks that the configuration is safe to run. Outside development
// tokens must be verifiable, either with the shared JWT secret or with the
// project's JWKS.
func (c *Config) Validate() error {
	if !c.IsDev() && c.SupabaseJWTSecret == "" && c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET or SUPABASE_URL must be set when ENV=%q", c.Env)
	}
	if c.SupabaseJWTSecret != "" && len(c.SupabaseJWTSecret) < 32 {
		return fmt.Errorf("SUPABASE_JWT_SECRET must be at least 32 characters, got %d", len(c.SupabaseJWTSecret))
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.AnalyticsBuffer <= 0 {
		return fmt.Errorf("ANALYTICS_BUFFER must be positive, got %d", c.AnalyticsBuffer)
	}
	if c.AnalyticsFlushInterval <= 0 {
		return fmt.Errorf("ANALYTICS_FLUSH_INTERVAL must be positive")
	}
	return nil
}
