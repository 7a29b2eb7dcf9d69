package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Google   GoogleConfig
	RBAC     RBACConfig
	Defaults DefaultsConfig
	Audit    AuditConfig

	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	ConnTimeout  time.Duration
}

// RedisConfig holds the optional permission decision cache settings.
// An empty URL disables the cache entirely.
type RedisConfig struct {
	URL         string
	DecisionTTL time.Duration
}

// AuthConfig holds token issuance settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

// GoogleConfig holds Google OIDC client settings. SSO routes are disabled
// when ClientID is empty.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	IssuerURL    string
	Scopes       []string
}

// RBACConfig holds authorization settings
type RBACConfig struct {
	// PolicyPath optionally points to a YAML role->patterns file loaded at
	// startup. Empty means the built-in role table.
	PolicyPath string
}

// DefaultsConfig holds system defaults applied to new accounts
type DefaultsConfig struct {
	RoleName     string
	CurrencyCode string
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	RetentionDays int
	// PruneSchedule is a cron expression for the retention job
	PruneSchedule string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("MERIDIAN_HOST", "0.0.0.0"),
			Port:            getEnv("MERIDIAN_PORT", "8080"),
			ReadTimeout:     getEnvDuration("MERIDIAN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("MERIDIAN_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("MERIDIAN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("MERIDIAN_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("MERIDIAN_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("MERIDIAN_DATABASE_URL", "postgres://localhost:5432/meridian?sslmode=disable"),
			MaxOpenConns: getEnvInt("MERIDIAN_DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("MERIDIAN_DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("MERIDIAN_DB_MAX_LIFETIME", 30*time.Minute),
			ConnTimeout:  getEnvDuration("MERIDIAN_DB_CONN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:         getEnv("MERIDIAN_REDIS_URL", ""),
			DecisionTTL: getEnvDuration("MERIDIAN_DECISION_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("MERIDIAN_JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("MERIDIAN_TOKEN_TTL", 12*time.Hour),
			Issuer:    getEnv("MERIDIAN_TOKEN_ISSUER", "meridian"),
		},
		Google: GoogleConfig{
			ClientID:     getEnv("MERIDIAN_GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("MERIDIAN_GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("MERIDIAN_GOOGLE_REDIRECT_URL", ""),
			IssuerURL:    getEnv("MERIDIAN_GOOGLE_ISSUER_URL", "https://accounts.google.com"),
			Scopes:       getEnvList("MERIDIAN_GOOGLE_SCOPES", []string{"openid", "email", "profile"}),
		},
		RBAC: RBACConfig{
			PolicyPath: getEnv("MERIDIAN_RBAC_POLICY_PATH", ""),
		},
		Defaults: DefaultsConfig{
			RoleName:     getEnv("MERIDIAN_DEFAULT_ROLE", "User"),
			CurrencyCode: getEnv("MERIDIAN_DEFAULT_CURRENCY", "SGD"),
		},
		Audit: AuditConfig{
			RetentionDays: getEnvInt("MERIDIAN_AUDIT_RETENTION_DAYS", 90),
			PruneSchedule: getEnv("MERIDIAN_AUDIT_PRUNE_SCHEDULE", "0 3 * * *"),
		},
		LogLevel: getEnv("MERIDIAN_LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks required settings and cross-field constraints
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("MERIDIAN_JWT_SECRET is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("MERIDIAN_DATABASE_URL is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("MERIDIAN_TOKEN_TTL must be positive")
	}
	if len(c.Defaults.CurrencyCode) != 3 {
		return fmt.Errorf("MERIDIAN_DEFAULT_CURRENCY must be a 3-letter code, got %q", c.Defaults.CurrencyCode)
	}
	if c.Google.ClientID != "" {
		if c.Google.ClientSecret == "" {
			return fmt.Errorf("MERIDIAN_GOOGLE_CLIENT_SECRET is required when client ID is set")
		}
		if c.Google.RedirectURL == "" {
			return fmt.Errorf("MERIDIAN_GOOGLE_REDIRECT_URL is required when client ID is set")
		}
	}
	return nil
}

// GoogleEnabled reports whether Google SSO is configured
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
