package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/campusgate/campusgate/pkg/auth"
	"github.com/campusgate/campusgate/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Google        GoogleConfig
	Audit         AuditConfig
	Observability ObservabilityConfig
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

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds Redis settings. Redis is optional; with no URL the
// portal falls back to in-process rate limiting.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// AuthConfig holds token issuance settings
type AuthConfig struct {
	SigningKey auth.Secret
	Issuer     string
	TokenTTL   time.Duration

	// PolicyFile optionally overrides the built-in access rules
	PolicyFile string
}

// GoogleConfig holds Google sign-in settings. ClientIDs lists every
// audience accepted on incoming ID tokens (web, Android, iOS clients).
type GoogleConfig struct {
	Enabled      bool
	IssuerURL    string
	ClientIDs    []string
	ClientSecret string
	RedirectURL  string
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	Enabled   bool
	Retention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CAMPUSGATE_HOST", "0.0.0.0"),
			Port:            getEnv("CAMPUSGATE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CAMPUSGATE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CAMPUSGATE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CAMPUSGATE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CAMPUSGATE_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CAMPUSGATE_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CAMPUSGATE_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CAMPUSGATE_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("CAMPUSGATE_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("CAMPUSGATE_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("CAMPUSGATE_REDIS_URL", ""),
			Password: getEnv("CAMPUSGATE_REDIS_PASSWORD", ""),
			DB:       getEnvInt("CAMPUSGATE_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			SigningKey: auth.Secret(getEnv("CAMPUSGATE_SIGNING_KEY", "")),
			Issuer:     getEnv("CAMPUSGATE_TOKEN_ISSUER", "campusgate"),
			TokenTTL:   getEnvDuration("CAMPUSGATE_TOKEN_TTL", time.Hour),
			PolicyFile: getEnv("CAMPUSGATE_POLICY_FILE", ""),
		},
		Google: GoogleConfig{
			IssuerURL:    getEnv("CAMPUSGATE_GOOGLE_ISSUER", "https://accounts.google.com"),
			ClientIDs:    splitList(getEnv("CAMPUSGATE_GOOGLE_CLIENT_IDS", "")),
			ClientSecret: getEnv("CAMPUSGATE_GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("CAMPUSGATE_GOOGLE_REDIRECT_URL", ""),
		},
		Audit: AuditConfig{
			Enabled:   getEnvBool("CAMPUSGATE_AUDIT_ENABLED", true),
			Retention: getEnvDuration("CAMPUSGATE_AUDIT_RETENTION", 90*24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:           observability.ParseLogLevel(getEnv("CAMPUSGATE_LOG_LEVEL", "info")),
			MetricsEnabled:     getEnvBool("CAMPUSGATE_METRICS_ENABLED", true),
			OTelEnabled:        getEnvBool("CAMPUSGATE_OTEL_ENABLED", false),
			OTelEndpoint:       getEnv("CAMPUSGATE_OTEL_ENDPOINT", "localhost:4317"),
			OTelServiceName:    getEnv("CAMPUSGATE_OTEL_SERVICE_NAME", "campusgate"),
			OTelServiceVersion: getEnv("CAMPUSGATE_OTEL_SERVICE_VERSION", "1.0.0"),
			OTelInsecure:       getEnvBool("CAMPUSGATE_OTEL_INSECURE", true),
		},
	}

	cfg.Google.Enabled = len(cfg.Google.ClientIDs) > 0

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if len(c.Auth.SigningKey) < 32 {
		return fmt.Errorf("signing key must be at least 32 bytes")
	}
	if c.Auth.Issuer == "" {
		return fmt.Errorf("token issuer is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}

	if c.Google.Enabled && c.Google.IssuerURL == "" {
		return fmt.Errorf("google issuer URL is required when google login is enabled")
	}

	if c.Audit.Enabled && c.Audit.Retention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// splitList parses a comma-separated list, trimming whitespace and
// dropping empty entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
