// Package config loads all service configuration from environment variables
// with the CATALOG_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/catalogforge/catalog/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Provisioner ProvisionerConfig
	Approval    ApprovalConfig
	Identity    IdentityConfig
	Icons       IconStorageConfig
	Sweeper     SweeperConfig
	Log         LogConfig
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

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// CacheConfig holds the entitlement cache configuration
type CacheConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	L1Size        int
}

// ProvisionerConfig holds the external inventory/provisioning engine
// endpoint. When a token URL is set the client authenticates with OAuth2
// client credentials.
type ProvisionerConfig struct {
	URL          string
	Timeout      time.Duration
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// ApprovalConfig holds the approval-workflow service endpoint
type ApprovalConfig struct {
	URL     string
	Timeout time.Duration
}

// IdentityConfig holds identity assertion settings. The base64 identity
// header is always accepted; OIDC bearer tokens are verified additionally
// when an issuer is configured.
type IdentityConfig struct {
	AdminRole     string
	OIDCIssuer    string
	OIDCClientID  string
	HeaderName    string
}

// IconStorageConfig holds portfolio icon blob storage settings
type IconStorageConfig struct {
	Type string // "filesystem" or "s3"

	FilesystemRoot string

	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
}

// SweeperConfig holds the stuck-order-item sweeper settings
type SweeperConfig struct {
	Enabled  bool
	Schedule string
	MaxAge   time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level observability.LogLevel
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CATALOG_HOST", "0.0.0.0"),
			Port:            getEnv("CATALOG_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CATALOG_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CATALOG_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CATALOG_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CATALOG_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CATALOG_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CATALOG_DATABASE_URL", "postgres://localhost/catalog?sslmode=disable"),
			MaxOpenConns: getEnvInt("CATALOG_DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvInt("CATALOG_DATABASE_MAX_IDLE_CONNS", 2),
			ConnLifetime: getEnvDuration("CATALOG_DATABASE_CONN_LIFETIME", 30*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:       getEnvBool("CATALOG_CACHE_ENABLED", false),
			RedisAddr:     getEnv("CATALOG_REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("CATALOG_REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("CATALOG_REDIS_DB", 0),
			TTL:           getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
			L1Size:        getEnvInt("CATALOG_CACHE_L1_SIZE", 1024),
		},
		Provisioner: ProvisionerConfig{
			URL:          getEnv("CATALOG_INVENTORY_URL", "http://localhost:4000"),
			Timeout:      getEnvDuration("CATALOG_INVENTORY_TIMEOUT", 10*time.Second),
			TokenURL:     getEnv("CATALOG_INVENTORY_TOKEN_URL", ""),
			ClientID:     getEnv("CATALOG_INVENTORY_CLIENT_ID", ""),
			ClientSecret: getEnv("CATALOG_INVENTORY_CLIENT_SECRET", ""),
		},
		Approval: ApprovalConfig{
			URL:     getEnv("CATALOG_APPROVAL_URL", ""),
			Timeout: getEnvDuration("CATALOG_APPROVAL_TIMEOUT", 10*time.Second),
		},
		Identity: IdentityConfig{
			AdminRole:    getEnv("CATALOG_ADMIN_ROLE", "catalog-admin"),
			OIDCIssuer:   getEnv("CATALOG_OIDC_ISSUER", ""),
			OIDCClientID: getEnv("CATALOG_OIDC_CLIENT_ID", ""),
			HeaderName:   getEnv("CATALOG_IDENTITY_HEADER", "x-rh-identity"),
		},
		Icons: IconStorageConfig{
			Type:           getEnv("CATALOG_ICON_STORAGE_TYPE", "filesystem"),
			FilesystemRoot: getEnv("CATALOG_ICON_FILESYSTEM_ROOT", "/var/lib/catalog/icons"),
			S3Endpoint:     getEnv("CATALOG_ICON_S3_ENDPOINT", ""),
			S3Region:       getEnv("CATALOG_ICON_S3_REGION", "us-east-1"),
			S3Bucket:       getEnv("CATALOG_ICON_S3_BUCKET", ""),
			S3AccessKey:    getEnv("CATALOG_ICON_S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("CATALOG_ICON_S3_SECRET_KEY", ""),
			S3UsePathStyle: getEnvBool("CATALOG_ICON_S3_USE_PATH_STYLE", false),
		},
		Sweeper: SweeperConfig{
			Enabled:  getEnvBool("CATALOG_SWEEPER_ENABLED", true),
			Schedule: getEnv("CATALOG_SWEEPER_SCHEDULE", "*/30 * * * *"),
			MaxAge:   getEnvDuration("CATALOG_SWEEPER_MAX_AGE", 6*time.Hour),
		},
		Log: LogConfig{
			Level: observability.ParseLogLevel(getEnv("CATALOG_LOG_LEVEL", "info")),
		},
	}

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
		return fmt.Errorf("database URL is required")
	}
	if c.Provisioner.URL == "" {
		return fmt.Errorf("inventory URL is required")
	}

	switch c.Icons.Type {
	case "filesystem":
		if c.Icons.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem icon storage")
		}
	case "s3":
		if c.Icons.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 icon storage")
		}
	default:
		return fmt.Errorf("invalid icon storage type: %s (must be filesystem or s3)", c.Icons.Type)
	}

	if c.Identity.OIDCIssuer != "" && c.Identity.OIDCClientID == "" {
		return fmt.Errorf("OIDC client ID is required when an OIDC issuer is configured")
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true"
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
