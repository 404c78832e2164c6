package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage and metrics backends.
const (
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"

	MetricsPrometheus = "prometheus"
	MetricsCloudWatch = "cloudwatch"
	MetricsNone       = "none"
)

// DefaultSecretKey is the development fallback for SECRET_KEY.
const DefaultSecretKey = "dev-secret-key-change-in-prod"

// Config holds application configuration. It is built once at startup.
type Config struct {
	SecretKey   string
	Environment string
	Port        string
	RunLocal    bool

	Storage     StorageConfig
	Idempotency IdempotencyConfig
	Metrics     MetricsConfig
	AWSRegion   string
}

type StorageConfig struct {
	Backend        string
	DatabasePath   string // sqlite
	ShipmentsTable string // dynamodb
}

type IdempotencyConfig struct {
	Table string // dynamodb
	TTL   time.Duration
}

type MetricsConfig struct {
	Backend   string
	Namespace string // cloudwatch
}

// Load reads an optional .env file, then environment variables with development defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SECRET_KEY", DefaultSecretKey)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "5000")
	v.SetDefault("RUN_LOCAL", true)
	v.SetDefault("STORAGE_BACKEND", BackendSQLite)
	v.SetDefault("DATABASE_PATH", defaultDatabasePath())
	v.SetDefault("SHIPMENTS_TABLE", "shipments")
	v.SetDefault("IDEMPOTENCY_TABLE", "shipment-idempotency")
	v.SetDefault("IDEMPOTENCY_TTL", "48h")
	v.SetDefault("METRICS_BACKEND", MetricsPrometheus)
	v.SetDefault("METRICS_NAMESPACE", "ShipmentTracker")
	v.SetDefault("AWS_REGION", "us-east-1")

	cfg := &Config{
		SecretKey:   v.GetString("SECRET_KEY"),
		Environment: v.GetString("APP_ENV"),
		Port:        v.GetString("PORT"),
		RunLocal:    v.GetBool("RUN_LOCAL"),
		Storage: StorageConfig{
			Backend:        strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_BACKEND"))),
			DatabasePath:   v.GetString("DATABASE_PATH"),
			ShipmentsTable: v.GetString("SHIPMENTS_TABLE"),
		},
		Idempotency: IdempotencyConfig{
			Table: v.GetString("IDEMPOTENCY_TABLE"),
			TTL:   v.GetDuration("IDEMPOTENCY_TTL"),
		},
		Metrics: MetricsConfig{
			Backend:   strings.ToLower(strings.TrimSpace(v.GetString("METRICS_BACKEND"))),
			Namespace: v.GetString("METRICS_NAMESPACE"),
		},
		AWSRegion: v.GetString("AWS_REGION"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and unusable values.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.DatabasePath) == "" {
			return fmt.Errorf("config: DATABASE_PATH is required for the sqlite backend")
		}
	case BackendDynamoDB:
		if c.Storage.ShipmentsTable == "" || c.Idempotency.Table == "" {
			return fmt.Errorf("config: SHIPMENTS_TABLE and IDEMPOTENCY_TABLE are required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Metrics.Backend {
	case MetricsPrometheus, MetricsCloudWatch, MetricsNone:
	default:
		return fmt.Errorf("config: unknown METRICS_BACKEND %q", c.Metrics.Backend)
	}

	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("config: IDEMPOTENCY_TTL must be positive, got %s", c.Idempotency.TTL)
	}
	if c.RunLocal && c.Port == "" {
		return fmt.Errorf("config: PORT is required when RUN_LOCAL is true")
	}
	return nil
}

// UsesDefaultSecret reports whether SECRET_KEY was left at its development value.
func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == DefaultSecretKey
}

// defaultDatabasePath places shipments.db next to the executable,
// falling back to the working directory.
func defaultDatabasePath() string {
	exe, err := os.Executable()
	if err != nil {
		return "shipments.db"
	}
	return filepath.Join(filepath.Dir(exe), "shipments.db")
}
