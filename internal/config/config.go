// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends understood by bootstrap.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Database drivers for the sql backend.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	RedisURL       string `mapstructure:"REDIS_URL"`

	StorageBackend string `mapstructure:"STORAGE_BACKEND"`
	StorageKey     string `mapstructure:"STORAGE_KEY"`

	DBDriver                 string `mapstructure:"DB_DRIVER"`
	DBHost                   string `mapstructure:"DB_HOST"`
	DBPort                   string `mapstructure:"DB_PORT"`
	DBUser                   string `mapstructure:"DB_USER"`
	DBPassword               string `mapstructure:"DB_PASSWORD"`
	DBName                   string `mapstructure:"DB_NAME"`
	DBSSLMode                string `mapstructure:"DB_SSLMODE"`
	SQLitePath               string `mapstructure:"SQLITE_PATH"`
	DBMaxOpenConns           int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns           int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`

	ReportThreshold int           `mapstructure:"REPORT_THRESHOLD"`
	PostTTL         time.Duration `mapstructure:"POST_TTL"`
	SweepSchedule   string        `mapstructure:"SWEEP_SCHEDULE"`

	ImageMaxUploadSizeMB int `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`
	ImageMaxEdge         int `mapstructure:"IMAGE_MAX_EDGE"`
	ImageMaxPixels       int `mapstructure:"IMAGE_MAX_PIXELS"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "live_feed=on")
	viper.SetDefault("REDIS_URL", "localhost:6379")

	viper.SetDefault("STORAGE_BACKEND", BackendMemory)
	viper.SetDefault("STORAGE_KEY", "jobPosts")

	viper.SetDefault("DB_DRIVER", DriverPostgres)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "jobboard")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("SQLITE_PATH", "jobboard.db")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	viper.SetDefault("REPORT_THRESHOLD", 3)
	viper.SetDefault("POST_TTL", "24h")
	viper.SetDefault("SWEEP_SCHEDULE", "@every 1m")

	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 5)
	viper.SetDefault("IMAGE_MAX_EDGE", 2048)
	viper.SetDefault("IMAGE_MAX_PIXELS", 40_000_000)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
}

// IsProduction reports whether the production profile is active.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int {
	return c.ImageMaxUploadSizeMB * 1024 * 1024
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.StorageKey == "" {
		return errors.New("STORAGE_KEY is required")
	}
	if c.ReportThreshold < 1 {
		return errors.New("REPORT_THRESHOLD must be at least 1")
	}
	if c.PostTTL <= 0 {
		return errors.New("POST_TTL must be positive")
	}
	if c.SweepSchedule == "" {
		return errors.New("SWEEP_SCHEDULE is required")
	}
	if c.ImageMaxUploadSizeMB <= 0 {
		return errors.New("IMAGE_MAX_UPLOAD_SIZE_MB must be positive")
	}
	if c.ImageMaxEdge <= 0 {
		return errors.New("IMAGE_MAX_EDGE must be positive")
	}
	if c.ImageMaxPixels <= 0 {
		return errors.New("IMAGE_MAX_PIXELS must be positive")
	}

	switch c.StorageBackend {
	case BackendMemory, BackendRedis:
	case BackendSQL:
		switch c.DBDriver {
		case DriverPostgres, DriverSQLite:
		default:
			return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
		}
		if c.DBConnMaxLifetimeMinutes <= 0 {
			return errors.New("DB_CONN_MAX_LIFETIME_MINUTES must be positive")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.IsProduction() {
		if c.StorageBackend == BackendMemory {
			log.Println("WARNING: STORAGE_BACKEND is 'memory' in production. Posts will not survive a restart.")
		}
		if c.StorageBackend == BackendSQL && c.DBDriver == DriverPostgres {
			if c.DBPassword == "password" || c.DBPassword == "" {
				return errors.New("a strong DB_PASSWORD is required in production")
			}
			if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
				return errors.New("DB_SSLMODE must not be 'disable' in production")
			}
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}
