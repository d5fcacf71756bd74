package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ihuguet/nmstate/internal/domain/constants"
	"github.com/ihuguet/nmstate/internal/domain/errors"
)

// Config is a struct that holds application configuration
type Config struct {
	Engine   EngineConfig
	Database DatabaseConfig
	Service  ServiceConfig
	Health   HealthConfig
}

// EngineConfig holds reconciliation engine configuration
type EngineConfig struct {
	VerifyTimeout     time.Duration
	VerifyInterval    time.Duration
	CheckpointDir     string
	CheckpointTimeout time.Duration
	IgnoredInterfaces []string
	NetworkNamespace  string
}

// DatabaseConfig is a struct that holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// ServiceConfig holds service mode (reconcile loop) configuration
type ServiceConfig struct {
	NodeName        string
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	BackoffFactor   float64
}

// HealthConfig is a struct that holds health check configuration
type HealthConfig struct {
	Port string
}

// ConfigLoader is an interface for loading configuration
type ConfigLoader interface {
	Load() (*Config, error)
}

// EnvironmentConfigLoader is an implementation that loads configuration from environment variables
type EnvironmentConfigLoader struct{}

// NewEnvironmentConfigLoader creates a new EnvironmentConfigLoader
func NewEnvironmentConfigLoader() ConfigLoader {
	return &EnvironmentConfigLoader{}
}

// Load loads configuration from environment variables
func (l *EnvironmentConfigLoader) Load() (*Config, error) {
	hostname, _ := os.Hostname()

	config := &Config{
		Engine: EngineConfig{
			VerifyTimeout:     getEnvDurationOrDefault("NMSTATE_VERIFY_TIMEOUT", 5*time.Second),
			VerifyInterval:    getEnvDurationOrDefault("NMSTATE_VERIFY_INTERVAL", 500*time.Millisecond),
			CheckpointDir:     getEnvOrDefault("NMSTATE_CHECKPOINT_DIR", constants.DefaultCheckpointDir),
			CheckpointTimeout: getEnvDurationOrDefault("NMSTATE_CHECKPOINT_TIMEOUT", 60*time.Second),
			IgnoredInterfaces: getEnvListOrDefault("NMSTATE_IGNORE_IFACE", nil),
			NetworkNamespace:  getEnvOrDefault("NMSTATE_NETNS", ""),
		},
		Database: DatabaseConfig{
			Host:         getEnvOrDefault("DB_HOST", constants.DefaultDBHost),
			Port:         getEnvOrDefault("DB_PORT", constants.DefaultDBPort),
			User:         getEnvOrDefault("DB_USER", "root"),
			Password:     getEnvOrDefault("DB_PASSWORD", ""),
			Database:     getEnvOrDefault("DB_NAME", constants.DefaultDBName),
			MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDurationOrDefault("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Service: ServiceConfig{
			NodeName:        getEnvOrDefault("NODE_NAME", hostname),
			PollInterval:    getEnvDurationOrDefault("POLL_INTERVAL", 30*time.Second),
			MaxPollInterval: getEnvDurationOrDefault("MAX_POLL_INTERVAL", 5*time.Minute),
			BackoffFactor:   getEnvFloatOrDefault("BACKOFF_FACTOR", 2.0),
		},
		Health: HealthConfig{
			Port: getEnvOrDefault("HEALTH_PORT", constants.DefaultHealthPort),
		},
	}

	// Validate configuration
	if err := l.validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate validates the configuration
func (l *EnvironmentConfigLoader) validate(config *Config) error {
	// Validate engine configuration
	if config.Engine.VerifyTimeout <= 0 {
		return errors.NewValidationError("invalid verification timeout", nil)
	}
	if config.Engine.VerifyInterval <= 0 {
		return errors.NewValidationError("invalid verification interval", nil)
	}
	if config.Engine.VerifyInterval >= config.Engine.VerifyTimeout {
		return errors.NewValidationError("verification interval must be shorter than timeout", nil)
	}
	if config.Engine.CheckpointTimeout <= 0 {
		return errors.NewValidationError("invalid checkpoint timeout", nil)
	}

	// Validate database configuration
	if config.Database.Host == "" {
		return errors.NewValidationError("database host not configured", nil)
	}
	if config.Database.Port == "" {
		return errors.NewValidationError("database port not configured", nil)
	}
	if config.Database.User == "" {
		return errors.NewValidationError("database user not configured", nil)
	}
	if config.Database.Database == "" {
		return errors.NewValidationError("database name not configured", nil)
	}

	// Validate service configuration
	if config.Service.NodeName == "" {
		return errors.NewValidationError("node name not configured", nil)
	}
	if config.Service.PollInterval <= 0 {
		return errors.NewValidationError("invalid polling interval", nil)
	}
	if config.Service.MaxPollInterval < config.Service.PollInterval {
		return errors.NewValidationError("max polling interval shorter than base interval", nil)
	}

	// Validate health check configuration
	if config.Health.Port == "" {
		return errors.NewValidationError("health check port not configured", nil)
	}

	return nil
}

// Environment variable helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}
