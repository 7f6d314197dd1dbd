package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/deshpanderitwik/temenos-sub000/pkg/crypto"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Keys    KeysConfig    `yaml:"keys"`
	Audit   AuditConfig   `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"8311"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
}

// StorageConfig holds filesystem storage configuration.
type StorageConfig struct {
	DataPath string `yaml:"data_path" envconfig:"DATA_PATH" default:"/data/records"`
}

// KeysConfig holds the two secrets the service runs on. The at-rest key
// encrypts persisted records and never leaves the process; the transport
// key is shared with the calling client for short-lived payloads. They are
// independent and must both pass key validation before first use.
type KeysConfig struct {
	AtRest    string `yaml:"at_rest_key" envconfig:"ATREST_KEY"`
	Transport string `yaml:"transport_key" envconfig:"TRANSPORT_KEY"`
}

// AuditConfig holds the optional audit trail configuration.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"AUDIT_ENABLED" default:"false"`
	Path    string `yaml:"path" envconfig:"AUDIT_DB_PATH" default:"/data/records/audit.db"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set. Both secrets
// are validated here, once, so a malformed key fails the process at startup
// instead of surfacing mid-request.
func (c *Config) Validate() error {
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.Storage.DataPath == "" {
		return fmt.Errorf("DATA_PATH is required")
	}
	if err := crypto.ValidateKey(c.Keys.AtRest); err != nil {
		return fmt.Errorf("ATREST_KEY: %w", err)
	}
	if err := crypto.ValidateKey(c.Keys.Transport); err != nil {
		return fmt.Errorf("TRANSPORT_KEY: %w", err)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
