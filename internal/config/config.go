package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mkessler/libmirror/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig          `yaml:"server"`
	Library    LibraryConfig         `yaml:"library"`
	Export     ExportConfig          `yaml:"export"`
	Categories []domain.CategoryRule `yaml:"categories"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"127.0.0.1"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9810"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"5m"`
}

// LibraryConfig locates the reference-manager data directory. The
// directory is expected to contain the library database and the pooled
// attachment storage, laid out the way the manager keeps them.
type LibraryConfig struct {
	DataDir string `yaml:"data_dir" envconfig:"LIBRARY_DATA_DIR"`
}

// DatabasePath returns the library database file inside the data dir.
func (c LibraryConfig) DatabasePath() string {
	return filepath.Join(c.DataDir, "zotero.sqlite")
}

// StorageRoot returns the pooled attachment directory, addressed as
// <StorageRoot>/<attachmentKey>/<filename>.
func (c LibraryConfig) StorageRoot() string {
	return filepath.Join(c.DataDir, "storage")
}

// ExportConfig holds mirror export configuration.
type ExportConfig struct {
	OutputRoot        string `yaml:"output_root" envconfig:"EXPORT_OUTPUT_ROOT"`
	DefaultCollection string `yaml:"default_collection" envconfig:"DEFAULT_COLLECTION"`
	Workers           int    `yaml:"workers" envconfig:"EXPORT_WORKERS" default:"4"`
	MinFreeBytes      int64  `yaml:"min_free_bytes" envconfig:"EXPORT_MIN_FREE_BYTES" default:"268435456"` // 256MB
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

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Library.DataDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Library.DataDir = filepath.Join(home, "Zotero")
		}
	}
	if c.Export.OutputRoot == "" {
		if cwd, err := os.Getwd(); err == nil {
			c.Export.OutputRoot = filepath.Join(cwd, "Library_Export")
		}
	}
	if len(c.Categories) == 0 {
		c.Categories = domain.DefaultCategoryRules()
	}
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Library.DataDir == "" {
		return fmt.Errorf("LIBRARY_DATA_DIR is required")
	}
	if c.Export.OutputRoot == "" {
		return fmt.Errorf("EXPORT_OUTPUT_ROOT is required")
	}
	if c.Export.Workers <= 0 {
		return fmt.Errorf("EXPORT_WORKERS must be positive")
	}
	for _, rule := range c.Categories {
		if rule.Label == "" {
			return fmt.Errorf("category rule with empty label")
		}
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
