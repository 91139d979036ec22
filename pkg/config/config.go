package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for dbcanvas-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3450"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Engine store configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Graph build configuration
	Graph GraphConfig `yaml:"graph"`
}

// DatabaseConfig holds PostgreSQL configuration for the engine's own store
// (the graph cache), not for customer datasources.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dbcanvas"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dbcanvas_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// GraphConfig holds graph build settings.
type GraphConfig struct {
	// DefaultRowLimit is used when a data-graph caller does not supply a
	// per-table row limit.
	DefaultRowLimit int `yaml:"default_row_limit" env:"GRAPH_DEFAULT_ROW_LIMIT" env-default:"100"`
	// MaxRowLimit caps caller-supplied per-table row limits.
	MaxRowLimit int `yaml:"max_row_limit" env:"GRAPH_MAX_ROW_LIMIT" env-default:"1000"`
	// ProductGroupsPath points at an optional YAML file mapping table name
	// prefixes to product groups. Empty means prefix-only grouping.
	ProductGroupsPath string `yaml:"product_groups_path" env:"GRAPH_PRODUCT_GROUPS_PATH" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Graph.DefaultRowLimit <= 0 {
		return fmt.Errorf("graph.default_row_limit must be positive, got %d", c.Graph.DefaultRowLimit)
	}
	if c.Graph.MaxRowLimit < c.Graph.DefaultRowLimit {
		return fmt.Errorf("graph.max_row_limit (%d) must be >= graph.default_row_limit (%d)",
			c.Graph.MaxRowLimit, c.Graph.DefaultRowLimit)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
