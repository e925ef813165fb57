// Package config contains everything related to gateway configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Default values.
const (
	defaultAddr        = ":8080"
	defaultDBPath      = "spgate.db"
	defaultLogLevel    = "info"
	defaultHTTPTimeout = 60 * time.Second
)

// Config holds the gateway configuration. Values come from an optional TOML
// file with environment variables taking precedence.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Graph   GraphConfig   `toml:"graph"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`
}

// ServerConfig configures the inbound HTTP listener.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `toml:"addr"`
}

// GraphConfig configures authentication against Microsoft Entra ID and the
// target SharePoint site.
type GraphConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	SiteID       string `toml:"site_id"`
	// Timeout is the per-request timeout for outbound Graph calls.
	Timeout time.Duration `toml:"timeout"`
}

// HistoryConfig configures the local transfer log.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables the log.
	Path string `toml:"path"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
	// Console switches from JSON to human-readable console output.
	Console bool `toml:"console"`
}

// Load reads configuration from an optional TOML file at path, a .env file in
// the working directory, and environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	// .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		Server:  ServerConfig{Addr: defaultAddr},
		Graph:   GraphConfig{Timeout: defaultHTTPTimeout},
		History: HistoryConfig{Path: defaultDBPath},
		Log:     LogConfig{Level: defaultLogLevel},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Graph.TenantID = getEnvString("SP_TENANT_ID", cfg.Graph.TenantID)
	cfg.Graph.ClientID = getEnvString("SP_CLIENT_ID", cfg.Graph.ClientID)
	cfg.Graph.ClientSecret = getEnvString("SP_CLIENT_SECRET", cfg.Graph.ClientSecret)
	cfg.Graph.SiteID = getEnvString("SP_SITE_ID", cfg.Graph.SiteID)
	cfg.Server.Addr = getEnvString("SPGATE_ADDR", cfg.Server.Addr)
	cfg.History.Path = getEnvString("SPGATE_DB_PATH", cfg.History.Path)
	cfg.Log.Level = getEnvString("SPGATE_LOG_LEVEL", cfg.Log.Level)

	return cfg, nil
}

// Validate checks that the credentials required to reach Graph are present.
func (c *Config) Validate() error {
	if c.Graph.TenantID == "" {
		return errors.New("missing SP_TENANT_ID")
	}
	if c.Graph.ClientID == "" {
		return errors.New("missing SP_CLIENT_ID")
	}
	if c.Graph.ClientSecret == "" {
		return errors.New("missing SP_CLIENT_SECRET")
	}
	if c.Graph.SiteID == "" {
		return errors.New("missing SP_SITE_ID")
	}
	if c.Server.Addr == "" {
		return errors.New("missing listen address")
	}
	return nil
}

func getEnvString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
