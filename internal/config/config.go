// Package config loads the gateway configuration from YAML with
// environment variable overrides.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the ibgate service.
type Config struct {
	Server  Server  `yaml:"server"`
	Gateway Gateway `yaml:"gateway"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Gateway selects and tunes the venue session implementation.
type Gateway struct {
	// Broker is the session backend: "gateway", "alpaca", or "simulator".
	Broker string `yaml:"broker"`

	// ConnectTimeoutSec bounds the venue connect handshake.
	ConnectTimeoutSec int `yaml:"connect_timeout_sec"`

	// CallTimeoutSec bounds each individual venue call.
	CallTimeoutSec int `yaml:"call_timeout_sec"`
}

// Alpaca holds credentials and endpoint for the Alpaca session backend.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into
// a Config struct, applies environment variable overrides, and fills in
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a Config with every default applied, for running
// without a config file.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IBGATE_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("IBGATE_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("IBGATE_BROKER"); v != "" {
		cfg.Gateway.Broker = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Canonical Alpaca env var names take priority over the ALPACA_* ones.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills zero-valued fields with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Gateway.Broker == "" {
		cfg.Gateway.Broker = "gateway"
	}
	if cfg.Gateway.ConnectTimeoutSec == 0 {
		cfg.Gateway.ConnectTimeoutSec = 15
	}
	if cfg.Gateway.CallTimeoutSec == 0 {
		cfg.Gateway.CallTimeoutSec = 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
