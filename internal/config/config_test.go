package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	yamlContent := []byte(`
server:
  host: "127.0.0.1"
  port: 8000
gateway:
  broker: "simulator"
  connect_timeout_sec: 20
  call_timeout_sec: 5
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
logging:
  level: "debug"
  format: "text"
`)

	tmpFile, err := os.CreateTemp("", "ibgate-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	// Clear any environment overrides that might interfere.
	os.Unsetenv("IBGATE_HOST")
	os.Unsetenv("IBGATE_PORT")
	os.Unsetenv("IBGATE_BROKER")
	os.Unsetenv("ALPACA_API_KEY")
	os.Unsetenv("ALPACA_API_SECRET")
	os.Unsetenv("APCA_API_KEY_ID")
	os.Unsetenv("APCA_API_SECRET_KEY")
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Gateway.Broker != "simulator" {
		t.Errorf("Gateway.Broker = %q, want %q", cfg.Gateway.Broker, "simulator")
	}
	if cfg.Gateway.ConnectTimeoutSec != 20 {
		t.Errorf("Gateway.ConnectTimeoutSec = %d, want %d", cfg.Gateway.ConnectTimeoutSec, 20)
	}
	if cfg.Gateway.CallTimeoutSec != 5 {
		t.Errorf("Gateway.CallTimeoutSec = %d, want %d", cfg.Gateway.CallTimeoutSec, 5)
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "text")
	}
}

func TestDefaults(t *testing.T) {
	os.Unsetenv("IBGATE_HOST")
	os.Unsetenv("IBGATE_PORT")
	os.Unsetenv("IBGATE_BROKER")
	os.Unsetenv("LOG_LEVEL")

	cfg := Default()

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8000)
	}
	if cfg.Gateway.Broker != "gateway" {
		t.Errorf("Gateway.Broker = %q, want %q", cfg.Gateway.Broker, "gateway")
	}
	if cfg.Gateway.ConnectTimeoutSec != 15 {
		t.Errorf("Gateway.ConnectTimeoutSec = %d, want %d", cfg.Gateway.ConnectTimeoutSec, 15)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestEnvOverrides(t *testing.T) {
	yamlContent := []byte(`
gateway:
  broker: "gateway"
`)

	tmpFile, err := os.CreateTemp("", "ibgate-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	tmpFile.Close()

	t.Setenv("IBGATE_BROKER", "alpaca")
	t.Setenv("IBGATE_PORT", "9001")
	t.Setenv("APCA_API_KEY_ID", "env-key")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Gateway.Broker != "alpaca" {
		t.Errorf("Gateway.Broker = %q, want %q", cfg.Gateway.Broker, "alpaca")
	}
	if cfg.Server.Port != 9001 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9001)
	}
	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "env-key")
	}
}
