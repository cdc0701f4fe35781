package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
api:
  host: "127.0.0.1"
  port: 3001
x32:
  device_port: 10023
  query_timeout_ms: 1500
store:
  matrix_path: "/tmp/matrix.json"
  port_path: "/tmp/port"
database:
  enabled: false
logging:
  level: "debug"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 3001 {
		t.Errorf("API.Port = %d, want 3001", cfg.API.Port)
	}
	if cfg.X32.QueryTimeoutMS != 1500 {
		t.Errorf("X32.QueryTimeoutMS = %d, want 1500", cfg.X32.QueryTimeoutMS)
	}
	if got := cfg.X32.GetQueryTimeout(); got != 1500*time.Millisecond {
		t.Errorf("GetQueryTimeout() = %v, want 1.5s", got)
	}
	if cfg.Database.Enabled {
		t.Error("Database.Enabled = true, want false")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.X32.DevicePort != 10023 {
		t.Errorf("X32.DevicePort = %d, want 10023", cfg.X32.DevicePort)
	}
	if cfg.X32.WatchdogIntervalMS != 5000 {
		t.Errorf("X32.WatchdogIntervalMS = %d, want 5000", cfg.X32.WatchdogIntervalMS)
	}
	if cfg.Database.RetentionDays != 30 {
		t.Errorf("Database.RetentionDays = %d, want 30", cfg.Database.RetentionDays)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want %q", cfg.WebSocket.Path, "/ws")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DUBSWITCH_API_PORT", "4567")
	t.Setenv("DUBSWITCH_MQTT_HOST", "broker.local")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("api:\n  port: 3000\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 4567 {
		t.Errorf("API.Port = %d, want 4567 (env override)", cfg.API.Port)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "device port out of range",
			mutate:  func(c *Config) { c.X32.DevicePort = 70000 },
			wantErr: true,
		},
		{
			name:    "zero query timeout",
			mutate:  func(c *Config) { c.X32.QueryTimeoutMS = 0 },
			wantErr: true,
		},
		{
			name:    "empty matrix path",
			mutate:  func(c *Config) { c.Store.MatrixPath = "" },
			wantErr: true,
		},
		{
			name:    "database enabled without path",
			mutate:  func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Database.RetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
