package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validJWTSecret meets the 32-character minimum requirement.
const validJWTSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
site:
  id: "test-home"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  host: "0.0.0.0"
  port: 8090
liveness:
  sweep_interval: 10
  staleness_threshold: 5
security:
  jwt:
    secret: "` + validJWTSecret + `"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-home" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-home")
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if got := cfg.Liveness.Interval(); got != 10*time.Second {
		t.Errorf("Liveness.Interval() = %v, want 10s", got)
	}
	if got := cfg.Liveness.Threshold(); got != 5*time.Second {
		t.Errorf("Liveness.Threshold() = %v, want 5s", got)
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
security:
  jwt:
    secret: "` + validJWTSecret + `"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Liveness.SweepInterval != defaultSweepInterval {
		t.Errorf("Liveness.SweepInterval = %d, want default %d", cfg.Liveness.SweepInterval, defaultSweepInterval)
	}
	if cfg.Liveness.StalenessThreshold != defaultStalenessThreshold {
		t.Errorf("Liveness.StalenessThreshold = %d, want default %d", cfg.Liveness.StalenessThreshold, defaultStalenessThreshold)
	}
	if cfg.Ingest.QueueSize != defaultIngestQueueSize {
		t.Errorf("Ingest.QueueSize = %d, want default %d", cfg.Ingest.QueueSize, defaultIngestQueueSize)
	}
	if cfg.Scheduler.TickInterval != defaultSchedulerTick {
		t.Errorf("Scheduler.TickInterval = %d, want default %d", cfg.Scheduler.TickInterval, defaultSchedulerTick)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	content := `
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "from-file"
security:
  jwt:
    secret: "` + validJWTSecret + `"
`
	t.Setenv("LUMEN_MQTT_HOST", "from-env")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "from-env" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "from-env")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaults()
		cfg.Security.JWT.Secret = validJWTSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "empty site id", mutate: func(c *Config) { c.Site.ID = "" }, wantErr: true},
		{name: "empty database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid api port", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "zero sweep interval", mutate: func(c *Config) { c.Liveness.SweepInterval = 0 }, wantErr: true},
		{name: "zero staleness threshold", mutate: func(c *Config) { c.Liveness.StalenessThreshold = 0 }, wantErr: true},
		{name: "zero queue size", mutate: func(c *Config) { c.Ingest.QueueSize = 0 }, wantErr: true},
		{name: "missing jwt secret", mutate: func(c *Config) { c.Security.JWT.Secret = "" }, wantErr: true},
		{name: "short jwt secret", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
