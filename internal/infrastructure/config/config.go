package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Lumen Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Liveness  LivenessConfig  `yaml:"liveness"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// IngestConfig contains telemetry ingest settings.
type IngestConfig struct {
	// QueueSize bounds the work queue between the MQTT callback and the
	// reconcile pipeline. Messages arriving while the queue is full are dropped.
	QueueSize int `yaml:"queue_size"`

	// OpTimeout is the per-message registry operation timeout, in seconds.
	OpTimeout int `yaml:"op_timeout"`
}

// LivenessConfig contains liveness monitor settings.
//
// The sweep interval and the staleness threshold are deliberately separate:
// how often the monitor runs has nothing to do with how stale a device may
// be before it is considered offline.
type LivenessConfig struct {
	SweepInterval      int `yaml:"sweep_interval"`      // seconds between sweeps
	StalenessThreshold int `yaml:"staleness_threshold"` // seconds since last_seen before offline
}

// Interval returns the liveness sweep interval as a Duration.
func (c LivenessConfig) Interval() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// Threshold returns the staleness threshold as a Duration.
func (c LivenessConfig) Threshold() time.Duration {
	return time.Duration(c.StalenessThreshold) * time.Second
}

// SchedulerConfig contains schedule executor settings.
type SchedulerConfig struct {
	TickInterval int `yaml:"tick_interval"` // seconds between schedule evaluations
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Default configuration values applied before the YAML file is read.
const (
	defaultDatabasePath       = "data/lumen.db"
	defaultBusyTimeout        = 5
	defaultMQTTPort           = 1883
	defaultMQTTClientID       = "lumen-core"
	defaultAPIPort            = 8090
	defaultReadTimeout        = 15
	defaultWriteTimeout       = 15
	defaultIdleTimeout        = 60
	defaultWSMaxMessageSize   = 4096
	defaultWSPingInterval     = 30
	defaultWSPongTimeout      = 60
	defaultIngestQueueSize    = 256
	defaultIngestOpTimeout    = 5
	defaultSweepInterval      = 30
	defaultStalenessThreshold = 6
	defaultSchedulerTick      = 30
	defaultAccessTokenTTL     = 15
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: LUMEN_SECTION_KEY
// (e.g. LUMEN_MQTT_HOST, LUMEN_JWT_SECRET).
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// defaults returns a Config populated with default values.
func defaults() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "lumen-home",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        defaultDatabasePath,
			WALMode:     true,
			BusyTimeout: defaultBusyTimeout,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     defaultMQTTPort,
				ClientID: defaultMQTTClientID,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: defaultAPIPort,
			Timeouts: APITimeoutConfig{
				Read:  defaultReadTimeout,
				Write: defaultWriteTimeout,
				Idle:  defaultIdleTimeout,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/api/v1/ws",
			MaxMessageSize: defaultWSMaxMessageSize,
			PingInterval:   defaultWSPingInterval,
			PongTimeout:    defaultWSPongTimeout,
		},
		Ingest: IngestConfig{
			QueueSize: defaultIngestQueueSize,
			OpTimeout: defaultIngestOpTimeout,
		},
		Liveness: LivenessConfig{
			SweepInterval:      defaultSweepInterval,
			StalenessThreshold: defaultStalenessThreshold,
		},
		Scheduler: SchedulerConfig{
			TickInterval: defaultSchedulerTick,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: defaultAccessTokenTTL,
			},
		},
	}
}

// applyEnvOverrides applies LUMEN_* environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LUMEN_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LUMEN_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("LUMEN_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("LUMEN_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("LUMEN_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("LUMEN_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("LUMEN_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("LUMEN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("LUMEN_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Liveness.SweepInterval < 1 {
		errs = append(errs, "liveness.sweep_interval must be at least 1 second")
	}
	if c.Liveness.StalenessThreshold < 1 {
		errs = append(errs, "liveness.staleness_threshold must be at least 1 second")
	}

	if c.Scheduler.TickInterval < 1 {
		errs = append(errs, "scheduler.tick_interval must be at least 1 second")
	}

	if c.Ingest.QueueSize < 1 {
		errs = append(errs, "ingest.queue_size must be at least 1")
	}

	// JWT secret is required: anyone holding it can forge tokens and
	// control physical devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set LUMEN_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
