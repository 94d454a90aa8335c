// Lumen Core - Smart Home Light Control
//
// This is the main entry point for the Lumen Core daemon. It reconciles
// device telemetry from MQTT, user commands from the REST API, and the
// liveness monitor into a single authoritative device state, and pushes
// every accepted change to connected UIs over WebSocket.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lumenhome/lumen-core/migrations"

	"github.com/lumenhome/lumen-core/internal/api"
	"github.com/lumenhome/lumen-core/internal/auth"
	"github.com/lumenhome/lumen-core/internal/command"
	"github.com/lumenhome/lumen-core/internal/device"
	"github.com/lumenhome/lumen-core/internal/infrastructure/config"
	"github.com/lumenhome/lumen-core/internal/infrastructure/database"
	"github.com/lumenhome/lumen-core/internal/infrastructure/influxdb"
	"github.com/lumenhome/lumen-core/internal/infrastructure/logging"
	"github.com/lumenhome/lumen-core/internal/infrastructure/mqtt"
	"github.com/lumenhome/lumen-core/internal/ingest"
	"github.com/lumenhome/lumen-core/internal/liveness"
	"github.com/lumenhome/lumen-core/internal/schedule"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Lumen Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Repositories and services over the shared connection
	deviceRepo := device.NewSQLiteRepository(db.DB)
	scheduleRepo := schedule.NewSQLiteRepository(db.DB)
	userService := auth.NewService(auth.NewUserRepository(db.DB))

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub is shared between the API server, the ingest pipeline,
	// the liveness monitor, and the schedule executor.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Command dispatcher publishes user and scheduled commands toward devices
	dispatcher := command.NewDispatcher(mqttClient, byte(cfg.MQTT.QoS), log)

	// Telemetry ingest pipeline
	var metrics ingest.MetricsSink
	if influxClient != nil {
		metrics = influxClient
	}
	ingestSvc := ingest.New(deviceRepo, hub, metrics, cfg.Ingest, log)
	if subErr := ingestSvc.Subscribe(mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
		return fmt.Errorf("subscribing to telemetry topics: %w", subErr)
	}
	ingestSvc.Start(ctx)
	log.Info("telemetry ingest started", "queue_size", cfg.Ingest.QueueSize)

	// Liveness monitor marks stale powered-on devices offline
	monitor := liveness.NewMonitor(deviceRepo, hub, cfg.Liveness, log)
	monitor.Start(ctx)
	log.Info("liveness monitor started",
		"sweep_interval_s", cfg.Liveness.SweepInterval,
		"staleness_threshold_s", cfg.Liveness.StalenessThreshold,
	)

	// Schedule executor fires on/off commands at configured wall-clock times
	executor := schedule.NewExecutor(scheduleRepo, dispatcher, hub, cfg.Scheduler, log)
	executor.Start(ctx)
	log.Info("schedule executor started", "tick_interval_s", cfg.Scheduler.TickInterval)

	// HTTP API server
	server, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Liveness:    cfg.Liveness,
		Logger:      log,
		Devices:     deviceRepo,
		Schedules:   scheduleRepo,
		Users:       userService,
		Dispatcher:  dispatcher,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("Lumen Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses LUMEN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LUMEN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
