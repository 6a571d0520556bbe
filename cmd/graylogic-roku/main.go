// Gray Logic Roku - streaming player bridge
//
// This is the main entry point for the Gray Logic Roku service. It owns the
// Roku players on the local network, polls them over the External Control
// Protocol and exposes them to Gray Logic Core over MQTT and a small REST
// API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nerrad567/gray-logic-roku/internal/api"
	"github.com/nerrad567/gray-logic-roku/internal/bridges/roku"
	"github.com/nerrad567/gray-logic-roku/internal/device"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-roku/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-roku/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configPathEnv     = "GRAYLOGIC_ROKU_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Roku",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	if err := loadDotEnv(".env"); err != nil {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Bridge config is needed before MQTT connects: its ID names the LWT.
	var bridgeCfg *roku.Config
	if cfg.Protocols.Roku.Enabled {
		bridgeCfg, err = roku.LoadConfig(cfg.Protocols.Roku.ConfigFile)
		if err != nil {
			return fmt.Errorf("loading roku bridge config: %w", err)
		}
		log.Info("roku bridge config loaded",
			"path", cfg.Protocols.Roku.ConfigFile,
			"devices", len(bridgeCfg.Devices),
			"discovery", bridgeCfg.Discovery.Enabled,
		)
	}

	db, err := database.Open(database.FromConfig(cfg.Database))
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log.Component("device"))
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	stateHistory := device.NewSQLiteStateHistoryRepository(db.DB)
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	var mqttOpts []mqtt.Option
	if bridgeCfg != nil {
		will, willErr := bridgeWill(bridgeCfg.Bridge.ID)
		if willErr != nil {
			return fmt.Errorf("building MQTT will: %w", willErr)
		}
		mqttOpts = append(mqttOpts, mqtt.WithWill(will))
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, mqttOpts...)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", mqtt.BrokerURL(cfg.MQTT),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient, err := influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		influxClient = nil
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	var bridge *roku.Bridge
	if bridgeCfg != nil {
		var metrics roku.MetricsWriter
		if influxClient != nil {
			metrics = influxClient
		}
		bridge, err = startRokuBridge(ctx, bridgeCfg, mqttClient, deviceRegistry, metrics, log)
		if err != nil {
			return fmt.Errorf("starting roku bridge: %w", err)
		}
		defer func() {
			log.Info("stopping roku bridge")
			bridge.Stop()
		}()
	} else {
		log.Info("roku bridge disabled")
	}

	deps := api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Security: cfg.Security,
		Logger:   log.Component("api"),
		Registry: deviceRegistry,
		History:  stateHistory,
		MQTT:     mqttClient,
		Version:  version,

		HistoryRetention: cfg.GetHistoryRetention(),
	}
	if bridge != nil {
		deps.Roku = bridge
	}
	if influxClient != nil {
		deps.Telemetry = influxClient
	}

	server, err := api.New(deps)
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

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred closes run in reverse: API, bridge, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns GRAYLOGIC_ROKU_CONFIG or the default path.
func getConfigPath() string {
	if path := os.Getenv(configPathEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadDotEnv loads environment variables from path when the file exists.
// Variables already set in the environment win.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
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

// bridgeWill builds the retained offline health message the broker
// publishes if this process disappears.
func bridgeWill(bridgeID string) (mqtt.Will, error) {
	reporter := roku.NewHealthReporter(roku.HealthReporterConfig{BridgeID: bridgeID})
	payload, err := reporter.GetLWTPayload()
	if err != nil {
		return mqtt.Will{}, err
	}
	return mqtt.Will{
		Topic:    reporter.GetLWTTopic(),
		Payload:  payload,
		QoS:      1,
		Retained: true,
	}, nil
}

// startRokuBridge creates and starts the Roku bridge.
func startRokuBridge(ctx context.Context, cfg *roku.Config, mqttClient *mqtt.Client, registry *device.Registry, metrics roku.MetricsWriter, log *logging.Logger) (*roku.Bridge, error) {
	bridge, err := roku.NewBridge(roku.BridgeOptions{
		Config:     cfg,
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Registry:   &registryAdapter{registry: registry},
		Metrics:    metrics,
		Logger:     log.Component("roku"),
		Version:    version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating roku bridge: %w", err)
	}

	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}
	log.Info("roku bridge started", "bridge_id", cfg.Bridge.ID)
	return bridge, nil
}
