// Gray Logic Fleet - device identity registry
//
// fleetd keeps one record per device serial number. Devices report their
// current address on boot (POST /register-device or an MQTT report) and are
// bound to a user account during provisioning (POST /assign-user). The
// management plane lists and checks devices over HTTP and follows changes
// on the WebSocket event stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-fleet/internal/api"
	"github.com/nerrad567/gray-logic-fleet/internal/audit"
	"github.com/nerrad567/gray-logic-fleet/internal/device"
	"github.com/nerrad567/gray-logic-fleet/internal/fleet"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-fleet/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-fleet/internal/resolver"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on a clean shutdown after ctx is cancelled.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default()
	log.Info("starting Gray Logic Fleet",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"site", cfg.Site.ID,
		"level", cfg.Logging.Level,
	)

	var checks []namedCheck

	// Device store and audit trail
	store, db, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	var auditRepo audit.Repository
	if db != nil {
		auditRepo = audit.NewSQLRepository(db.DB, db.Dialect())
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		checks = append(checks, namedCheck{"database", db})
	}

	// Local identity
	identity := resolver.NewIdentitySource(identityConfig(cfg.Identity), resolver.WithIdentityLogger(log))
	location := resolver.NewLocationSource(locationConfig(cfg.Location), resolver.WithLocationLogger(log))

	serial := identity.Resolve(ctx)
	ip := location.Resolve(ctx)
	log.Info("local identity resolved",
		"serial", serial.Value,
		"serial_source", serial.Source,
		"ip_address", ip.Value,
		"ip_source", ip.Source,
	)

	// Core services
	reconciler := fleet.NewReconciler(store, identity, location)
	reconciler.SetLogger(log)
	queries := fleet.NewQueryService(store, identity, location)

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Reconciler: reconciler,
		Queries:    queries,
		Audit:      auditRepo,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	sinks := fleet.MultiSink{server.Hub()}
	var reports reportSubscriber
	if auditRepo != nil {
		sinks = append(sinks, audit.NewSink(auditRepo))
	}

	// MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		reports = mqttClient
		sinks = append(sinks, mqtt.NewEventSink(mqttClient, mqttClient.Topics(), mqttClient.QoS()))
		checks = append(checks, namedCheck{"mqtt", mqttClient})

		log.Info("MQTT ready",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
			"reports", mqttClient.Topics().AllReports(),
		)
	} else {
		log.Info("MQTT disabled")
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, influxdb.NewHeartbeatSink(influxClient))
		checks = append(checks, namedCheck{"influxdb", influxClient})

		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	if err := attachSinks(reconciler, sinks, reports); err != nil {
		return err
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	// Deferred Close() calls run in reverse order: API, InfluxDB, MQTT, database.
	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns FLEET_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openStore builds the device store for the configured driver. The
// returned *database.DB is nil for the memory driver.
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (device.Store, *database.DB, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("using in-memory device store; records are lost on restart")
		return device.NewMemoryStore(), nil, nil
	}

	db, err := database.Open(ctx, database.Config{
		Driver:       cfg.Driver,
		Path:         cfg.Path,
		WALMode:      cfg.WALMode,
		BusyTimeout:  cfg.BusyTimeout,
		Host:         cfg.Host,
		Port:         cfg.Port,
		Name:         cfg.Name,
		User:         cfg.User,
		Password:     cfg.Password,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "driver", db.Dialect().String(), "target", db.Target())

	if cfg.BootstrapSchema {
		if schemaErr := db.EnsureSchema(ctx); schemaErr != nil {
			db.Close() //nolint:errcheck // Best effort cleanup on error path
			return nil, nil, fmt.Errorf("bootstrapping schema: %w", schemaErr)
		}
		log.Info("database schema ready")
	}

	return device.NewSQLStore(db.DB, db.Dialect()), db, nil
}

func identityConfig(cfg config.IdentityConfig) resolver.IdentityConfig {
	return resolver.IdentityConfig{
		CPUInfoPath:    cfg.CPUInfoPath,
		DumpCommand:    cfg.DumpCommand,
		DiagCommand:    cfg.DiagCommand,
		DiagField:      cfg.DiagField,
		CommandTimeout: cfg.CommandTimeout,
		Unknown:        cfg.UnknownSerial,
	}
}

func locationConfig(cfg config.LocationConfig) resolver.LocationConfig {
	return resolver.LocationConfig{
		ProbeAddress: cfg.ProbeAddress,
		DialTimeout:  cfg.DialTimeout,
		Fallback:     cfg.Fallback,
	}
}

// reportSubscriber starts delivery of remote device reports.
// *mqtt.Client implements it.
type reportSubscriber interface {
	SubscribeReports(reg mqtt.Registrar) error
}

// attachSinks installs sinks on the reconciler and only then starts report
// delivery, so every report is reconciled with the full sink set.
// reports may be nil when no remote channel is enabled.
func attachSinks(reconciler *fleet.Reconciler, sinks fleet.EventSink, reports reportSubscriber) error {
	reconciler.SetEventSink(sinks)
	if reports == nil {
		return nil
	}
	if err := reports.SubscribeReports(reconciler); err != nil {
		return fmt.Errorf("subscribing to device reports: %w", err)
	}
	return nil
}

// healthChecker is implemented by every infrastructure client.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type namedCheck struct {
	name    string
	checker healthChecker
}

// healthCheck runs every check and reports all failures together.
func healthCheck(ctx context.Context, checks []namedCheck) error {
	var errs []error
	for _, c := range checks {
		if err := c.checker.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	return errors.Join(errs...)
}
