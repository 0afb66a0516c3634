// PinForge - MCU pin allocation service
//
// This is the main entry point for the pinforge service. It serves the
// allocation engine over HTTP and WebSocket, persists projects and their
// allocation runs in SQLite, and optionally publishes results over MQTT
// and records run metrics in InfluxDB.
//
// Running with -issue-token prints a signed API token and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/pinforge-core/migrations"

	"github.com/nerrad567/pinforge-core/internal/api"
	"github.com/nerrad567/pinforge-core/internal/audit"
	"github.com/nerrad567/pinforge-core/internal/auth"
	"github.com/nerrad567/pinforge-core/internal/catalog"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/config"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/database"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/logging"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/metrics"
	"github.com/nerrad567/pinforge-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/pinforge-core/internal/project"
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
	issue := flag.String("issue-token", "", "print an API token for this subject and exit")
	role := flag.String("role", string(auth.RoleViewer), "role for -issue-token (viewer, editor, admin)")
	ttl := flag.Int("ttl", 0, "token lifetime in minutes for -issue-token (default security.jwt.access_token_ttl)")
	flag.Parse()

	if *issue != "" {
		if err := issueToken(getConfigPath(), *issue, auth.Role(*role), *ttl, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting pinforge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
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

	// Load the catalog
	registry, err := catalog.NewRegistry()
	if err != nil {
		return fmt.Errorf("loading built-in catalog: %w", err)
	}
	registry.SetLogger(log)
	if loadErr := registry.LoadFiles(cfg.Catalog.Files...); loadErr != nil {
		return fmt.Errorf("loading catalog files: %w", loadErr)
	}
	mcus, sensors, constraints := registry.Stats()
	log.Info("catalog loaded",
		"mcus", mcus,
		"sensors", sensors,
		"constraints", constraints,
		"files", len(cfg.Catalog.Files),
	)

	service := project.NewService(project.NewSQLiteRepository(db.DB), project.NewPlanner(registry))
	service.SetLogger(log)

	promRegistry := metrics.NewRegistry()
	service.AddRecorder(metrics.NewRecorder(promRegistry))

	deps := api.Deps{
		Config:             cfg.API,
		WS:                 cfg.WebSocket,
		Security:           cfg.Security,
		Logger:             log,
		Service:            service,
		DB:                 db,
		Audit:              audit.NewSQLiteRepository(db.DB),
		Metrics:            promRegistry,
		DefaultConstraints: cfg.Catalog.DefaultConstraints,
		Version:            version,
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
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
		service.AddRecorder(influxClient)
		influxClient.RecordCatalogLoad(influxdb.CatalogLoad{
			MCUs:        mcus,
			Sensors:     sensors,
			Constraints: constraints,
			Files:       len(cfg.Catalog.Files),
		})
		deps.InfluxDB = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to MQTT broker (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connErr := startMQTT(cfg, service, log)
		if connErr != nil {
			return connErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		deps.MQTT = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	service.SetBroadcaster(server.Hub())

	if err := healthCheck(ctx, db, deps); err != nil {
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

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, MQTT, InfluxDB, database.

	log.Info("pinforge stopped")
	return nil
}

// startMQTT connects to the broker, makes the client the service's result
// publisher and subscribes the allocation request responder.
func startMQTT(cfg *config.Config, service *project.Service, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	client.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	service.SetPublisher(client)

	responder := mqtt.NewAllocationResponder(service, client, byte(cfg.MQTT.QoS)) //nolint:gosec // validated 0..2
	responder.SetLogger(log)
	if err := responder.Start(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("subscribing allocation responder: %w", err)
	}
	log.Info("MQTT allocation responder subscribed", "topic", mqtt.Topics{}.AllAllocateRequests())

	return client, nil
}

// healthCheck verifies the database and any enabled backends before the
// API starts accepting requests.
func healthCheck(ctx context.Context, db *database.DB, deps api.Deps) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if deps.MQTT != nil && !deps.MQTT.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}
	if deps.InfluxDB != nil && !deps.InfluxDB.IsConnected() {
		return fmt.Errorf("influxdb: not connected")
	}
	return nil
}

// issueToken signs an access token with the configured secret and writes
// it to w followed by a newline.
func issueToken(configPath, subject string, role auth.Role, ttlMinutes int, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ttlMinutes <= 0 {
		ttlMinutes = cfg.Security.JWT.AccessTokenTTL
	}

	token, err := auth.GenerateAccessToken(subject, role, cfg.Security.JWT.Secret, ttlMinutes)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// getConfigPath returns the configuration file path.
// Uses PINFORGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PINFORGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
