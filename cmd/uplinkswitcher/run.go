package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/uplink-switcher/internal/api"
	"github.com/nerrad567/uplink-switcher/internal/events"
	"github.com/nerrad567/uplink-switcher/internal/history"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/config"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/database"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/influxdb"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/logging"
	"github.com/nerrad567/uplink-switcher/internal/infrastructure/mqtt"
	"github.com/nerrad567/uplink-switcher/internal/session"
	"github.com/nerrad567/uplink-switcher/migrations"
)

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Cancelled on SIGINT/SIGTERM
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error { //nolint:gocognit,gocyclo // startup wiring: one branch per optional service
	log := logging.Default()
	log.Info("starting uplink switcher",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "sessions", len(cfg.Sessions))

	// ─── Storage ────────────────────────────────────────────────────

	db, err := database.Open(database.Config{
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

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	historyRepo := history.NewSQLiteRepository(db.DB)
	pruneHistory(ctx, historyRepo, cfg.HistoryRetention(), log)

	checks := map[string]api.HealthChecker{"database": db}
	sinks := events.Fanout{historyRepo}
	deps := session.Deps{Logger: log}

	// ─── MQTT ───────────────────────────────────────────────────────

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		checks["mqtt"] = mqttClient
		sinks = append(sinks, events.NewMQTTSink(mqttClient))
		deps.Publisher = mqttClient
		deps.StatusInterval = time.Duration(cfg.MQTT.StatusInterval) * time.Second
	} else {
		log.Info("MQTT disabled")
	}

	// ─── InfluxDB ───────────────────────────────────────────────────

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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		checks["influxdb"] = influxClient
		deps.Telemetry = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	// ─── Sessions and API ───────────────────────────────────────────

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log.With("component", "ws"))
		sinks = append(sinks, hub)
	}
	deps.Sink = sinks

	manager, err := session.NewManager(cfg.Sessions, deps)
	if err != nil {
		return fmt.Errorf("building sessions: %w", err)
	}

	if mqttClient != nil {
		if subErr := manager.SubscribeCommands(mqttClient); subErr != nil {
			return fmt.Errorf("subscribing to switcher commands: %w", subErr)
		}
		log.Info("listening for switcher commands", "topic", mqtt.Topics{}.AllSwitcherCommands())
	}

	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.With("component", "api"),
			Sessions: manager,
			History:  historyRepo,
			Checks:   checks,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete", "users", manager.Users())
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("running sessions: %w", err)
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// pruneHistory removes switch history older than retention. Failures are
// logged and startup continues.
func pruneHistory(ctx context.Context, repo *history.SQLiteRepository, retention time.Duration, log *logging.Logger) {
	if retention <= 0 {
		return
	}
	n, err := repo.Prune(ctx, retention)
	if err != nil {
		log.Warn("failed to prune switch history", "error", err)
		return
	}
	if n > 0 {
		log.Info("pruned switch history", "removed", n, "older_than", retention)
	}
}

// healthCheck runs every registered check once at startup.
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, c := range checks {
		if err := c.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
