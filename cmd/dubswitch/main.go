// dubswitch - X32 input routing switcher
//
// This is the main entry point for the dubswitch daemon. It discovers a
// Behringer X32 console on the local network, correlates its OSC replies
// into routing and channel state, and serves that state to browser
// sessions over HTTP and WebSocket.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MMSchneider/dubswitch-sub000/internal/api"
	"github.com/MMSchneider/dubswitch-sub000/internal/history"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/config"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/database"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/logging"
	"github.com/MMSchneider/dubswitch-sub000/internal/infrastructure/mqtt"
	"github.com/MMSchneider/dubswitch-sub000/internal/store"
	"github.com/MMSchneider/dubswitch-sub000/internal/x32"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting dubswitch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration, falling back to built-in defaults when no
	// config file exists. dubswitch runs usefully with zero configuration
	// on a trusted LAN.
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	switch {
	case err == nil:
		log.Info("configuration loaded", "path", configPath)
	case errors.Is(err, os.ErrNotExist):
		cfg = config.Default()
		log.Info("no config file found, using defaults", "path", configPath)
	default:
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Durable store, and the persisted preferred port if one exists
	st, err := store.New(cfg.Store, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	if port, portErr := st.LoadPort(); portErr == nil {
		log.Info("using persisted preferred port", "port", port)
		cfg.API.Port = port
	}

	// Routing history (optional)
	var historyRepo history.Repository
	if cfg.Database.Enabled {
		db, dbErr := database.Open(cfg.Database)
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		repo, repoErr := history.NewSQLiteRepository(db.DB)
		if repoErr != nil {
			return fmt.Errorf("initialising routing history: %w", repoErr)
		}
		historyRepo = repo

		if cfg.Database.RetentionDays > 0 {
			retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
			go history.RunPruner(ctx, repo, retention, 24*time.Hour, log)
			log.Info("routing history retention active", "days", cfg.Database.RetentionDays)
		}
	} else {
		log.Info("routing history disabled")
	}

	// MQTT state mirror (optional)
	var mirror *mqtt.Mirror
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT, log)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
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
		mirror = mqtt.NewMirror(mqttClient, byte(cfg.MQTT.QoS), log)
	} else {
		log.Info("MQTT mirror disabled")
	}

	// UDP transport and engine
	metrics := x32.NewMetrics(prometheus.DefaultRegisterer)

	transport, err := x32.NewTransport(cfg.X32, log, metrics)
	if err != nil {
		return fmt.Errorf("opening UDP transport: %w", err)
	}
	defer func() {
		log.Info("closing UDP transport")
		transport.Close()
	}()
	log.Info("UDP transport bound", "local_port", transport.LocalPort())

	engineOpts := x32.EngineOptions{
		Config:    cfg.X32,
		Transport: transport,
		Logger:    log,
		Metrics:   metrics,
		History:   historyRepo,
	}
	if mirror != nil {
		engineOpts.Mirror = mirror
	}
	engine, err := x32.NewEngine(engineOpts)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer func() {
		log.Info("stopping engine")
		engine.Close()
	}()

	// API server with session hub
	server, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Engine:   engine,
		Store:    st,
		History:  historyRepo,
		Gatherer: prometheus.DefaultGatherer,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	engine.SetBroadcaster(server.Hub())

	// Inbound datagrams flow through the engine from here on
	transport.SetHandler(engine.HandleInbound)
	transport.Start()

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Probe for the console in the background so a powered-up console is
	// registered before the first session asks for anything.
	go func() {
		if ip, discErr := engine.Discover(ctx); discErr == nil && ip != "" {
			log.Info("console discovered at startup", "ip", ip)
		}
	}()

	log.Info("dubswitch running",
		"http", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	<-ctx.Done()
	log.Info("shutdown signal received")
	return nil
}

// getConfigPath returns the configuration file path from the command
// line, the DUBSWITCH_CONFIG environment variable, or the default.
func getConfigPath() string {
	if len(os.Args) > 1 {
		return os.Args[1]
	}
	if path := os.Getenv("DUBSWITCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
