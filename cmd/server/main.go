package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/yegors/flightwatch/internal/aerodatabox"
	"github.com/yegors/flightwatch/internal/api"
	"github.com/yegors/flightwatch/internal/config"
	"github.com/yegors/flightwatch/internal/metrics"
	"github.com/yegors/flightwatch/internal/opensky"
	"github.com/yegors/flightwatch/internal/storage/sqlite"
	"github.com/yegors/flightwatch/internal/tracking"
	"github.com/yegors/flightwatch/internal/weather"
	"github.com/yegors/flightwatch/internal/websocket"
	"github.com/yegors/flightwatch/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	envPath := flag.String("env", ".env", "Optional dotenv file with provider keys")
	flag.Parse()

	// A missing .env is normal; keys may come from the real environment
	envLoaded := godotenv.Load(*envPath) == nil

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting flightwatch server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
		logger.Bool("env_file_loaded", envLoaded),
	)

	it, err := cfg.Itinerary()
	if err != nil {
		log.Error("Failed to build itinerary", logger.Error(err))
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Detail provider
	adbClient := aerodatabox.NewClient(aerodatabox.ClientConfig{
		BaseURL: cfg.AeroDataBox.BaseURL,
		APIHost: cfg.AeroDataBox.APIHost,
		APIKey:  cfg.AeroDataBox.APIKey,
		Timeout: config.Seconds(cfg.AeroDataBox.RequestTimeoutSeconds),
	}, log, m)
	resolver := aerodatabox.NewResolver(adbClient, log, m)
	if !resolver.Configured() {
		log.Warn("No AeroDataBox key configured, detail lookups disabled",
			logger.String("env", config.EnvAeroDataBoxKey))
	}

	// Secondary position feed
	var states *opensky.Client
	if cfg.OpenSky.Enabled {
		states, err = opensky.NewClient(opensky.ClientConfig{
			BaseURL:         cfg.OpenSky.BaseURL,
			Timeout:         config.Seconds(cfg.OpenSky.RequestTimeoutSeconds),
			CredentialsPath: cfg.OpenSky.CredentialsPath,
		}, log, m)
		if err != nil {
			log.Error("Failed to create OpenSky client", logger.Error(err))
			os.Exit(1)
		}
		log.Info("Secondary position feed enabled", logger.Bool("authenticated", states.Authenticated()))
	} else {
		log.Info("Secondary position feed disabled in configuration")
	}

	// Weather briefs
	var briefs *weather.Service
	if cfg.Weather.Enabled {
		weatherClient := weather.NewClient(weather.Config{
			BaseURL:    cfg.Weather.APIBaseURL,
			Timeout:    config.Seconds(cfg.Weather.RequestTimeoutSeconds),
			MaxRetries: cfg.Weather.MaxRetries,
			CacheTTL:   time.Duration(cfg.Weather.CacheExpiryMinutes) * time.Minute,
			CacheSize:  cfg.Weather.CacheSize,
		}, log, m)
		briefs = weather.NewService(weatherClient, log)
	} else {
		log.Info("Weather briefs disabled in configuration")
	}

	// Airline directory
	var airlines *sqlite.AirlineStorage
	if cfg.Storage.AirlineDBPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.AirlineDBPath), 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.AirlineDBPath))
			os.Exit(1)
		}
		airlines, err = sqlite.NewAirlineStorage(cfg.Storage.AirlineDBPath, log)
		if err != nil {
			log.Error("Failed to create SQLite storage", logger.Error(err))
			os.Exit(1)
		}
		defer airlines.Close()

		if cfg.Storage.AirlineSeedPath != "" {
			n, err := airlines.ImportFile(ctx, cfg.Storage.AirlineSeedPath)
			if err != nil {
				log.Warn("Failed to import airline directory", logger.Error(err), logger.String("path", cfg.Storage.AirlineSeedPath))
			} else {
				log.Info("Imported airline directory", logger.Int("airlines", n))
			}
		}
	}

	wsServer := websocket.NewServer(log, cfg.Server.CORSAllowedOrigins)
	go wsServer.Run(ctx)

	// Interfaces stay nil when a feature is off so trackers skip it
	deps := tracking.Dependencies{
		Resolver:  resolver,
		Publisher: wsServer,
		Metrics:   m,
	}
	handlerDeps := api.HandlerDeps{
		Resolver: resolver,
		Clients:  wsServer.ClientCount,
	}
	if states != nil {
		deps.States = states
		handlerDeps.States = states
	}
	if briefs != nil {
		deps.Weather = briefs
		handlerDeps.Weather = briefs
	}
	if airlines != nil {
		deps.Airlines = airlines
	}

	trackingService := tracking.NewService(it, tracking.Config{
		PositionInterval: config.Seconds(cfg.Tracking.PositionIntervalSeconds),
		BoxSpan:          cfg.Tracking.BoxSpanDegrees,
	}, deps, log)
	wsServer.SetMessageHandler(trackingService)
	handlerDeps.Segments = trackingService

	if err := trackingService.Start(ctx); err != nil {
		log.Error("Failed to start tracking service", logger.Error(err))
		os.Exit(1)
	}

	router := api.NewRouter(
		api.NewHandler(handlerDeps, log),
		wsServer.HandleConnection,
		registry,
		cfg.Server.CORSAllowedOrigins,
		log,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  config.Seconds(cfg.Server.ReadTimeoutSecs),
		WriteTimeout: config.Seconds(cfg.Server.WriteTimeoutSecs),
		IdleTimeout:  config.Seconds(cfg.Server.IdleTimeoutSecs),
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
			cancel()
		}
	}()

	// Wait for interrupt signal or a failed listener
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	log.Info("Stopping tracking service...")
	trackingService.Stop()
	log.Info("Tracking service stopped.")

	// Closes the websocket hub and its clients
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.String("addr", server.Addr), logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete", logger.String("addr", server.Addr))
	}

	log.Info("Server fully stopped")
}
