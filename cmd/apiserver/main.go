// cmd/apiserver/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/api"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/cache"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/config"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/engine"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/logging"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	logger.Info("Starting PLN monitor API server")

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	topology, telemetry, closeStores, err := openStores(initCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open stores")
	}
	defer closeStores()

	backend, closeCache, err := openCache(initCtx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open cache backend")
	}
	defer closeCache()

	results := cache.New(backend, cache.Options{
		ComputeTimeout: cfg.Cache.ComputeTimeout.Duration,
	}, logging.Component(logger, "cache"))

	e := engine.New(topology, telemetry, results, engine.Options{
		ChunkSize:   cfg.Correlator.ChunkSize,
		Concurrency: cfg.Correlator.Concurrency,
		SystemTTL:   cfg.Cache.SystemTTL.Duration,
		ScopedTTL:   cfg.Cache.ScopedTTL.Duration,
		Corrections: cfg.Regions.Correction,
	}, logging.Component(logger, "engine"))

	if cfg.Auth.JWTSecret == "" {
		logger.WithField("header", cfg.Auth.OrganizationHeader).Warn("JWT_SECRET not set, trusting the gateway organization header")
	}
	auth := api.Authenticate([]byte(cfg.Auth.JWTSecret), cfg.Auth.OrganizationHeader, logging.Component(logger, "auth"))
	handler := api.NewRouter(api.NewAPI(e, logging.Component(logger, "api")), auth, cfg.API.RequestTimeout.Duration, logger)

	server := &http.Server{
		Addr:         ":" + cfg.API.Port,
		Handler:      handler,
		ReadTimeout:  cfg.API.ReadTimeout.Duration,
		WriteTimeout: cfg.API.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.API.Port).Info("Server listening")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Server error")
		}
	case sig := <-shutdown:
		logger.WithField("signal", sig.String()).Info("Shutdown signal received, starting graceful shutdown")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout.Duration)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
			if closeErr := server.Close(); closeErr != nil {
				logger.WithError(closeErr).Error("Server close failed")
			}
		} else {
			logger.Info("Server shutdown complete")
		}
	}
	logger.Info("Application shutdown finished")
}

func openStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (persistence.TopologyStore, persistence.TelemetryStore, func(), error) {
	var (
		topology persistence.TopologyStore
		memory   *persistence.MemoryStore
		err      error
	)
	switch cfg.Topology.Driver {
	case "postgres":
		topology, err = persistence.NewPostgresTopologyStore(ctx, cfg.Topology.DSN, logging.Component(logger, "topology"))
		if err != nil {
			return nil, nil, nil, err
		}
	default:
		if cfg.Topology.Fixture != "" {
			memory, err = persistence.LoadMemoryStore(cfg.Topology.Fixture)
			if err != nil {
				return nil, nil, nil, err
			}
		} else {
			logger.Warn("No topology fixture configured, serving the built-in sample grid")
			memory = persistence.NewMemoryStore(persistence.SampleFixture())
		}
		topology = memory
	}

	if cfg.Telemetry.Driver == "memory" {
		return topology, memory, topology.Close, nil
	}
	telemetry, err := persistence.OpenSQLTelemetryStore(ctx, cfg.Telemetry.Driver, cfg.Telemetry.DSN, logging.Component(logger, "telemetry"))
	if err != nil {
		topology.Close()
		return nil, nil, nil, err
	}
	return topology, telemetry, func() {
		telemetry.Close()
		topology.Close()
	}, nil
}

func openCache(ctx context.Context, cfg *config.Config, logger *log.Logger) (cache.Backend, func(), error) {
	if cfg.Cache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		backend := cache.NewRedisBackend(client, cfg.Cache.KeyPrefix)
		if err := backend.Ping(ctx); err != nil {
			_ = backend.Close()
			return nil, nil, err
		}
		logger.WithField("addr", cfg.Cache.RedisAddr).Info("Using redis result cache")
		return backend, func() { _ = backend.Close() }, nil
	}

	// Expired entries are only dropped on read; sweep the rest periodically.
	backend := cache.NewMemoryBackend(time.Now)
	ticker := time.NewTicker(cfg.Cache.ScopedTTL.Duration)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				if n := backend.Sweep(); n > 0 {
					logger.WithField("entries", n).Debug("Swept expired cache entries")
				}
			case <-done:
				return
			}
		}
	}()
	return backend, func() {
		ticker.Stop()
		close(done)
	}, nil
}
