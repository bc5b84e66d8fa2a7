package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/tarisrizki/provisioning-telkom/internal/auth"
	"github.com/tarisrizki/provisioning-telkom/internal/cache"
	"github.com/tarisrizki/provisioning-telkom/internal/columns"
	"github.com/tarisrizki/provisioning-telkom/internal/config"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/events"
	"github.com/tarisrizki/provisioning-telkom/internal/ingestion"
	"github.com/tarisrizki/provisioning-telkom/internal/logging"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics"
	"github.com/tarisrizki/provisioning-telkom/internal/metrics/datadog"
	"github.com/tarisrizki/provisioning-telkom/internal/scheduler"
	"github.com/tarisrizki/provisioning-telkom/internal/server"
)

func newMetrics(ctx context.Context, cfg *config.Config, logger zerolog.Logger) metrics.Backend {
	if cfg.MetricsBackend == "datadog" {
		return datadog.NewBackend(ctx, datadog.Options{Service: "provisioning-api", Logger: logger})
	}
	return metrics.Noop{}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	store := database.NewPostgresStore(dbpool, logger)
	if err := store.Ping(ctx); err != nil {
		logger.Warn().Err(err).Msg("store not reachable at startup, reads will fall back to the local cache")
	}

	localCache, err := cache.Open(ctx, cfg.CachePath, cache.Options{
		DirectLimitBytes:     cfg.CacheDirectLimitBytes,
		ChunkedLimitBytes:    cfg.CacheChunkedLimitBytes,
		ChunkRows:            cfg.CacheChunkRows,
		KVQuotaBytes:         cfg.CacheKVQuotaBytes,
		ProjectionQuotaBytes: cfg.CacheProjectionBytes,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to open local cache: %w", err)
	}
	defer localCache.Close()

	m := newMetrics(ctx, cfg, logger)
	defer m.Close()

	aliases := columns.DefaultAliasTable()
	if cfg.ColumnAliasesPath != "" {
		if aliases, err = columns.LoadAliasTable(cfg.ColumnAliasesPath); err != nil {
			return err
		}
	}

	bus := events.NewBus()
	persister := ingestion.NewPersister(store, aliases, cfg.DBBatchSize, logger, m)
	ingester := ingestion.NewIngestionService(store, persister, ingestion.NewAsyncWorker(logger), localCache, bus, ingestion.Limits{
		MaxLightBytes:        cfg.MaxLightUploadBytes,
		MaxHeavyBytes:        cfg.MaxHeavyUploadBytes,
		WorkerThresholdBytes: cfg.WorkerThresholdBytes,
		ParseBatchSize:       cfg.ParseBatchSize,
	}, logger, m)

	sessions, err := auth.NewSessionCodec(cfg.SessionSecret, cfg.SessionTTL, cfg.SessionSecure)
	if err != nil {
		return err
	}

	dashboard := server.NewDashboard(store, logger, m).WithProjectionCache(localCache, cache.DatasetKey)
	defer dashboard.Subscribe(bus)()
	logger.Debug().Int("listeners", bus.Subscribers(events.TopicWorkOrdersChanged)).Msg("work order change listeners registered")

	jobs := scheduler.New(logger)
	if err := jobs.Add("dashboard-refresh", cfg.RefreshSchedule, dashboard.Tick); err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop(context.Background())
	go dashboard.Tick(ctx)

	svc := server.NewService(server.Deps{
		Store:          store,
		Ingester:       ingester,
		Sessions:       sessions,
		Dashboard:      dashboard,
		Fallback:       localCache,
		FallbackKey:    cache.DatasetKey,
		Bus:            bus,
		Logger:         logger,
		Metrics:        m,
		PageSize:       cfg.PageSize,
		MaxUploadBytes: cfg.MaxHeavyUploadBytes,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.APIPort),
		Handler:           server.SetupRoutes(svc, auth.NewGuard(sessions, logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.APIPort).Msg("server starting")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api stopped")
	}
}
