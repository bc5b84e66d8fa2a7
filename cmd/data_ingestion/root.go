package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tarisrizki/provisioning-telkom/internal/cache"
	"github.com/tarisrizki/provisioning-telkom/internal/config"
	"github.com/tarisrizki/provisioning-telkom/internal/database"
	"github.com/tarisrizki/provisioning-telkom/internal/logging"
)

// app holds what every subcommand needs once config is loaded.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  *database.PostgresStore
	cache  *cache.Cache
	close  func()
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	dbpool, err := database.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	localCache, err := cache.Open(ctx, cfg.CachePath, cache.Options{
		DirectLimitBytes:     cfg.CacheDirectLimitBytes,
		ChunkedLimitBytes:    cfg.CacheChunkedLimitBytes,
		ChunkRows:            cfg.CacheChunkRows,
		KVQuotaBytes:         cfg.CacheKVQuotaBytes,
		ProjectionQuotaBytes: cfg.CacheProjectionBytes,
	}, logger)
	if err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("failed to open local cache: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  database.NewPostgresStore(dbpool, logger),
		cache:  localCache,
		close: func() {
			localCache.Close()
			dbpool.Close()
		},
	}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "data_ingestion",
		Short:        "Load provisioning work-order exports into the store",
		SilenceUsage: true,
	}
	root.AddCommand(newIngestCmd(), newListCmd(), newCheckCmd(), newCacheCmd())
	return root
}
