package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/adapters/archive"
	"github.com/zatekoja/trafficpipeline/internal/adapters/cache"
	"github.com/zatekoja/trafficpipeline/internal/adapters/database"
	"github.com/zatekoja/trafficpipeline/internal/adapters/search"
	"github.com/zatekoja/trafficpipeline/internal/application/services"
	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/bootstrap"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/analytics"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/objectstore"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/redis"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/observability"
	"github.com/zatekoja/trafficpipeline/pkg/config"
	"github.com/zatekoja/trafficpipeline/pkg/secrets"
)

func main() {
	var configPath string
	var resume bool
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.BoolVar(&resume, "resume", false, "continue after the last checkpointed window")
	flag.Parse()

	vaultCtx, cancelVault := context.WithTimeout(context.Background(), 10*time.Second)
	vaultResult, vaultErr := secrets.ApplyVaultSecrets(vaultCtx, secrets.LoadVaultConfigFromEnv(""))
	cancelVault()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if resume {
		cfg.Extraction.Resume = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := observability.InitLogger(cfg.Log, cfg.OTEL.ServiceName)
	defer logCloser.Close()

	if vaultErr != nil {
		logger.Warn().Err(vaultErr).Str("path", vaultResult.Path).Msg("Failed to load secrets from Vault")
	} else if vaultResult.Enabled {
		logger.Info().
			Str("path", vaultResult.Path).
			Int("loaded", vaultResult.Loaded).
			Int("skipped", vaultResult.Skipped).
			Msg("Loaded secrets from Vault")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if services.IsCancellation(err) {
			logger.Warn().Err(err).Msg("Extraction interrupted")
			return
		}
		logger.Error().Err(err).Msg("Extraction failed")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	start, err := cfg.Extraction.RangeStart()
	if err != nil {
		return err
	}
	end, err := cfg.Extraction.RangeEnd()
	if err != nil {
		return err
	}

	var closers []io.Closer
	defer func() { bootstrap.CloseAll(closers, logger) }()

	var metrics providers.PipelineMetrics
	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize OpenTelemetry, continuing without it")
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(shutdownCtx); err != nil {
					logger.Warn().Err(err).Msg("Failed to flush telemetry")
				}
			}()
			if m, err := observability.InitMetrics(); err != nil {
				logger.Warn().Err(err).Msg("Failed to create metrics")
			} else {
				metrics = m
			}
		}
	}

	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, geo cache and checkpoints disabled")
		} else {
			closers = append(closers, redisClient)
			cacheProvider = cache.NewRedisAdapter(redisClient)
		}
	}

	enricher, enrichClosers := bootstrap.NewEnricher(cfg.Enrichment, cacheProvider, logger)
	closers = append(closers, enrichClosers...)

	tsClient, err := typesense.NewClient(ctx, &cfg.Typesense, logger)
	if err != nil {
		return err
	}
	writer := search.NewTypesenseIndexWriter(tsClient, logger)

	runner := services.NewPipelineRunner(enricher, writer, logger)
	runner.SetDocumentIDMode(cfg.Extraction.DocumentIDMode)
	if metrics != nil {
		runner.SetMetrics(metrics)
	}

	source, err := analytics.NewClient(&cfg.Analytics, logger)
	if err != nil {
		return err
	}

	batch := entities.BatchMetadata{
		BatchName:   cfg.Extraction.BatchName,
		AccountTag:  cfg.Analytics.AccountTag,
		ZoneTag:     cfg.Analytics.ZoneTag,
		IndexPrefix: cfg.Extraction.IndexPrefix,
	}
	loop := services.NewExtractionLoop(source, runner, batch, services.LoopConfig{
		Width:         cfg.Extraction.WindowWidth,
		MinDelay:      cfg.Extraction.MinDelay,
		MaxDelay:      cfg.Extraction.MaxDelay,
		CheckpointKey: cache.CheckpointKey(cfg.Extraction.BatchName),
		Resume:        cfg.Extraction.Resume,
	}, logger)
	if metrics != nil {
		loop.SetMetrics(metrics)
	}
	if cacheProvider != nil {
		loop.SetCheckpointStore(cache.NewRedisCheckpointStore(cacheProvider))
	}

	if cfg.Database.RunLogEnabled {
		pgClient, err := postgres.NewClient(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("PostgreSQL unavailable, window run log disabled")
		} else {
			closers = append(closers, pgClient)
			runs := database.NewWindowRunAdapter(pgClient)
			if err := runs.EnsureSchema(ctx); err != nil {
				logger.Warn().Err(err).Msg("Failed to prepare window run table, run log disabled")
			} else {
				loop.SetRunRepository(runs)
			}
		}
	}

	if cfg.Archive.Enabled {
		store, err := objectstore.NewClient(ctx, &cfg.Archive, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Object store unavailable, raw page archive disabled")
		} else {
			loop.SetArchive(archive.NewObjectArchive(store.Client(), store.Bucket(), cfg.Archive.Prefix))
		}
	}

	summary, err := loop.Run(ctx, start, end)
	logger.Info().
		Str("batch_id", loop.BatchID()).
		Int("windows", summary.Windows).
		Int("documents", summary.Documents).
		Int("failed_documents", summary.Failed).
		Int("cancelled_windows", summary.Cancelled).
		Msg("Run summary")
	return err
}
