// Command enrich reads dimension objects as JSON lines on stdin and writes
// the enriched documents to stdout. It builds its enricher exactly as the
// puller does, geo cache included, but never talks to the analytics API or
// the index.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/adapters/cache"
	"github.com/zatekoja/trafficpipeline/internal/application/services"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/bootstrap"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/redis"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/observability"
	"github.com/zatekoja/trafficpipeline/pkg/config"
)

func main() {
	var configPath string
	var pretty bool
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.BoolVar(&pretty, "pretty", false, "indent output documents")
	flag.Parse()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := cfg.Log
	logCfg.File = ""
	logger, _ := observability.NewLogger(logCfg, "traffic-enrich")
	logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	ctx := context.Background()

	var closers []io.Closer
	var cacheProvider providers.CacheProvider
	if cfg.Redis.Enabled && cfg.Enrichment.GeoCacheEnabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, geo cache disabled")
		} else {
			closers = append(closers, redisClient)
			cacheProvider = cache.NewRedisAdapter(redisClient)
		}
	}

	enricher, enrichClosers := bootstrap.NewEnricher(cfg.Enrichment, cacheProvider, logger)
	closers = append(closers, enrichClosers...)

	err = enrichStream(ctx, enricher, bufio.NewReader(os.Stdin), os.Stdout, pretty, logger)
	bootstrap.CloseAll(closers, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Enrichment failed")
		os.Exit(1)
	}
}

func enrichStream(ctx context.Context, enricher *services.RecordEnricher, in io.Reader, out io.Writer, pretty bool, logger zerolog.Logger) error {
	dec := json.NewDecoder(in)
	dec.UseNumber()
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}

	for record := 1; ; record++ {
		var dims map[string]any
		if err := dec.Decode(&dims); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d: %w", record, err)
		}

		doc, err := enricher.Enrich(ctx, dims)
		if err != nil {
			logger.Debug().Err(err).Int("record", record).Msg("Degraded enrichment")
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("record %d: %w", record, err)
		}
	}
}
