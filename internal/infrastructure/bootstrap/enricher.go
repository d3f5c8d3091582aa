// Package bootstrap assembles the record enricher from configuration, so the
// puller and the enrich command enrich records the same way.
package bootstrap

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/adapters/country"
	"github.com/zatekoja/trafficpipeline/internal/adapters/geoip"
	"github.com/zatekoja/trafficpipeline/internal/adapters/useragent"
	"github.com/zatekoja/trafficpipeline/internal/application/services"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	"github.com/zatekoja/trafficpipeline/pkg/config"
)

// NewEnricher opens the lookup databases named in cfg. A database that
// cannot be opened, or whose metadata names the wrong database type,
// disables its enrichment step instead of failing. cache may be nil; when
// set and enabled in cfg, geo lookups go through it. The returned closers
// release the opened databases.
func NewEnricher(cfg config.EnrichmentConfig, cache providers.CacheProvider, logger zerolog.Logger) (*services.RecordEnricher, []io.Closer) {
	var closers []io.Closer
	var city providers.CityDatabase
	var asn providers.ASNDatabase

	if db, err := geoip.OpenCity(cfg.GeoIPCityPath); err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPCityPath).Msg("City database unavailable")
	} else {
		closers = append(closers, db)
		city = db
		logger.Debug().Str("path", cfg.GeoIPCityPath).Str("type", db.DatabaseType()).Msg("Opened city database")
	}
	if db, err := geoip.OpenASN(cfg.GeoIPASNPath); err != nil {
		logger.Warn().Err(err).Str("path", cfg.GeoIPASNPath).Msg("ASN database unavailable")
	} else {
		closers = append(closers, db)
		asn = db
		logger.Debug().Str("path", cfg.GeoIPASNPath).Str("type", db.DatabaseType()).Msg("Opened ASN database")
	}

	if cache != nil && cfg.GeoCacheEnabled {
		if city != nil {
			city = geoip.NewCachedCityDatabase(city, cache, cfg.GeoCacheTTLSeconds, logger)
		}
		if asn != nil {
			asn = geoip.NewCachedASNDatabase(asn, cache, cfg.GeoCacheTTLSeconds, logger)
		}
	}

	var parser providers.UserAgentParser = useragent.NewUAPParser()
	if path := cfg.UserAgentRegexesPath; path != "" {
		p, err := useragent.NewUAPParserFromFile(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to load user agent regexes, using bundled ones")
		} else {
			parser = p
		}
	}

	enricher := services.NewRecordEnricher(
		services.NewUserAgentClassifier(parser),
		services.NewGeoResolver(city, asn),
		services.NewCountryNormalizer(country.NewGountriesLookup()),
		logger,
	)
	return enricher, closers
}

// CloseAll closes closers in reverse order and logs failures.
func CloseAll(closers []io.Closer, logger zerolog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}
