package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

const (
	cityKeyPrefix = "geoip:city:v1:"
	asnKeyPrefix  = "geoip:asn:v1:"
)

// CachedCityDatabase fronts a CityDatabase with a shared cache. Misses and
// cache failures fall through to the database.
type CachedCityDatabase struct {
	next   providers.CityDatabase
	cache  providers.CacheProvider
	ttl    int
	logger zerolog.Logger
}

// NewCachedCityDatabase wraps next; ttlSeconds <= 0 caches forever.
func NewCachedCityDatabase(next providers.CityDatabase, cache providers.CacheProvider, ttlSeconds int, logger zerolog.Logger) *CachedCityDatabase {
	return &CachedCityDatabase{next: next, cache: cache, ttl: ttlSeconds, logger: logger}
}

// LookupCity implements providers.CityDatabase.
func (c *CachedCityDatabase) LookupCity(ctx context.Context, ip net.IP) (*entities.CityRecord, error) {
	key := cityKeyPrefix + ip.String()

	var cached entities.CityRecord
	if readCache(ctx, c.cache, c.logger, key, &cached) {
		return &cached, nil
	}

	rec, err := c.next.LookupCity(ctx, ip)
	if err != nil {
		return nil, err
	}
	writeCache(ctx, c.cache, c.logger, key, rec, c.ttl)
	return rec, nil
}

// CachedASNDatabase fronts an ASNDatabase with a shared cache.
type CachedASNDatabase struct {
	next   providers.ASNDatabase
	cache  providers.CacheProvider
	ttl    int
	logger zerolog.Logger
}

// NewCachedASNDatabase wraps next; ttlSeconds <= 0 caches forever.
func NewCachedASNDatabase(next providers.ASNDatabase, cache providers.CacheProvider, ttlSeconds int, logger zerolog.Logger) *CachedASNDatabase {
	return &CachedASNDatabase{next: next, cache: cache, ttl: ttlSeconds, logger: logger}
}

// LookupASN implements providers.ASNDatabase.
func (c *CachedASNDatabase) LookupASN(ctx context.Context, ip net.IP) (*entities.ASNRecord, error) {
	key := asnKeyPrefix + ip.String()

	var cached entities.ASNRecord
	if readCache(ctx, c.cache, c.logger, key, &cached) {
		return &cached, nil
	}

	rec, err := c.next.LookupASN(ctx, ip)
	if err != nil {
		return nil, err
	}
	writeCache(ctx, c.cache, c.logger, key, rec, c.ttl)
	return rec, nil
}

func readCache(ctx context.Context, cache providers.CacheProvider, logger zerolog.Logger, key string, dst any) bool {
	raw, err := cache.Get(ctx, key)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			logger.Debug().Err(err).Str("key", key).Msg("GeoIP cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		logger.Debug().Err(err).Str("key", key).Msg("GeoIP cache entry corrupt")
		return false
	}
	return true
}

func writeCache(ctx context.Context, cache providers.CacheProvider, logger zerolog.Logger, key string, value any, ttl int) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Debug().Err(err).Str("key", key).Msg("GeoIP cache encode failed")
		return
	}
	if err := cache.Set(ctx, key, raw, ttl); err != nil {
		logger.Debug().Err(fmt.Errorf("set %s: %w", key, err)).Msg("GeoIP cache write failed")
	}
}
