package providers

import (
	"context"
	"net"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
)

// CityDatabase looks addresses up in a city-level GeoIP database.
// Implementations return a NOT_FOUND AppError when the address has no entry
// and an UNAVAILABLE AppError when the database cannot be read.
type CityDatabase interface {
	LookupCity(ctx context.Context, ip net.IP) (*entities.CityRecord, error)
}

// ASNDatabase looks addresses up in an autonomous-system GeoIP database.
// Error semantics match CityDatabase.
type ASNDatabase interface {
	LookupASN(ctx context.Context, ip net.IP) (*entities.ASNRecord, error)
}
