package geoip

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/maxminddb-golang"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

type names struct {
	Names map[string]string `maxminddb:"names"`
}

func (n names) english() string {
	return n.Names["en"]
}

// cityRecord mirrors the GeoIP2/GeoLite2 City layout. The anonymizer traits
// are only populated by the commercial databases.
type cityRecord struct {
	City      names `maxminddb:"city"`
	Continent names `maxminddb:"continent"`
	Country   struct {
		IsoCode string            `maxminddb:"iso_code"`
		Names   map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
	Postal struct {
		Code string `maxminddb:"code"`
	} `maxminddb:"postal"`
	Subdivisions []names `maxminddb:"subdivisions"`
	Traits       struct {
		IsAnonymous        bool `maxminddb:"is_anonymous"`
		IsAnonymousVPN     bool `maxminddb:"is_anonymous_vpn"`
		IsPublicProxy      bool `maxminddb:"is_public_proxy"`
		IsResidentialProxy bool `maxminddb:"is_residential_proxy"`
		IsTorExitNode      bool `maxminddb:"is_tor_exit_node"`
		IsHostingProvider  bool `maxminddb:"is_hosting_provider"`
	} `maxminddb:"traits"`
}

type asnRecord struct {
	Number       uint   `maxminddb:"autonomous_system_number"`
	Organization string `maxminddb:"autonomous_system_organization"`
}

// MaxMindDatabase reads a City or ASN .mmdb file. It implements both
// providers.CityDatabase and providers.ASNDatabase; open one per file.
type MaxMindDatabase struct {
	reader *maxminddb.Reader
	path   string
}

// Open memory-maps the database at path.
func Open(path string) (*MaxMindDatabase, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, apperrors.NewUnavailableError(fmt.Sprintf("failed to open geoip database %s", path), err)
	}
	return &MaxMindDatabase{reader: reader, path: path}, nil
}

// OpenCity opens a City database. A file whose metadata names another
// database type is closed again and rejected with a VALIDATION error.
func OpenCity(path string) (*MaxMindDatabase, error) {
	return openKind(path, "City", "Enterprise")
}

// OpenASN opens an ASN database, rejecting any other database type.
func OpenASN(path string) (*MaxMindDatabase, error) {
	return openKind(path, "ASN")
}

func openKind(path string, kinds ...string) (*MaxMindDatabase, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	dbType := db.DatabaseType()
	for _, kind := range kinds {
		if strings.Contains(dbType, kind) {
			return db, nil
		}
	}
	_ = db.Close()
	return nil, apperrors.NewValidationError(
		fmt.Sprintf("geoip database %s has type %q, want %s", path, dbType, strings.Join(kinds, " or ")), nil)
}

// DatabaseType returns the metadata type, e.g. "GeoLite2-City".
func (d *MaxMindDatabase) DatabaseType() string {
	return d.reader.Metadata.DatabaseType
}

// Close releases the underlying file mapping.
func (d *MaxMindDatabase) Close() error {
	return d.reader.Close()
}

// LookupCity returns the city record for ip, or NOT_FOUND.
func (d *MaxMindDatabase) LookupCity(ctx context.Context, ip net.IP) (*entities.CityRecord, error) {
	var rec cityRecord
	if err := d.lookup(ip, &rec); err != nil {
		return nil, err
	}
	return toCityRecord(&rec), nil
}

// LookupASN returns the ASN record for ip, or NOT_FOUND.
func (d *MaxMindDatabase) LookupASN(ctx context.Context, ip net.IP) (*entities.ASNRecord, error) {
	var rec asnRecord
	if err := d.lookup(ip, &rec); err != nil {
		return nil, err
	}
	return &entities.ASNRecord{Number: rec.Number, Organization: rec.Organization}, nil
}

func (d *MaxMindDatabase) lookup(ip net.IP, result any) error {
	_, ok, err := d.reader.LookupNetwork(ip, result)
	if err != nil {
		return apperrors.NewUnavailableError(fmt.Sprintf("geoip lookup in %s failed", d.path), err)
	}
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("%s not in %s", ip, d.path))
	}
	return nil
}

func toCityRecord(rec *cityRecord) *entities.CityRecord {
	out := &entities.CityRecord{
		City:               rec.City.english(),
		Country:            rec.Country.Names["en"],
		CountryIsoCode:     rec.Country.IsoCode,
		Continent:          rec.Continent.english(),
		PostalCode:         rec.Postal.Code,
		Latitude:           rec.Location.Latitude,
		Longitude:          rec.Location.Longitude,
		IsAnonymous:        rec.Traits.IsAnonymous,
		IsAnonymousVPN:     rec.Traits.IsAnonymousVPN,
		IsPublicProxy:      rec.Traits.IsPublicProxy,
		IsResidentialProxy: rec.Traits.IsResidentialProxy,
		IsTorExitNode:      rec.Traits.IsTorExitNode,
		IsHostingProvider:  rec.Traits.IsHostingProvider,
	}
	// most specific subdivision is the last one
	if n := len(rec.Subdivisions); n > 0 {
		out.Province = rec.Subdivisions[n-1].english()
	}
	return out
}
