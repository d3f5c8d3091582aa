package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// GeoResolver resolves client addresses against the city and ASN databases.
// Each lookup either yields a complete result or the empty default; the two
// databases fail independently.
type GeoResolver struct {
	city providers.CityDatabase
	asn  providers.ASNDatabase
}

// NewGeoResolver creates a GeoResolver. Either database may be nil, in which
// case its half always resolves to the empty default.
func NewGeoResolver(city providers.CityDatabase, asn providers.ASNDatabase) *GeoResolver {
	return &GeoResolver{city: city, asn: asn}
}

// ResolveASN returns the ASN and organization for ip, or the empty ASNInfo
// together with the cause.
func (r *GeoResolver) ResolveASN(ctx context.Context, ip string) (entities.ASNInfo, error) {
	addr, err := parseIP(ip)
	if err != nil {
		return entities.ASNInfo{}, err
	}
	if r.asn == nil {
		return entities.ASNInfo{}, apperrors.NewUnavailableError("asn database not configured", nil)
	}

	rec, err := r.asn.LookupASN(ctx, addr)
	if err != nil {
		return entities.ASNInfo{}, fmt.Errorf("asn lookup %s: %w", ip, err)
	}
	if rec == nil || rec.Number == 0 {
		return entities.ASNInfo{}, apperrors.NewNotFoundError(fmt.Sprintf("no asn entry for %s", ip))
	}

	return entities.ASNInfo{ASN: rec.Number, ASNOrg: rec.Organization}, nil
}

// ResolveCity returns the city-level fields for ip, or the empty GeoInfo
// together with the cause. Coordinates are only filled in when the database
// knows the city name.
func (r *GeoResolver) ResolveCity(ctx context.Context, ip string) (entities.GeoInfo, error) {
	addr, err := parseIP(ip)
	if err != nil {
		return entities.GeoInfo{}, err
	}
	if r.city == nil {
		return entities.GeoInfo{}, apperrors.NewUnavailableError("city database not configured", nil)
	}

	rec, err := r.city.LookupCity(ctx, addr)
	if err != nil {
		return entities.GeoInfo{}, fmt.Errorf("city lookup %s: %w", ip, err)
	}
	if rec == nil {
		return entities.GeoInfo{}, apperrors.NewNotFoundError(fmt.Sprintf("no city entry for %s", ip))
	}

	info := entities.GeoInfo{
		City:               rec.City,
		Country:            rec.Country,
		CountryIsoCode:     rec.CountryIsoCode,
		Continent:          rec.Continent,
		Province:           rec.Province,
		PostalCode:         rec.PostalCode,
		IsAnonymous:        strconv.FormatBool(rec.IsAnonymous),
		IsAnonymousVPN:     strconv.FormatBool(rec.IsAnonymousVPN),
		IsPublicProxy:      strconv.FormatBool(rec.IsPublicProxy),
		IsResidentialProxy: strconv.FormatBool(rec.IsResidentialProxy),
		IsTorExitNode:      strconv.FormatBool(rec.IsTorExitNode),
		IsHostingProvider:  strconv.FormatBool(rec.IsHostingProvider),
	}

	if rec.City != "" {
		info.Latitude = strconv.FormatFloat(rec.Latitude, 'f', -1, 64)
		info.Longitude = strconv.FormatFloat(rec.Longitude, 'f', -1, 64)
		info.Geocoding = info.Latitude + "," + info.Longitude
	}

	return info, nil
}

// ResolveIP merges ResolveCity and ResolveASN. The returned error joins the
// failures of both halves; the GeoInfo is always usable.
func (r *GeoResolver) ResolveIP(ctx context.Context, ip string) (entities.GeoInfo, error) {
	info, cityErr := r.ResolveCity(ctx, ip)
	asn, asnErr := r.ResolveASN(ctx, ip)
	info.ASNInfo = asn
	return info, errors.Join(cityErr, asnErr)
}

func parseIP(ip string) (net.IP, error) {
	trimmed := strings.TrimSpace(ip)
	if trimmed == "" {
		return nil, apperrors.NewMalformedInputError("empty ip address", nil)
	}
	addr := net.ParseIP(trimmed)
	if addr == nil {
		return nil, apperrors.NewMalformedInputError(fmt.Sprintf("invalid ip address %q", ip), nil)
	}
	return addr, nil
}
