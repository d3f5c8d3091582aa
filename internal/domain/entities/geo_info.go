package entities

import "strconv"

// CityRecord is what a city database returns for one address.
type CityRecord struct {
	City               string  `json:"city"`
	Country            string  `json:"country"`
	CountryIsoCode     string  `json:"country_iso_code"`
	Continent          string  `json:"continent"`
	Province           string  `json:"province"`
	PostalCode         string  `json:"postal_code"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	IsAnonymous        bool    `json:"is_anonymous"`
	IsAnonymousVPN     bool    `json:"is_anonymous_vpn"`
	IsPublicProxy      bool    `json:"is_public_proxy"`
	IsResidentialProxy bool    `json:"is_residential_proxy"`
	IsTorExitNode      bool    `json:"is_tor_exit_node"`
	IsHostingProvider  bool    `json:"is_hosting_provider"`
}

// ASNRecord is what an ASN database returns for one address.
type ASNRecord struct {
	Number       uint   `json:"asn"`
	Organization string `json:"asn_org"`
}

// ASNInfo is the normalized ASN half of GeoInfo. Number 0 means unknown.
type ASNInfo struct {
	ASN    uint
	ASNOrg string
}

// GeoInfo is the normalized geo/network origin of a client address.
// The zero value is the documented empty default.
type GeoInfo struct {
	City               string
	Country            string
	CountryIsoCode     string
	Continent          string
	Province           string
	PostalCode         string
	Latitude           string
	Longitude          string
	Geocoding          string
	IsAnonymous        string
	IsAnonymousVPN     string
	IsPublicProxy      string
	IsResidentialProxy string
	IsTorExitNode      string
	IsHostingProvider  string
	ASNInfo
}

// GeoKeyPrefix prefixes every geo key in a Document.
const GeoKeyPrefix = "clientRequest_geoip_"

// Fields returns the document keys and values for g. ASN is rendered as a
// decimal string, or "" when unknown, so the field type is stable.
func (g GeoInfo) Fields() map[string]string {
	asn := ""
	if g.ASN != 0 {
		asn = strconv.FormatUint(uint64(g.ASN), 10)
	}
	return map[string]string{
		GeoKeyPrefix + "city":                 g.City,
		GeoKeyPrefix + "country":              g.Country,
		GeoKeyPrefix + "country_iso_code":     g.CountryIsoCode,
		GeoKeyPrefix + "continent":            g.Continent,
		GeoKeyPrefix + "province":             g.Province,
		GeoKeyPrefix + "postal_code":          g.PostalCode,
		GeoKeyPrefix + "latitude":             g.Latitude,
		GeoKeyPrefix + "longitude":            g.Longitude,
		GeoKeyPrefix + "geocoding":            g.Geocoding,
		GeoKeyPrefix + "is_anonymous":         g.IsAnonymous,
		GeoKeyPrefix + "is_anonymous_vpn":     g.IsAnonymousVPN,
		GeoKeyPrefix + "is_public_proxy":      g.IsPublicProxy,
		GeoKeyPrefix + "is_residential_proxy": g.IsResidentialProxy,
		GeoKeyPrefix + "is_tor_exit_node":     g.IsTorExitNode,
		GeoKeyPrefix + "is_hosting_provider":  g.IsHostingProvider,
		GeoKeyPrefix + "asn":                  asn,
		GeoKeyPrefix + "asn_org":              g.ASNOrg,
	}
}
