// Package urlparse splits URLs into their structural parts and derives
// stable origin and origin+path identifiers from them.
package urlparse

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// ParsedURL holds the components of a parsed URL.
// When IsValid is false every field except RawURL is empty.
type ParsedURL struct {
	IsValid  bool   `json:"isvalid"`
	Scheme   string `json:"scheme"`
	Netloc   string `json:"netloc"`
	Hostname string `json:"hostname"`
	Port     string `json:"port"`
	Path     string `json:"path"`
	Query    string `json:"query"`
	Fragment string `json:"fragment"`
	HostHash string `json:"host_hash"`
	PathHash string `json:"path_hash"`
	RawURL   string `json:"url"`
}

var defaultPorts = map[string]string{
	"https": "443",
	"http":  "80",
}

// Validate reports whether raw can be structurally parsed.
func Validate(raw string) bool {
	if strings.TrimSpace(raw) == "" {
		return false
	}
	_, err := url.Parse(raw)
	return err == nil
}

// Parse decomposes raw into a ParsedURL. On any failure the zero-value
// record (with RawURL set) is returned together with a MALFORMED_INPUT error;
// a partially populated record is never returned.
func Parse(raw string, lowercase bool) (ParsedURL, error) {
	invalid := ParsedURL{RawURL: raw}

	if !Validate(raw) {
		return invalid, apperrors.NewMalformedInputError(fmt.Sprintf("unparseable url %q", raw), nil)
	}

	if lowercase {
		raw = strings.ToLower(raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return invalid, apperrors.NewMalformedInputError("unparseable url", err)
	}

	port := u.Port()
	if port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n < 0 || n > 65535 {
			return invalid, apperrors.NewMalformedInputError(fmt.Sprintf("port %q out of range", port), err)
		}
		port = strconv.Itoa(n)
	} else if u.Scheme != "" {
		port = defaultPorts[u.Scheme]
	}

	netloc := u.Host
	if u.User != nil {
		netloc = u.User.String() + "@" + u.Host
	}

	parsed := ParsedURL{
		IsValid:  true,
		Scheme:   u.Scheme,
		Netloc:   netloc,
		Hostname: strings.ToLower(u.Hostname()),
		Port:     port,
		Path:     u.EscapedPath(),
		Query:    u.RawQuery,
		Fragment: u.EscapedFragment(),
		RawURL:   raw,
	}
	if u.Opaque != "" {
		parsed.Path = u.Opaque
	}

	parsed.HostHash = HostHash(parsed.Scheme, parsed.Hostname, parsed.Port)
	parsed.PathHash = PathHash(parsed.Scheme, parsed.Hostname, parsed.Port, parsed.Path)
	return parsed, nil
}

// HostHash returns the SHA-1 hex digest of "{scheme}://{host}:{port}".
func HostHash(scheme, host, port string) string {
	return sha1Hex(fmt.Sprintf("%s://%s:%s", scheme, host, port))
}

// PathHash returns the SHA-1 hex digest of "{scheme}://{host}:{port}{path}".
func PathHash(scheme, host, port, path string) string {
	return sha1Hex(fmt.Sprintf("%s://%s:%s%s", scheme, host, port, path))
}

func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
