package services

import (
	"fmt"
	"strings"

	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// CountryNormalizer maps ISO 3166-1 alpha-2 codes to display names.
type CountryNormalizer struct {
	lookup providers.CountryLookup
}

// NewCountryNormalizer creates a new country normalizer
func NewCountryNormalizer(lookup providers.CountryLookup) *CountryNormalizer {
	return &CountryNormalizer{lookup: lookup}
}

// Normalize returns the display name for value. nil and "" give "", values
// that are not strings are returned unchanged, unknown codes give "".
func (n *CountryNormalizer) Normalize(value any) any {
	name, _ := n.NormalizeWithError(value)
	return name
}

// NormalizeWithError is Normalize that also reports why a string code did
// not resolve.
func (n *CountryNormalizer) NormalizeWithError(value any) (any, error) {
	if value == nil {
		return "", nil
	}
	code, ok := value.(string)
	if !ok {
		return value, nil
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", nil
	}
	if n.lookup == nil {
		return "", apperrors.NewUnavailableError("country table not configured", nil)
	}

	name, err := n.lookup.NameByAlpha2(strings.ToUpper(code))
	if err != nil {
		return "", fmt.Errorf("country %q: %w", code, err)
	}
	if name == "" {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("unknown country code %q", code))
	}
	return name, nil
}
