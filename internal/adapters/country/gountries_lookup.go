package country

import (
	"fmt"
	"strings"

	"github.com/pariz/gountries"

	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// GountriesLookup implements providers.CountryLookup over the ISO 3166-1
// table shipped with gountries.
type GountriesLookup struct {
	query *gountries.Query
}

// NewGountriesLookup loads the country table once.
func NewGountriesLookup() *GountriesLookup {
	return &GountriesLookup{query: gountries.New()}
}

// NameByAlpha2 returns the common English name for an alpha-2 code.
func (l *GountriesLookup) NameByAlpha2(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return "", apperrors.NewMalformedInputError(fmt.Sprintf("%q is not an alpha-2 code", code), nil)
	}

	c, err := l.query.FindCountryByAlpha(code)
	if err != nil {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("unknown country code %q", code))
	}
	return c.Name.Common, nil
}
