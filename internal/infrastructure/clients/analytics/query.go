package analytics

import (
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// OperationName is the GraphQL operation sent for every window.
const OperationName = "ZapTimeseriesBydatetimeGroupedByclientRequestPath"

// DefaultRowLimit is the largest page the API serves.
const DefaultRowLimit = 10000

const filterTimeLayout = "2006-01-02T15:04:05Z"

// excludedPaths are clientRequestPath_notlike patterns for probes and
// static assets that carry no traffic signal.
var excludedPaths = []string{
	"%/.well-known/%",
	"/favicon.ico",
	"%.ico%",
	"%.gif%",
	"%wlwmanifest%",
	"%.git%",
	"%/durbin%",
	"%/Blueprint.aspx%",
	"%.jsp%",
	"%/.aws%",
	"%/.env%",
	"%/index.php%",
}

// BuildQuery returns the query document selecting the base dimensions, plus
// the premium ones when includePremium is set.
func BuildQuery(rowLimit int, includePremium bool) string {
	if rowLimit <= 0 {
		rowLimit = DefaultRowLimit
	}
	fields := append([]string(nil), entities.RequiredFields...)
	if includePremium {
		fields = append(fields, entities.PremiumFields...)
	}

	var b strings.Builder
	b.WriteString("query ")
	b.WriteString(OperationName)
	b.WriteString("($zoneTag: string, $filter: ZoneHttpRequestsAdaptiveGroupsFilter_InputObject) {")
	b.WriteString(" viewer { zones(filter: { zoneTag: $zoneTag }) {")
	b.WriteString(" series: httpRequestsAdaptiveGroups(limit: ")
	b.WriteString(strconv.Itoa(rowLimit))
	b.WriteString(", filter: $filter) {")
	b.WriteString(" count avg { sampleInterval __typename } sum { edgeResponseBytes visits __typename }")
	b.WriteString(" dimensions { ")
	b.WriteString(strings.Join(fields, " "))
	b.WriteString(" } __typename } __typename } __typename } }")
	return b.String()
}

// ValidateQuery parses query and checks it declares OperationName.
func ValidateQuery(query string) error {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Name: OperationName, Input: query})
	if gqlErr != nil {
		return apperrors.NewValidationError("analytics query does not parse", gqlErr)
	}
	if doc.Operations.ForName(OperationName) == nil {
		return apperrors.NewValidationError("analytics query has no operation "+OperationName, nil)
	}
	return nil
}

// BuildFilter returns the filter variable for one window. Both bounds are
// inclusive.
func BuildFilter(window entities.ExtractionWindow) map[string]any {
	and := []map[string]any{
		{
			"datetime_geq": window.Start.UTC().Format(filterTimeLayout),
			"datetime_leq": window.End.UTC().Format(filterTimeLayout),
		},
		{"userAgent_neq": ""},
		{"userAgent_neq": "test"},
		{"clientRequestPath_neq": "//.well-known/"},
	}
	for _, pattern := range excludedPaths {
		and = append(and, map[string]any{"clientRequestPath_notlike": pattern})
	}
	return map[string]any{"AND": and}
}
