package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/pkg/attribution"
	"github.com/zatekoja/trafficpipeline/pkg/urlparse"
)

// Derived document keys written by RecordEnricher.
const (
	KeyCountryCode              = "clientRequest_CountryCode"
	KeyCountryName              = "clientRequest_CountryName"
	KeyEdgeResponseStatusDesc   = "edgeResponseStatusDesc"
	KeyOriginResponseStatusDesc = "originResponseStatusDesc"
)

// RecordEnricher turns one raw dimension map into an enriched document.
type RecordEnricher struct {
	userAgents *UserAgentClassifier
	geo        *GeoResolver
	countries  *CountryNormalizer
	referers   *attribution.RefererClassifier
	logger     zerolog.Logger
}

// NewRecordEnricher creates a new record enricher. The collaborators are
// shared for the lifetime of the process.
func NewRecordEnricher(
	userAgents *UserAgentClassifier,
	geo *GeoResolver,
	countries *CountryNormalizer,
	logger zerolog.Logger,
) *RecordEnricher {
	return &RecordEnricher{
		userAgents: userAgents,
		geo:        geo,
		countries:  countries,
		referers:   attribution.NewRefererClassifier(),
		logger:     logger.With().Str("component", "record_enricher").Logger(),
	}
}

// Enrich copies dims, defaults the required fields to "" and then runs the
// request query, user agent, referer, country and geo steps in that order.
// A failing step leaves its own keys at their empty defaults. The returned
// error joins the step failures and never means the document is unusable.
func (e *RecordEnricher) Enrich(ctx context.Context, dims map[string]any) (entities.Document, error) {
	doc := make(entities.Document, len(dims)+128)
	for k, v := range dims {
		doc[k] = v
	}
	for _, field := range entities.RequiredFields {
		if v, ok := doc[field]; !ok || v == nil {
			doc[field] = ""
		}
	}

	var errs []error

	// request query attribution
	rawQuery := stringValue(doc[entities.FieldClientRequestQuery])
	requestFields, err := attribution.ExtractRequestQuery(rawQuery)
	if err != nil && strings.TrimSpace(rawQuery) != "" {
		errs = append(errs, fmt.Errorf("request query: %w", err))
	}
	mergeStrings(doc, requestFields)

	// user agent
	mergeStrings(doc, e.userAgents.Classify(stringValue(doc[entities.FieldUserAgent])).Fields())

	// referer attribution
	referer := stringValue(doc[entities.FieldClientRequestReferer])
	refererFields, err := attribution.ExtractReferer(referer)
	if err != nil && strings.TrimSpace(referer) != "" {
		errs = append(errs, fmt.Errorf("referer: %w", err))
	}
	mergeStrings(doc, refererFields)
	doc[attribution.RefererSourceKey] = e.referers.Classify(
		refererFields["clientRefererHost"],
		requestHostname(stringValue(doc[entities.FieldClientRequestHost])),
	)

	// country
	countryCode := doc[entities.FieldClientCountryName]
	doc[KeyCountryCode] = countryCode
	countryName, err := e.countries.NormalizeWithError(countryCode)
	if err != nil {
		errs = append(errs, fmt.Errorf("country: %w", err))
	}
	doc[KeyCountryName] = countryName

	// geo
	geo, err := e.geo.ResolveIP(ctx, stringValue(doc[entities.FieldClientIP]))
	if err != nil {
		errs = append(errs, fmt.Errorf("geo: %w", err))
	}
	mergeStrings(doc, geo.Fields())

	doc[KeyEdgeResponseStatusDesc] = StatusDescription(doc[entities.FieldEdgeResponseStatus])
	doc[KeyOriginResponseStatusDesc] = StatusDescription(doc[entities.FieldOriginResponseStatus])

	joined := errors.Join(errs...)
	if joined != nil {
		e.logger.Debug().
			Err(joined).
			Str("client_ip", stringValue(doc[entities.FieldClientIP])).
			Msg("Record enriched with degraded fields")
	}
	return doc, joined
}

// StatusDescription returns the reason phrase for an HTTP status code held
// as a number or string, or "Unknown".
func StatusDescription(value any) string {
	code, ok := intValue(value)
	if !ok {
		return "Unknown"
	}
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

func mergeStrings(doc entities.Document, fields map[string]string) {
	for k, v := range fields {
		doc[k] = v
	}
}

func requestHostname(host string) string {
	if host == "" {
		return ""
	}
	parsed, err := urlparse.Parse("//"+host, true)
	if err != nil {
		return strings.ToLower(host)
	}
	return parsed.Hostname
}

func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	default:
		return 0, false
	}
}
