package entities

import (
	"encoding/json"
	"time"
)

// Document is one enriched traffic record as handed to the index writer.
type Document map[string]any

// Raw dimension keys the enricher reads.
const (
	FieldClientCountryName    = "clientCountryName"
	FieldClientIP             = "clientIP"
	FieldClientRequestHost    = "clientRequestHTTPHost"
	FieldClientRequestMethod  = "clientRequestHTTPMethodName"
	FieldClientRequestPath    = "clientRequestPath"
	FieldDatetime             = "datetime"
	FieldEdgeResponseStatus   = "edgeResponseStatus"
	FieldOriginResponseStatus = "originResponseStatus"
	FieldSampleInterval       = "sampleInterval"
	FieldUserAgent            = "userAgent"
	FieldClientRequestQuery   = "clientRequestQuery"
	FieldClientRequestReferer = "clientRequestReferer"
)

// RequiredFields are defaulted to "" before any enrichment step runs.
var RequiredFields = []string{
	FieldClientCountryName,
	FieldClientIP,
	FieldClientRequestHost,
	FieldClientRequestMethod,
	FieldClientRequestPath,
	FieldDatetime,
	FieldEdgeResponseStatus,
	FieldOriginResponseStatus,
	FieldSampleInterval,
	FieldUserAgent,
}

// PremiumFields are only returned by the analytics API on plans with bot
// management / enterprise features.
var PremiumFields = []string{
	"originIP",
	FieldClientRequestQuery,
	FieldClientRequestReferer,
	"clientRefererHost",
	"clientAsn",
	"clientASNDescription",
	"edgeResponseContentTypeName",
	"botManagementDecision",
	"botScoreSrcName",
	"securityAction",
	"securitySource",
	"wafAttackScore",
	"wafAttackScoreClass",
	"wafXssAttackScore",
	"xRequestedWith",
}

// ExtractionWindow is one fixed-width slice of the overall extraction range.
type ExtractionWindow struct {
	Start time.Time
	End   time.Time
}

// NewExtractionWindow returns the window starting at start with the given width.
func NewExtractionWindow(start time.Time, width time.Duration) ExtractionWindow {
	return ExtractionWindow{Start: start, End: start.Add(width)}
}

// Next returns the following window. It starts at w.End, not w.Start+width.
func (w ExtractionWindow) Next(width time.Duration) ExtractionWindow {
	return NewExtractionWindow(w.End, width)
}

// BatchMetadata is the provenance stamped onto every document of a run.
type BatchMetadata struct {
	BatchID     string
	BatchName   string
	BatchTime   time.Time
	AccountTag  string
	ZoneTag     string
	IndexPrefix string
	Window      ExtractionWindow
}

// AnalyticsEnvelope is the GraphQL response body returned by the analytics API.
type AnalyticsEnvelope struct {
	Data   *AnalyticsData `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// AnalyticsData is the "data" member of the envelope.
type AnalyticsData struct {
	Viewer *struct {
		Zones []struct {
			Series []SeriesItem `json:"series"`
		} `json:"zones"`
	} `json:"viewer"`
}

// GraphQLError is one entry of the envelope's "errors" array.
type GraphQLError struct {
	Message string         `json:"message"`
	Path    []any          `json:"path,omitempty"`
	Extras  map[string]any `json:"extensions,omitempty"`
}

// SeriesItem is one aggregated group of requests.
type SeriesItem struct {
	Count json.Number `json:"count"`
	Avg   struct {
		SampleInterval json.Number `json:"sampleInterval"`
		Typename       string      `json:"__typename"`
	} `json:"avg"`
	Sum struct {
		EdgeResponseBytes json.Number `json:"edgeResponseBytes"`
		Visits            json.Number `json:"visits"`
		Typename          string      `json:"__typename"`
	} `json:"sum"`
	Dimensions map[string]any `json:"dimensions"`
}

// Series returns the first zone's series, or false when the nested path
// data.viewer.zones[0].series is missing.
func (e *AnalyticsEnvelope) Series() ([]SeriesItem, bool) {
	if e == nil || e.Data == nil || e.Data.Viewer == nil || len(e.Data.Viewer.Zones) == 0 {
		return nil, false
	}
	series := e.Data.Viewer.Zones[0].Series
	if series == nil {
		return nil, false
	}
	return series, true
}
