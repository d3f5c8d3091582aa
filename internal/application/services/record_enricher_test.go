package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trafficpipeline/internal/application/services"
	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/pkg/attribution"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

func sampleDimensions() map[string]any {
	return map[string]any{
		"clientIP":                    "8.8.8.8",
		"userAgent":                   "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Chrome/120.0.0.0",
		"clientRequestQuery":          "q=shoes&gclid=abc",
		"clientRequestReferer":        "https://example.com/x?utm_source=news",
		"clientCountryName":           "US",
		"datetime":                    "2025-10-01T00:00:00Z",
		"clientRequestHTTPHost":       "shop.example.org",
		"clientRequestHTTPMethodName": "GET",
		"clientRequestPath":           "/products",
		"edgeResponseStatus":          json.Number("200"),
		"originResponseStatus":        json.Number("304"),
		"sampleInterval":              json.Number("1"),
	}
}

func TestRecordEnricher_EndToEnd(t *testing.T) {
	doc, err := testEnricher().Enrich(context.Background(), sampleDimensions())
	require.NoError(t, err)

	assert.Equal(t, "shoes", doc["clientRequest_search_keyword"])
	assert.Equal(t, "abc", doc["clientRequest_gclid"])
	assert.Equal(t, "news", doc["clientReferer_utm_source"])
	assert.Equal(t, "example.com", doc["clientRefererHost"])
	assert.Equal(t, "https", doc["clientRefererScheme"])
	assert.Equal(t, "/x", doc["clientRefererPath"])
	assert.Equal(t, "US", doc[services.KeyCountryCode])
	assert.Equal(t, "United States", doc[services.KeyCountryName])
	assert.Equal(t, "Mountain View", doc["clientRequest_geoip_city"])
	assert.Equal(t, "15169", doc["clientRequest_geoip_asn"])
	assert.Equal(t, "GOOGLE", doc["clientRequest_geoip_asn_org"])
	assert.Equal(t, "Chrome", doc["user_agent_family"])
	assert.Equal(t, "OK", doc[services.KeyEdgeResponseStatusDesc])
	assert.Equal(t, "Not Modified", doc[services.KeyOriginResponseStatusDesc])
	assert.Equal(t, attribution.SourceReferral, doc[attribution.RefererSourceKey])

	// raw dimensions survive untouched
	assert.Equal(t, "GET", doc["clientRequestHTTPMethodName"])
	assert.Equal(t, json.Number("200"), doc["edgeResponseStatus"])
}

func TestRecordEnricher_DefaultsRequiredFields(t *testing.T) {
	doc, err := testEnricher().Enrich(context.Background(), map[string]any{
		"clientIP": nil,
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedInput))

	for _, field := range entities.RequiredFields {
		assert.Equal(t, "", doc[field], field)
	}
	for _, key := range attribution.RequestKeys() {
		assert.Contains(t, doc, key)
	}
	for _, key := range attribution.RefererKeys() {
		assert.Contains(t, doc, key)
	}
	for key := range (entities.GeoInfo{}).Fields() {
		assert.Equal(t, "", doc[key], key)
	}
	for key := range (entities.UserAgentInfo{}).Fields() {
		assert.Contains(t, doc, key)
	}
	assert.Equal(t, "", doc[services.KeyCountryName])
	assert.Equal(t, "Unknown", doc[services.KeyEdgeResponseStatusDesc])
	assert.Equal(t, attribution.SourceDirect, doc[attribution.RefererSourceKey])
}

func TestRecordEnricher_StepFailureDegradesOnlyThatStep(t *testing.T) {
	dims := sampleDimensions()
	dims["clientIP"] = "10.0.0.1"
	dims["clientRequestReferer"] = "http://[::1"

	doc, err := testEnricher().Enrich(context.Background(), dims)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeMalformedInput))

	assert.Equal(t, "", doc["clientRequest_geoip_city"])
	assert.Equal(t, "", doc["clientReferer_utm_source"])
	assert.Equal(t, "", doc["clientRefererHost"])

	// other steps unaffected
	assert.Equal(t, "shoes", doc["clientRequest_search_keyword"])
	assert.Equal(t, "United States", doc[services.KeyCountryName])
	assert.Equal(t, "Chrome", doc["user_agent_family"])
}

func TestRecordEnricher_DoesNotMutateInput(t *testing.T) {
	dims := sampleDimensions()
	_, err := testEnricher().Enrich(context.Background(), dims)
	require.NoError(t, err)

	assert.NotContains(t, dims, "clientRequest_gclid")
	assert.Len(t, dims, len(sampleDimensions()))
}

func TestRecordEnricher_OwnHostRefererIsDirect(t *testing.T) {
	dims := sampleDimensions()
	dims["clientRequestReferer"] = "https://shop.example.org/cart"

	doc, err := testEnricher().Enrich(context.Background(), dims)
	require.NoError(t, err)
	assert.Equal(t, attribution.SourceDirect, doc[attribution.RefererSourceKey])
}

func TestStatusDescription(t *testing.T) {
	tests := []struct {
		input any
		want  string
	}{
		{input: json.Number("200"), want: "OK"},
		{input: "404", want: "Not Found"},
		{input: float64(503), want: "Service Unavailable"},
		{input: 0, want: "Unknown"},
		{input: "", want: "Unknown"},
		{input: "999", want: "Unknown"},
		{input: nil, want: "Unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, services.StatusDescription(tt.input), "%v", tt.input)
	}
}
