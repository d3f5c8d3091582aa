package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trafficpipeline/internal/application/services"
	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
)

func testEnricher() *services.RecordEnricher {
	return services.NewRecordEnricher(
		services.NewUserAgentClassifier(nil),
		services.NewGeoResolver(nil, nil),
		services.NewCountryNormalizer(nil),
		zerolog.Nop(),
	)
}

func TestEnrichStream(t *testing.T) {
	in := strings.NewReader(`{"clientIP":"8.8.8.8","clientRequestQuery":"utm_source=google","edgeResponseStatus":404}
{"userAgent":"curl/8.0"}
`)
	var out bytes.Buffer

	require.NoError(t, enrichStream(context.Background(), testEnricher(), in, &out, false, zerolog.Nop()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "google", first["clientRequest_utm_source"])
	assert.Equal(t, "Not Found", first["edgeResponseStatusDesc"])
	assert.Equal(t, "8.8.8.8", first[entities.FieldClientIP])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "", second[entities.FieldClientIP])
	assert.Equal(t, "Unknown", second["edgeResponseStatusDesc"])
}

func TestEnrichStream_BadInput(t *testing.T) {
	var out bytes.Buffer
	err := enrichStream(context.Background(), testEnricher(), strings.NewReader(`{"clientIP": `), &out, false, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}
