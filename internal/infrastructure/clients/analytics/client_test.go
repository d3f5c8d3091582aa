package analytics_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/analytics"
	"github.com/zatekoja/trafficpipeline/pkg/config"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

type capturedRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

func testWindow() entities.ExtractionWindow {
	return entities.NewExtractionWindow(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC), 6*time.Hour)
}

func newTestClient(t *testing.T, endpoint string, premium bool) *analytics.Client {
	t.Helper()
	client, err := analytics.NewClient(&config.AnalyticsConfig{
		Endpoint:             endpoint,
		APIToken:             "secret-token",
		AccountTag:           "acct",
		ZoneTag:              "zone-1",
		IncludePremiumFields: premium,
		RowLimit:             10000,
		Timeout:              5 * time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func TestClient_FetchWindow(t *testing.T) {
	var got capturedRequest
	var auth, contentType, method string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		auth = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)
		_, _ = w.Write([]byte(`{"data":{"viewer":{"zones":[{"series":[]}]}},"errors":null}`))
	}))
	defer srv.Close()

	body, err := newTestClient(t, srv.URL, false).FetchWindow(context.Background(), testWindow())
	require.NoError(t, err)

	assert.Contains(t, string(body), `"series":[]`)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "Bearer secret-token", auth)
	assert.Equal(t, "application/json", contentType)

	assert.Contains(t, got.Query, analytics.OperationName)
	assert.Equal(t, "zone-1", got.Variables["zoneTag"])
	assert.Equal(t, "acct", got.Variables["accountTag"])

	filter, ok := got.Variables["filter"].(map[string]any)
	require.True(t, ok)
	and, ok := filter["AND"].([]any)
	require.True(t, ok)
	first := and[0].(map[string]any)
	assert.Equal(t, "2025-10-01T00:00:00Z", first["datetime_geq"])
	assert.Equal(t, "2025-10-01T06:00:00Z", first["datetime_leq"])
}

func TestClient_FetchWindow_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"message":"rate limited"}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, false).FetchWindow(context.Background(), testWindow())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)
	assert.Equal(t, http.StatusTooManyRequests, appErr.StatusCode)
	assert.Contains(t, appErr.Message, "rate limited")
}

func TestClient_FetchWindow_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	_, err := newTestClient(t, endpoint, false).FetchWindow(context.Background(), testWindow())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))
}

func TestClient_FetchWindow_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, srv.URL, false).FetchWindow(ctx, testWindow())
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildQuery(t *testing.T) {
	base := analytics.BuildQuery(500, false)
	require.NoError(t, analytics.ValidateQuery(base))
	assert.Contains(t, base, "limit: 500")
	assert.Contains(t, base, "clientIP")
	assert.NotContains(t, base, "clientRequestReferer")

	premium := analytics.BuildQuery(0, true)
	require.NoError(t, analytics.ValidateQuery(premium))
	assert.Contains(t, premium, "limit: 10000")
	for _, field := range entities.PremiumFields {
		assert.Contains(t, premium, field)
	}
}

func TestValidateQuery(t *testing.T) {
	err := analytics.ValidateQuery("query { viewer {")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	err = analytics.ValidateQuery("query Other { viewer { zones { __typename } } }")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestBuildFilter(t *testing.T) {
	filter := analytics.BuildFilter(testWindow())
	and := filter["AND"].([]map[string]any)

	var patterns []string
	for _, clause := range and {
		if p, ok := clause["clientRequestPath_notlike"].(string); ok {
			patterns = append(patterns, p)
		}
	}
	assert.Contains(t, patterns, "%/.env%")
	assert.Contains(t, patterns, "/favicon.ico")
	assert.True(t, strings.HasPrefix(and[0]["datetime_geq"].(string), "2025-10-01T00:00:00"))
}
