package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	"github.com/zatekoja/trafficpipeline/pkg/config"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// maxErrorBody bounds how much of an error response is kept in the error.
const maxErrorBody = 2048

// Client fetches one window of grouped HTTP request analytics per call
type Client struct {
	endpoint   string
	token      string
	accountTag string
	zoneTag    string
	query      string
	httpClient *http.Client
	logger     zerolog.Logger
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// NewClient creates a new analytics client. The query document is built
// and parsed once here, so a malformed query fails at startup.
func NewClient(cfg *config.AnalyticsConfig, logger zerolog.Logger) (*Client, error) {
	query := BuildQuery(cfg.RowLimit, cfg.IncludePremiumFields)
	if err := ValidateQuery(query); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		token:      cfg.APIToken,
		accountTag: cfg.AccountTag,
		zoneTag:    cfg.ZoneTag,
		query:      query,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "analytics_client").Logger(),
	}, nil
}

var _ providers.AnalyticsSource = (*Client)(nil)

// Query returns the query document sent with every request
func (c *Client) Query() string {
	return c.query
}

// FetchWindow posts the query for window and returns the raw response body.
func (c *Client) FetchWindow(ctx context.Context, window entities.ExtractionWindow) ([]byte, error) {
	payload, err := json.Marshal(graphQLRequest{
		Query: c.query,
		Variables: map[string]any{
			"accountTag": c.accountTag,
			"zoneTag":    c.zoneTag,
			"filter":     BuildFilter(window),
		},
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode analytics request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewValidationError("failed to build analytics request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.NewUnavailableError("analytics request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewUnavailableError("failed to read analytics response", err)
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(started)).
		Time("window_start", window.Start).
		Msg("Analytics response received")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, apperrors.NewExternalError(
			fmt.Sprintf("analytics api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
			resp.StatusCode,
			nil,
		)
	}

	return body, nil
}
