package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	tsclient "github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// fakeTypesense records requests and serves a minimal collection API.
type fakeTypesense struct {
	mu          sync.Mutex
	collections map[string]bool
	requests    []string
	documents   map[string][]map[string]any
	failDocs    int
}

func newFakeTypesense() *fakeTypesense {
	return &fakeTypesense{
		collections: map[string]bool{},
		documents:   map[string][]map[string]any{},
	}
}

func (f *fakeTypesense) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "collections":
		if !f.collections[parts[1]] {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Not Found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"name":"`+parts[1]+`","fields":[],"num_documents":0,"created_at":0}`)

	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "collections":
		var schema map[string]any
		_ = json.NewDecoder(r.Body).Decode(&schema)
		name, _ := schema["name"].(string)
		f.collections[name] = true
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"name":"`+name+`","fields":[],"num_documents":0,"created_at":0}`)

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "documents":
		if f.failDocs > 0 {
			f.failDocs--
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"message":"Not Ready or Lagging"}`)
			return
		}
		var doc map[string]any
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.documents[parts[1]] = append(f.documents[parts[1]], doc)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(doc)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Not Found"}`)
	}
}

func newTestWriter(t *testing.T, fake *fakeTypesense) *TypesenseIndexWriter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client := typesense.NewClient(typesense.WithServer(srv.URL), typesense.WithAPIKey("test"))
	return NewTypesenseIndexWriter(tsclient.Wrap(client), zerolog.Nop())
}

func TestTypesenseIndexWriter_CreatesPartitionOnce(t *testing.T) {
	fake := newFakeTypesense()
	writer := newTestWriter(t, fake)
	ctx := context.Background()

	doc := entities.Document{"clientIP": "8.8.8.8", "count": 3}
	require.NoError(t, writer.Index(ctx, "cloudflare-requests-2025.10.01", doc, ""))
	require.NoError(t, writer.Index(ctx, "cloudflare-requests-2025.10.01", doc, ""))

	assert.True(t, fake.collections["cloudflare-requests-2025.10.01"])
	assert.Len(t, fake.documents["cloudflare-requests-2025.10.01"], 2)

	creates := 0
	for _, req := range fake.requests {
		if req == "POST /collections" {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
	assert.NotContains(t, fake.documents["cloudflare-requests-2025.10.01"][0], "id")
}

func TestTypesenseIndexWriter_ExistingCollectionIsReused(t *testing.T) {
	fake := newFakeTypesense()
	fake.collections["cloudflare-requests-2025.10.02"] = true
	writer := newTestWriter(t, fake)

	require.NoError(t, writer.Index(context.Background(), "cloudflare-requests-2025.10.02", entities.Document{"a": "b"}, ""))
	assert.NotContains(t, fake.requests, "POST /collections")
}

func TestTypesenseIndexWriter_StableIDIsSent(t *testing.T) {
	fake := newFakeTypesense()
	writer := newTestWriter(t, fake)
	doc := entities.Document{"clientIP": "8.8.8.8"}

	require.NoError(t, writer.Index(context.Background(), "p", doc, "abc123"))

	require.Len(t, fake.documents["p"], 1)
	assert.Equal(t, "abc123", fake.documents["p"][0]["id"])
	assert.NotContains(t, doc, "id")
}

func TestTypesenseIndexWriter_ServerErrorFails(t *testing.T) {
	fake := newFakeTypesense()
	fake.failDocs = 100
	writer := newTestWriter(t, fake)

	err := writer.Index(context.Background(), "p", entities.Document{"a": "b"}, "")
	require.Error(t, err)
	assert.True(t,
		apperrors.IsType(err, apperrors.ErrorTypeExternal) || apperrors.IsType(err, apperrors.ErrorTypeUnavailable),
		err.Error())
	assert.Empty(t, fake.documents["p"])
}

func TestClassify(t *testing.T) {
	err := classify("index", &typesense.HTTPError{Status: http.StatusServiceUnavailable})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusServiceUnavailable, appErr.StatusCode)

	err = classify("index", io.ErrUnexpectedEOF)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	assert.True(t, isStatus(&typesense.HTTPError{Status: http.StatusConflict}, http.StatusConflict))
	assert.False(t, isStatus(io.EOF, http.StatusConflict))
}
