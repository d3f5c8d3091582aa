package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	tsclient "github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/typesense"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// Fields that are defaulted to "" when absent but arrive as numbers
// otherwise. Pinning them to string stops auto-detection from locking the
// collection to int64 on the first document.
var stringPinnedFields = []string{
	entities.FieldEdgeResponseStatus,
	entities.FieldOriginResponseStatus,
	entities.FieldSampleInterval,
}

// TypesenseIndexWriter writes documents into one collection per partition.
// Collections are created on first use with an auto-detected schema.
type TypesenseIndexWriter struct {
	client *tsclient.Client
	logger zerolog.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

// Ensure TypesenseIndexWriter implements IndexWriter
var _ providers.IndexWriter = (*TypesenseIndexWriter)(nil)

// NewTypesenseIndexWriter creates a new Typesense index writer
func NewTypesenseIndexWriter(client *tsclient.Client, logger zerolog.Logger) *TypesenseIndexWriter {
	return &TypesenseIndexWriter{
		client: client,
		logger: logger.With().Str("component", "typesense_index_writer").Logger(),
		known:  make(map[string]struct{}),
	}
}

// Index stores doc in the partition collection. Without an id the server
// assigns one; with an id the document is upserted.
func (w *TypesenseIndexWriter) Index(ctx context.Context, partition string, doc entities.Document, id string) error {
	if err := w.EnsureCollection(ctx, partition); err != nil {
		return err
	}

	documents := w.client.Client().Collection(partition).Documents()

	var err error
	if id == "" {
		_, err = documents.Create(ctx, map[string]any(doc))
	} else {
		withID := make(map[string]any, len(doc)+1)
		for k, v := range doc {
			withID[k] = v
		}
		withID["id"] = id
		_, err = documents.Upsert(ctx, withID)
	}
	if err != nil {
		return classify(fmt.Sprintf("failed to index document into %s", partition), err)
	}
	return nil
}

// EnsureCollection creates the partition collection unless it is already
// known to exist.
func (w *TypesenseIndexWriter) EnsureCollection(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.known[name]; ok {
		return nil
	}

	if _, err := w.client.Client().Collection(name).Retrieve(ctx); err == nil {
		w.known[name] = struct{}{}
		return nil
	}

	fields := []api.Field{{Name: ".*", Type: "auto"}}
	for _, f := range stringPinnedFields {
		fields = append(fields, api.Field{Name: f, Type: "string", Optional: pointer.True()})
	}

	_, err := w.client.Client().Collections().Create(ctx, &api.CollectionSchema{
		Name:   name,
		Fields: fields,
	})
	if err != nil && !isStatus(err, http.StatusConflict) {
		return classify(fmt.Sprintf("failed to create typesense collection %s", name), err)
	}

	w.logger.Info().Str("partition", name).Msg("Partition collection ready")
	w.known[name] = struct{}{}
	return nil
}

func isStatus(err error, status int) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}

func classify(msg string, err error) error {
	var httpErr *typesense.HTTPError
	if errors.As(err, &httpErr) {
		return apperrors.NewExternalError(msg, httpErr.Status, err)
	}
	return apperrors.NewUnavailableError(msg, err)
}
