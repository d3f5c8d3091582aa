package providers

import (
	"context"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
)

// IndexWriter persists enriched documents into a named partition.
type IndexWriter interface {
	// Index stores doc in partition. An empty id lets the store assign one.
	Index(ctx context.Context, partition string, doc entities.Document, id string) error
}
