package providers

import (
	"context"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
)

// AnalyticsSource fetches raw traffic pages from the remote analytics API.
type AnalyticsSource interface {
	// FetchWindow returns the raw response body for the window. HTTP error
	// statuses are EXTERNAL AppErrors, transport failures UNAVAILABLE ones.
	FetchWindow(ctx context.Context, window entities.ExtractionWindow) ([]byte, error)
}

// PageArchive keeps a copy of raw response bodies.
type PageArchive interface {
	StorePage(ctx context.Context, meta entities.BatchMetadata, body []byte) error
}

// CheckpointStore remembers the end of the last fully processed window.
type CheckpointStore interface {
	// LoadCheckpoint returns a NOT_FOUND AppError when no checkpoint exists.
	LoadCheckpoint(ctx context.Context, key string) (entities.ExtractionWindow, error)
	SaveCheckpoint(ctx context.Context, key string, window entities.ExtractionWindow) error
}
