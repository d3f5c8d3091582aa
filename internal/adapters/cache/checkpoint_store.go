package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
)

// CheckpointKey returns the cache key holding the checkpoint of a batch.
func CheckpointKey(batchName string) string {
	return fmt.Sprintf("traffic:checkpoint:v1:%s", batchName)
}

type checkpointPayload struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	SavedAt     time.Time `json:"saved_at"`
}

// RedisCheckpointStore keeps the last handled extraction window in the cache.
type RedisCheckpointStore struct {
	cache providers.CacheProvider
}

// NewRedisCheckpointStore creates a checkpoint store on top of a cache provider.
func NewRedisCheckpointStore(cache providers.CacheProvider) *RedisCheckpointStore {
	return &RedisCheckpointStore{cache: cache}
}

// LoadCheckpoint returns the saved window, or the cache's NOT_FOUND error.
func (s *RedisCheckpointStore) LoadCheckpoint(ctx context.Context, key string) (entities.ExtractionWindow, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		return entities.ExtractionWindow{}, err
	}

	var payload checkpointPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return entities.ExtractionWindow{}, fmt.Errorf("failed to decode checkpoint %s: %w", key, err)
	}
	return entities.ExtractionWindow{Start: payload.WindowStart, End: payload.WindowEnd}, nil
}

// SaveCheckpoint overwrites the checkpoint without expiry.
func (s *RedisCheckpointStore) SaveCheckpoint(ctx context.Context, key string, window entities.ExtractionWindow) error {
	raw, err := json.Marshal(checkpointPayload{
		WindowStart: window.Start.UTC(),
		WindowEnd:   window.End.UTC(),
		SavedAt:     time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return s.cache.Set(ctx, key, raw, 0)
}
