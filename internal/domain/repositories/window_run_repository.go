package repositories

import (
	"context"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
)

// WindowRunRepository persists the outcome of each extraction window.
type WindowRunRepository interface {
	Record(ctx context.Context, run *entities.WindowRun) error
	ListByBatchName(ctx context.Context, batchName string) ([]*entities.WindowRun, error)
}
