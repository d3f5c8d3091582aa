package providers

import (
	"context"
	"time"
)

// PipelineMetrics receives pipeline counters. Implementations must tolerate
// being called once per record.
type PipelineMetrics interface {
	RecordWindow(ctx context.Context, status string, duration time.Duration)
	RecordDocuments(ctx context.Context, partition string, indexed, failed int)
	RecordLookupFailure(ctx context.Context, step string)
}
