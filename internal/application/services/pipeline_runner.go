package services

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
	"github.com/zatekoja/trafficpipeline/pkg/urlparse"
)

// Document id modes.
const (
	DocumentIDServer = "server"
	DocumentIDStable = "stable"
)

// Batch provenance keys attached to every document.
const (
	KeyBatchName         = "log_pull_batch_name"
	KeyBatchDatetime     = "log_pull_batch_datetime"
	KeyBatchID           = "log_pull_batch_id"
	KeyWindowStart       = "log_pull_window_start"
	KeyWindowEnd         = "log_pull_window_end"
	KeyAccountTag        = "accountTag"
	KeyZoneTag           = "zoneTag"
	KeyCount             = "count"
	KeyAvgSampleInterval = "avg_sampleInterval"
	KeyAvgTypename       = "avg_typename"
	KeySumEdgeBytes      = "sum_edgeResponseBytes"
	KeySumVisits         = "sum_visits"
	KeySumTypename       = "sum_typename"
)

const (
	batchTimeLayout = "2006-01-02T15:04:05Z"
	partitionLayout = "2006.01.02"
)

// PageResult summarizes one processed page.
type PageResult struct {
	Records    int
	Indexed    int
	Failed     int
	Degraded   int
	Partitions map[string]int
}

// PipelineRunner enriches every series item of a page and hands the
// resulting documents to the index writer.
type PipelineRunner struct {
	enricher *RecordEnricher
	writer   providers.IndexWriter
	metrics  providers.PipelineMetrics
	idMode   string
	logger   zerolog.Logger
}

// NewPipelineRunner creates a new pipeline runner
func NewPipelineRunner(enricher *RecordEnricher, writer providers.IndexWriter, logger zerolog.Logger) *PipelineRunner {
	return &PipelineRunner{
		enricher: enricher,
		writer:   writer,
		idMode:   DocumentIDServer,
		logger:   logger.With().Str("component", "pipeline_runner").Logger(),
	}
}

// SetMetrics sets the metrics sink
func (r *PipelineRunner) SetMetrics(metrics providers.PipelineMetrics) {
	r.metrics = metrics
}

// SetDocumentIDMode selects server-assigned ("server") or content-derived
// ("stable") document ids. Unknown modes fall back to server-assigned.
func (r *PipelineRunner) SetDocumentIDMode(mode string) {
	if mode == DocumentIDStable {
		r.idMode = DocumentIDStable
		return
	}
	r.idMode = DocumentIDServer
}

// ProcessPage decodes an analytics response body and indexes one document
// per series item. A body without data.viewer.zones[0].series yields a
// PAYLOAD error and no documents. Index failures are counted, not returned.
func (r *PipelineRunner) ProcessPage(ctx context.Context, body []byte, meta entities.BatchMetadata) (PageResult, error) {
	result := PageResult{Partitions: make(map[string]int)}

	var envelope entities.AnalyticsEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return result, apperrors.NewPayloadError("decode analytics page", err)
	}

	if len(envelope.Errors) > 0 {
		r.logger.Warn().
			Strs("errors", graphQLMessages(envelope.Errors)).
			Time("window_start", meta.Window.Start).
			Msg("Analytics API returned errors")
	}

	series, ok := envelope.Series()
	if !ok {
		msg := "analytics page has no data.viewer.zones[0].series"
		if len(envelope.Errors) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, strings.Join(graphQLMessages(envelope.Errors), "; "))
		}
		return result, apperrors.NewPayloadError(msg, nil)
	}

	batchTime := meta.BatchTime.UTC().Format(batchTimeLayout)

	for i := range series {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := &series[i]
		result.Records++

		dims := item.Dimensions
		if dims == nil {
			dims = map[string]any{}
		}

		doc, err := r.enricher.Enrich(ctx, dims)
		if err != nil {
			result.Degraded++
			if r.metrics != nil {
				r.metrics.RecordLookupFailure(ctx, "enrich")
			}
		}

		doc[KeyCount] = item.Count
		doc[KeyAvgSampleInterval] = item.Avg.SampleInterval
		doc[KeyAvgTypename] = item.Avg.Typename
		doc[KeySumEdgeBytes] = item.Sum.EdgeResponseBytes
		doc[KeySumVisits] = item.Sum.Visits
		doc[KeySumTypename] = item.Sum.Typename

		doc[KeyBatchName] = meta.BatchName
		doc[KeyBatchDatetime] = batchTime
		doc[KeyBatchID] = meta.BatchID
		doc[KeyWindowStart] = meta.Window.Start.UTC().Format(time.RFC3339)
		doc[KeyWindowEnd] = meta.Window.End.UTC().Format(time.RFC3339)
		doc[KeyAccountTag] = meta.AccountTag
		doc[KeyZoneTag] = meta.ZoneTag

		partition := r.partitionFor(doc, meta)

		id := ""
		if r.idMode == DocumentIDStable {
			id = StableDocumentID(doc)
		}

		if err := r.writer.Index(ctx, partition, doc, id); err != nil {
			result.Failed++
			r.logger.Error().
				Err(err).
				Str("partition", partition).
				Str("batch", meta.BatchName).
				Msg("Failed to index document")
			continue
		}
		result.Indexed++
		result.Partitions[partition]++
	}

	if r.metrics != nil {
		for partition, n := range result.Partitions {
			r.metrics.RecordDocuments(ctx, partition, n, 0)
		}
		if result.Failed > 0 {
			r.metrics.RecordDocuments(ctx, "", 0, result.Failed)
		}
	}

	return result, nil
}

// PartitionName returns prefix followed by the date of t as YYYY.MM.DD, in
// t's own location. A record stamped 00:30+02:00 lands in that day's
// partition, not the previous UTC day's.
func PartitionName(prefix string, t time.Time) string {
	return prefix + t.Format(partitionLayout)
}

func (r *PipelineRunner) partitionFor(doc entities.Document, meta entities.BatchMetadata) string {
	raw := stringValue(doc[entities.FieldDatetime])
	eventTime, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		r.logger.Warn().
			Str("datetime", raw).
			Time("window_start", meta.Window.Start).
			Msg("Unparseable record datetime, partitioning by window start")
		eventTime = meta.Window.Start.UTC()
	}
	return PartitionName(meta.IndexPrefix, eventTime)
}

// StableDocumentID derives a document id from the request origin and path,
// the event time, the client address and the user agent. Re-indexing the
// same record under this id overwrites instead of duplicating.
func StableDocumentID(doc entities.Document) string {
	host := strings.ToLower(stringValue(doc[entities.FieldClientRequestHost]))
	path := stringValue(doc[entities.FieldClientRequestPath])
	parts := []string{
		urlparse.PathHash("https", host, "443", path),
		stringValue(doc[entities.FieldDatetime]),
		stringValue(doc[entities.FieldClientIP]),
		stringValue(doc[entities.FieldUserAgent]),
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func graphQLMessages(errs []entities.GraphQLError) []string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		messages = append(messages, e.Message)
	}
	return messages
}
