package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/providers"
	"github.com/zatekoja/trafficpipeline/internal/domain/repositories"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

// Defaults matching the analytics API's rate limits.
const (
	DefaultWindowWidth = 6 * time.Hour
	DefaultMinDelay    = 7 * time.Second
	DefaultMaxDelay    = 12 * time.Second
)

// LoopConfig configures an ExtractionLoop.
type LoopConfig struct {
	Width         time.Duration
	MinDelay      time.Duration
	MaxDelay      time.Duration
	CheckpointKey string
	Resume        bool
}

// LoopSummary counts what a Run did.
type LoopSummary struct {
	Windows       int
	Indexed       int
	FetchFailed   int
	PayloadErrors int
	Cancelled     int
	Records       int
	Documents     int
	Failed        int
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ExtractionLoop walks an overall time range in fixed-width windows, one at
// a time: fetch, archive, enrich and index, then advance and wait.
type ExtractionLoop struct {
	source      providers.AnalyticsSource
	runner      *PipelineRunner
	archive     providers.PageArchive
	checkpoints providers.CheckpointStore
	runs        repositories.WindowRunRepository
	metrics     providers.PipelineMetrics
	batch       entities.BatchMetadata
	config      LoopConfig
	logger      zerolog.Logger

	sleep  Sleeper
	random func() float64
	now    func() time.Time
}

// NewExtractionLoop creates a new extraction loop. batch carries the
// run-wide provenance; its Window and BatchTime are set per window.
func NewExtractionLoop(
	source providers.AnalyticsSource,
	runner *PipelineRunner,
	batch entities.BatchMetadata,
	config LoopConfig,
	logger zerolog.Logger,
) *ExtractionLoop {
	if config.Width <= 0 {
		config.Width = DefaultWindowWidth
	}
	if config.MinDelay <= 0 && config.MaxDelay <= 0 {
		config.MinDelay = DefaultMinDelay
		config.MaxDelay = DefaultMaxDelay
	}
	if config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay
	}
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}

	return &ExtractionLoop{
		source: source,
		runner: runner,
		batch:  batch,
		config: config,
		logger: logger.With().Str("component", "extraction_loop").Str("batch", batch.BatchName).Logger(),
		sleep:  sleepContext,
		random: rand.Float64,
		now:    time.Now,
	}
}

// SetArchive sets the raw page archive
func (l *ExtractionLoop) SetArchive(archive providers.PageArchive) {
	l.archive = archive
}

// SetCheckpointStore sets the checkpoint store used for resuming
func (l *ExtractionLoop) SetCheckpointStore(store providers.CheckpointStore) {
	l.checkpoints = store
}

// SetRunRepository sets the window run log
func (l *ExtractionLoop) SetRunRepository(runs repositories.WindowRunRepository) {
	l.runs = runs
}

// SetMetrics sets the metrics sink
func (l *ExtractionLoop) SetMetrics(metrics providers.PipelineMetrics) {
	l.metrics = metrics
}

// SetSleeper replaces the wait between windows.
func (l *ExtractionLoop) SetSleeper(sleep Sleeper) {
	l.sleep = sleep
}

// SetRandom replaces the [0,1) source used to pick the delay.
func (l *ExtractionLoop) SetRandom(random func() float64) {
	l.random = random
}

// SetClock replaces time.Now.
func (l *ExtractionLoop) SetClock(now func() time.Time) {
	l.now = now
}

// BatchID returns the id stamped on every document of this run.
func (l *ExtractionLoop) BatchID() string {
	return l.batch.BatchID
}

// Run processes windows from start until a window would begin after end.
// Both bounds are inclusive. A failed window is logged and skipped; only
// context cancellation ends the run early. A window interrupted by
// cancellation is logged as cancelled and never checkpointed, so a resumed
// run fetches it again.
func (l *ExtractionLoop) Run(ctx context.Context, start, end time.Time) (LoopSummary, error) {
	var summary LoopSummary

	if end.Before(start) {
		return summary, apperrors.NewValidationError(
			fmt.Sprintf("range end %s is before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339)), nil)
	}

	window := entities.NewExtractionWindow(start, l.config.Width)
	if l.config.Resume {
		l.logPriorWindows(ctx)
		window = l.resumeFrom(ctx, window)
	}

	l.logger.Info().
		Time("range_start", start).
		Time("range_end", end).
		Dur("width", l.config.Width).
		Str("batch_id", l.batch.BatchID).
		Msg("Starting extraction")

	for !window.Start.After(end) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := l.processWindow(ctx, window, &summary); err != nil {
			return summary, err
		}

		next := window.Next(l.config.Width)
		if next.Start.After(end) {
			break
		}

		delay := l.nextDelay()
		l.logger.Debug().Dur("delay", delay).Time("next_window_start", next.Start).Msg("Waiting before next window")
		if err := l.sleep(ctx, delay); err != nil {
			return summary, err
		}
		window = next
	}

	l.logger.Info().
		Int("windows", summary.Windows).
		Int("indexed_windows", summary.Indexed).
		Int("fetch_failed", summary.FetchFailed).
		Int("payload_errors", summary.PayloadErrors).
		Int("documents", summary.Documents).
		Msg("Extraction finished")

	return summary, nil
}

// processWindow handles one window. It only returns an error when ctx was
// cancelled while the window was in flight.
func (l *ExtractionLoop) processWindow(ctx context.Context, window entities.ExtractionWindow, summary *LoopSummary) error {
	ctx, span := otel.Tracer("trafficpipeline/extraction").Start(ctx, "ExtractionLoop.processWindow")
	defer span.End()
	span.SetAttributes(
		attribute.String("window.start", window.Start.UTC().Format(time.RFC3339)),
		attribute.String("window.end", window.End.UTC().Format(time.RFC3339)),
	)

	started := l.now()
	summary.Windows++

	meta := l.batch
	meta.Window = window
	meta.BatchTime = started

	run := &entities.WindowRun{
		ID:          uuid.NewString(),
		BatchID:     meta.BatchID,
		BatchName:   meta.BatchName,
		WindowStart: window.Start,
		WindowEnd:   window.End,
		CreatedAt:   started,
	}

	logger := l.logger.With().
		Time("window_start", window.Start).
		Time("window_end", window.End).
		Logger()

	body, err := l.source.FetchWindow(ctx, window)
	if err != nil {
		if interrupted(ctx, err) {
			return l.cancelWindow(ctx, run, started, err, summary)
		}
		summary.FetchFailed++
		run.Status = entities.WindowStatusFetchFailed
		run.Error = err.Error()
		span.SetStatus(codes.Error, "fetch failed")
		span.RecordError(err)
		logger.Error().Err(err).Str("error_type", string(apperrors.TypeOf(err))).Msg("Failed to fetch window, skipping")
		l.finishWindow(ctx, run, started)
		return nil
	}

	if l.archive != nil {
		if err := l.archive.StorePage(ctx, meta, body); err != nil {
			logger.Warn().Err(err).Msg("Failed to archive raw page")
		}
	}

	result, err := l.runner.ProcessPage(ctx, body, meta)
	run.Records = result.Records
	run.Indexed = result.Indexed
	run.Failed = result.Failed
	summary.Records += result.Records
	summary.Documents += result.Indexed
	summary.Failed += result.Failed

	if err != nil {
		if interrupted(ctx, err) {
			return l.cancelWindow(ctx, run, started, err, summary)
		}
		summary.PayloadErrors++
		run.Status = entities.WindowStatusPayloadError
		run.Error = err.Error()
		span.SetStatus(codes.Error, "payload error")
		span.RecordError(err)
		logger.Error().Err(err).Msg("Failed to process page, skipping window")
		l.finishWindow(ctx, run, started)
		return nil
	}

	summary.Indexed++
	run.Status = entities.WindowStatusIndexed
	logger.Info().
		Int("records", result.Records).
		Int("indexed", result.Indexed).
		Int("failed", result.Failed).
		Int("degraded", result.Degraded).
		Msg("Window indexed")
	l.finishWindow(ctx, run, started)
	return nil
}

// cancelWindow logs an interrupted window without checkpointing it and
// returns the cancellation cause.
func (l *ExtractionLoop) cancelWindow(ctx context.Context, run *entities.WindowRun, started time.Time, err error, summary *LoopSummary) error {
	summary.Cancelled++
	run.Status = entities.WindowStatusCancelled
	if cause := ctx.Err(); cause != nil {
		err = cause
	}
	run.Error = err.Error()

	l.logger.Warn().
		Time("window_start", run.WindowStart).
		Int("indexed", run.Indexed).
		Msg("Window interrupted, leaving it for the next run")
	l.recordWindow(ctx, run, started)
	return err
}

// finishWindow records the run and advances the checkpoint. A completed
// window counts as handled whatever its status, so a resumed run never
// refetches it.
func (l *ExtractionLoop) finishWindow(ctx context.Context, run *entities.WindowRun, started time.Time) {
	l.recordWindow(ctx, run, started)

	if l.checkpoints != nil && l.config.CheckpointKey != "" {
		window := entities.ExtractionWindow{Start: run.WindowStart, End: run.WindowEnd}
		if err := l.checkpoints.SaveCheckpoint(context.WithoutCancel(ctx), l.config.CheckpointKey, window); err != nil {
			l.logger.Warn().Err(err).Time("window_start", run.WindowStart).Msg("Failed to save checkpoint")
		}
	}
}

func (l *ExtractionLoop) recordWindow(ctx context.Context, run *entities.WindowRun, started time.Time) {
	elapsed := l.now().Sub(started)
	run.DurationMs = elapsed.Milliseconds()

	// bookkeeping outlives a cancelled window
	bookkeeping := context.WithoutCancel(ctx)

	if l.metrics != nil {
		l.metrics.RecordWindow(bookkeeping, run.Status, elapsed)
	}

	if l.runs != nil {
		if err := l.runs.Record(bookkeeping, run); err != nil {
			l.logger.Warn().Err(err).Time("window_start", run.WindowStart).Msg("Failed to record window run")
		}
	}
}

func (l *ExtractionLoop) resumeFrom(ctx context.Context, first entities.ExtractionWindow) entities.ExtractionWindow {
	if l.checkpoints == nil || l.config.CheckpointKey == "" {
		return first
	}

	last, err := l.checkpoints.LoadCheckpoint(ctx, l.config.CheckpointKey)
	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			l.logger.Warn().Err(err).Msg("Failed to load checkpoint, starting from range start")
		}
		return first
	}
	if !last.End.After(first.Start) {
		return first
	}

	l.logger.Info().Time("checkpoint_end", last.End).Msg("Resuming from checkpoint")
	return entities.NewExtractionWindow(last.End, l.config.Width)
}

// logPriorWindows summarizes what earlier runs of this batch recorded in the
// run log, keeping the latest outcome per window.
func (l *ExtractionLoop) logPriorWindows(ctx context.Context) {
	if l.runs == nil {
		return
	}

	runs, err := l.runs.ListByBatchName(ctx, l.batch.BatchName)
	if err != nil {
		l.logger.Warn().Err(err).Msg("Failed to read window run log")
		return
	}
	if len(runs) == 0 {
		return
	}

	latest := make(map[time.Time]*entities.WindowRun, len(runs))
	for _, run := range runs {
		latest[run.WindowStart.UTC()] = run
	}
	byStatus := make(map[string]int)
	for _, run := range latest {
		byStatus[run.Status]++
	}

	l.logger.Info().
		Int("windows", len(latest)).
		Int(entities.WindowStatusIndexed, byStatus[entities.WindowStatusIndexed]).
		Int(entities.WindowStatusFetchFailed, byStatus[entities.WindowStatusFetchFailed]).
		Int(entities.WindowStatusPayloadError, byStatus[entities.WindowStatusPayloadError]).
		Int(entities.WindowStatusCancelled, byStatus[entities.WindowStatusCancelled]).
		Msg("Earlier runs of this batch")
}

func (l *ExtractionLoop) nextDelay() time.Duration {
	spread := l.config.MaxDelay - l.config.MinDelay
	if spread <= 0 {
		return l.config.MinDelay
	}
	return l.config.MinDelay + time.Duration(l.random()*float64(spread))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// interrupted reports whether err came from ctx being done rather than from
// the window itself.
func interrupted(ctx context.Context, err error) bool {
	return IsCancellation(err) || ctx.Err() != nil
}

// IsCancellation reports whether err ended a Run because its context was done.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
