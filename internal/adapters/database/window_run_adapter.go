package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/zatekoja/trafficpipeline/internal/domain/entities"
	"github.com/zatekoja/trafficpipeline/internal/domain/repositories"
	"github.com/zatekoja/trafficpipeline/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/trafficpipeline/pkg/errors"
)

const windowRunsTable = "extraction_window_runs"

const createWindowRunsTable = `
CREATE TABLE IF NOT EXISTS extraction_window_runs (
	id           UUID PRIMARY KEY,
	batch_id     TEXT NOT NULL,
	batch_name   TEXT NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	window_end   TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL,
	records      INTEGER NOT NULL DEFAULT 0,
	indexed      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_extraction_window_runs_batch ON extraction_window_runs (batch_name, window_start);
`

// WindowRunAdapter implements the WindowRunRepository interface
type WindowRunAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewWindowRunAdapter creates a new window run adapter
func NewWindowRunAdapter(client *postgres.Client) *WindowRunAdapter {
	return &WindowRunAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

var _ repositories.WindowRunRepository = (*WindowRunAdapter)(nil)

// EnsureSchema creates the run log table if it does not exist.
func (a *WindowRunAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, createWindowRunsTable); err != nil {
		return apperrors.NewInternalError("failed to create window run table", err)
	}
	return nil
}

// Record inserts one window outcome
func (a *WindowRunAdapter) Record(ctx context.Context, run *entities.WindowRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	record := goqu.Record{
		"id":           run.ID,
		"batch_id":     run.BatchID,
		"batch_name":   run.BatchName,
		"window_start": run.WindowStart.UTC(),
		"window_end":   run.WindowEnd.UTC(),
		"status":       run.Status,
		"records":      run.Records,
		"indexed":      run.Indexed,
		"failed":       run.Failed,
		"error":        sql.NullString{String: run.Error, Valid: run.Error != ""},
		"duration_ms":  run.DurationMs,
		"created_at":   run.CreatedAt.UTC(),
	}

	query, args, err := a.db.Insert(windowRunsTable).Prepared(true).Rows(record).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to record window run", err)
	}
	return nil
}

// ListByBatchName returns every recorded window of a batch across all of its
// runs, ordered by window start and then by record time.
func (a *WindowRunAdapter) ListByBatchName(ctx context.Context, batchName string) ([]*entities.WindowRun, error) {
	query, args, err := a.db.Select(
		"id", "batch_id", "batch_name", "window_start", "window_end", "status",
		"records", "indexed", "failed", "error", "duration_ms", "created_at",
	).From(windowRunsTable).
		Where(goqu.Ex{"batch_name": batchName}).
		Order(goqu.I("window_start").Asc(), goqu.I("created_at").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list window runs", err)
	}
	defer rows.Close()

	var runs []*entities.WindowRun
	for rows.Next() {
		run := &entities.WindowRun{}
		var runErr sql.NullString
		if err := rows.Scan(
			&run.ID,
			&run.BatchID,
			&run.BatchName,
			&run.WindowStart,
			&run.WindowEnd,
			&run.Status,
			&run.Records,
			&run.Indexed,
			&run.Failed,
			&runErr,
			&run.DurationMs,
			&run.CreatedAt,
		); err != nil {
			return nil, apperrors.NewInternalError("failed to scan window run", err)
		}
		run.Error = runErr.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate window runs", err)
	}
	return runs, nil
}
