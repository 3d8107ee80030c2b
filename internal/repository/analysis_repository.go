package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"energy-analytics/internal/models"
	"energy-analytics/pkg/database"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

//go:embed schema.sql
var schemaSQL string

var dropStatements = []string{
	"DROP TABLE IF EXISTS summaries",
	"DROP TABLE IF EXISTS normalized_records",
	"DROP TABLE IF EXISTS analysis_runs",
}

// AnalysisRepository persists analysis runs and their summaries
type AnalysisRepository interface {
	// Run operations
	PersistRun(ctx context.Context, run *models.AnalysisRun, records []models.NormalizedRecord, summaries []SummarySet) error
	GetLatestRun(ctx context.Context) (*models.AnalysisRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.AnalysisRun, int, error)

	// Summary operations
	GetSummaries(ctx context.Context, runID string, kind models.SummaryKind) ([]models.SummaryRecord, error)

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// SummarySet is one kind of summary rows stored with a run
type SummarySet struct {
	Kind models.SummaryKind
	Rows []models.SummaryRecord
}

// RunFilter defines pagination for listing runs
type RunFilter struct {
	Limit  int
	Offset int
}

// analysisRepository implements AnalysisRepository
type analysisRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalysisRepository creates a new analysis repository
func NewAnalysisRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) AnalysisRepository {
	return &analysisRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Migrate creates the schema if it does not exist
func Migrate(ctx context.Context, db *database.DB) error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, "migrate", stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes every table created by Migrate
func DropSchema(ctx context.Context, db *database.DB) error {
	for _, stmt := range dropStatements {
		if _, err := db.ExecContext(ctx, "drop_schema", stmt); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}
	return nil
}

// GetLatestRun returns the most recently started run
func (r *analysisRepository) GetLatestRun(ctx context.Context) (*models.AnalysisRun, error) {
	query := `
		SELECT run_id, started_at, finished_at,
		       record_count, source_count, skipped_sources, warning_count
		FROM analysis_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT 1
	`

	var run models.AnalysisRun
	err := r.db.GetContext(ctx, "get_latest_run", &run, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "analysis_run", ID: "latest"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	return &run, nil
}

// ListRuns returns runs newest first with the total count
func (r *analysisRepository) ListRuns(ctx context.Context, filter RunFilter) ([]*models.AnalysisRun, int, error) {
	var totalCount int
	if err := r.db.GetContext(ctx, "count_runs", &totalCount, "SELECT COUNT(*) FROM analysis_runs"); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := `
		SELECT run_id, started_at, finished_at,
		       record_count, source_count, skipped_sources, warning_count
		FROM analysis_runs
		ORDER BY started_at DESC, run_id DESC
		LIMIT ? OFFSET ?
	`

	runs := []*models.AnalysisRun{}
	if err := r.db.SelectContext(ctx, "list_runs", &runs, query, filter.Limit, filter.Offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, totalCount, nil
}

// PersistRun stores the run header, its normalized records and every summary set in one
// transaction. Nothing of the run is visible unless all of it was written.
func (r *analysisRepository) PersistRun(ctx context.Context, run *models.AnalysisRun, records []models.NormalizedRecord, summaries []SummarySet) error {
	timer := time.Now()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}
	if err := insertRecords(ctx, tx, run.RunID, records); err != nil {
		return err
	}
	summaryCount := 0
	for _, set := range summaries {
		if err := insertSummaries(ctx, tx, run.RunID, set); err != nil {
			return err
		}
		summaryCount += len(set.Rows)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if len(records) > 0 {
		r.metrics.PersistBatchSize.Observe(float64(len(records)))
	}
	r.logger.Debug(ctx, "[REPO_PERSIST_RUN] Run persisted", logging.Fields{
		"run_id":        run.RunID,
		"record_count":  len(records),
		"summary_count": summaryCount,
		"duration_ms":   time.Since(timer).Milliseconds(),
	})

	return nil
}

func insertRun(ctx context.Context, tx *sqlx.Tx, run *models.AnalysisRun) error {
	query := tx.Rebind(`
		INSERT INTO analysis_runs (
			run_id, started_at, finished_at,
			record_count, source_count, skipped_sources, warning_count
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := tx.ExecContext(ctx, query,
		run.RunID,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.RecordCount,
		run.SourceCount,
		run.SkippedSources,
		run.WarningCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sqlx.Tx, runID string, records []models.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, tx.Rebind(`
		INSERT INTO normalized_records (run_id, seq, country, category, value, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, runID, i, rec.Country, string(rec.Category), rec.Value, rec.Source); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}
	return nil
}

// insertSummaries keeps the row order of set through the seq column
func insertSummaries(ctx context.Context, tx *sqlx.Tx, runID string, set SummarySet) error {
	if len(set.Rows) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, tx.Rebind(`
		INSERT INTO summaries (run_id, kind, seq, group_key, category, metric)
		VALUES (?, ?, ?, ?, ?, ?)
	`))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, row := range set.Rows {
		if _, err := stmt.ExecContext(ctx, runID, string(set.Kind), i, row.Key, string(row.Category), row.Metric); err != nil {
			return fmt.Errorf("failed to insert %s summary: %w", set.Kind, err)
		}
	}
	return nil
}

// GetSummaries returns the summary rows of one kind in stored order
func (r *analysisRepository) GetSummaries(ctx context.Context, runID string, kind models.SummaryKind) ([]models.SummaryRecord, error) {
	query := `
		SELECT group_key, category, metric
		FROM summaries
		WHERE run_id = ? AND kind = ?
		ORDER BY seq
	`

	rows := []models.SummaryRecord{}
	if err := r.db.SelectContext(ctx, "get_summaries", &rows, query, runID, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to get summaries: %w", err)
	}

	return rows, nil
}

// HealthCheck performs a repository health check
func (r *analysisRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
