package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"energy-analytics/internal/models"
	"energy-analytics/internal/repository"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

var (
	// ErrNoSnapshot is returned before the first successful refresh
	ErrNoSnapshot = errors.New("no analysis snapshot available")
	// ErrPersistenceDisabled is returned by history lookups when no repository is configured
	ErrPersistenceDisabled = errors.New("persistence is disabled")
)

// SummaryService keeps the latest analysis result for the API and optionally persists every run
type SummaryService struct {
	analysis *AnalysisService
	repo     repository.AnalysisRepository
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector

	refreshMu sync.Mutex
	mu        sync.RWMutex
	latest    *models.AnalysisResult
}

// NewSummaryService creates a summary service. repo may be nil.
func NewSummaryService(analysis *AnalysisService, repo repository.AnalysisRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *SummaryService {
	return &SummaryService{
		analysis: analysis,
		repo:     repo,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// PersistenceEnabled reports whether runs are stored
func (s *SummaryService) PersistenceEnabled() bool {
	return s.repo != nil
}

// Refresh runs the full analysis and replaces the snapshot. Concurrent calls are serialized.
// A persistence failure is returned, but the new snapshot is kept.
func (s *SummaryService) Refresh(ctx context.Context) (*models.AnalysisResult, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	result, err := s.analysis.Run(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()

	if s.repo == nil {
		return result, nil
	}

	ctx = logging.WithRunID(ctx, result.RunID)
	if err := s.persist(ctx, result); err != nil {
		s.metrics.RecordDBError("persist_run")
		s.logger.Error(ctx, "[SUMMARY_PERSIST_FAILED] Failed to persist analysis run", logging.Fields{}, err)
		return result, fmt.Errorf("persist run %s: %w", result.RunID, err)
	}

	return result, nil
}

// Latest returns the current snapshot
func (s *SummaryService) Latest() (*models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, ErrNoSnapshot
	}
	return s.latest, nil
}

// History lists persisted runs newest first with the total count
func (s *SummaryService) History(ctx context.Context, limit, offset int) ([]*models.AnalysisRun, int, error) {
	if s.repo == nil {
		return nil, 0, ErrPersistenceDisabled
	}
	return s.repo.ListRuns(ctx, repository.RunFilter{Limit: limit, Offset: offset})
}

// RunDetail is a persisted run header with the summary tables stored alongside it
type RunDetail struct {
	Run           *models.AnalysisRun    `json:"run"`
	CategoryMeans []models.SummaryRecord `json:"category_means"`
	FocusMeans    []models.SummaryRecord `json:"focus_means"`
	FocusKeys     []models.SummaryRecord `json:"focus_keys"`
}

// LatestRun reads the most recent persisted run back from the repository
func (s *SummaryService) LatestRun(ctx context.Context) (*RunDetail, error) {
	if s.repo == nil {
		return nil, ErrPersistenceDisabled
	}

	run, err := s.repo.GetLatestRun(ctx)
	if err != nil {
		return nil, err
	}

	detail := &RunDetail{Run: run}
	for _, part := range []struct {
		kind models.SummaryKind
		dst  *[]models.SummaryRecord
	}{
		{models.SummaryCategoryMean, &detail.CategoryMeans},
		{models.SummaryKeyCategoryMean, &detail.FocusMeans},
		{models.SummaryFocusKeys, &detail.FocusKeys},
	} {
		rows, err := s.repo.GetSummaries(ctx, run.RunID, part.kind)
		if err != nil {
			return nil, err
		}
		*part.dst = rows
	}
	return detail, nil
}

// HealthCheck checks the repository when one is configured
func (s *SummaryService) HealthCheck(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}
	return s.repo.HealthCheck(ctx)
}

// persist stores the run header, the normalized LCOE records and the three summary tables
// as one unit
func (s *SummaryService) persist(ctx context.Context, result *models.AnalysisResult) error {
	timer := time.Now()
	run := RunHeader(result, len(s.analysis.Catalog().Sources()))

	var records []models.NormalizedRecord
	var summaries []repository.SummarySet
	if lcoe := result.LCOE; lcoe != nil {
		records = lcoe.Records

		focus := make([]models.SummaryRecord, 0, len(lcoe.Focus.Keys))
		for _, k := range lcoe.Focus.Keys {
			focus = append(focus, models.SummaryRecord{Key: k, Metric: lcoe.Activity[k]})
		}
		summaries = []repository.SummarySet{
			{Kind: models.SummaryCategoryMean, Rows: lcoe.CategoryMeans},
			{Kind: models.SummaryKeyCategoryMean, Rows: lcoe.FocusMeans},
			{Kind: models.SummaryFocusKeys, Rows: focus},
		}
	}

	if err := s.repo.PersistRun(ctx, run, records, summaries); err != nil {
		return err
	}

	s.logger.Info(ctx, "[SUMMARY_PERSISTED] Analysis run persisted", logging.Fields{
		"record_count": run.RecordCount,
		"duration_ms":  time.Since(timer).Milliseconds(),
	})
	return nil
}

// RunHeader condenses a result into its persisted header. Skipped sources are counted
// from the missing and malformed warnings.
func RunHeader(result *models.AnalysisResult, sourceCount int) *models.AnalysisRun {
	run := &models.AnalysisRun{
		RunID:        result.RunID,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
		SourceCount:  sourceCount,
		WarningCount: len(result.Warnings),
	}
	if result.LCOE != nil {
		run.RecordCount = result.LCOE.RecordCount
	}
	for _, w := range result.Warnings {
		switch w.Kind {
		case models.WarnMissingSource, models.WarnMalformedLayout, models.WarnUnreadable:
			run.SkippedSources++
		}
	}
	return run
}
