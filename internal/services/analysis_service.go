package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"energy-analytics/internal/catalog"
	"energy-analytics/internal/models"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

// AnalysisService runs the LCOE comparison and the supplementary dataset pipelines
// described by a catalog
type AnalysisService struct {
	catalog    *catalog.Catalog
	normalizer *Normalizer
	read       TableReader
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewAnalysisService creates a new analysis service. Catalog paths must already be
// rooted at the data directory.
func NewAnalysisService(cat *catalog.Catalog, normalizer *Normalizer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalysisService {
	return &AnalysisService{
		catalog:    cat,
		normalizer: normalizer,
		read:       normalizer.read,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Catalog returns the catalog the service runs against
func (s *AnalysisService) Catalog() *catalog.Catalog {
	return s.catalog
}

// Run executes every configured pipeline under a fresh run ID. Only the LCOE comparison
// can fail the run; supplementary sections whose sources are unusable are left nil
// and reported as warnings unless they are declared mandatory.
func (s *AnalysisService) Run(ctx context.Context) (*models.AnalysisResult, error) {
	result := &models.AnalysisResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	ctx = logging.WithRunID(ctx, result.RunID)

	s.logger.Info(ctx, "[ANALYSIS_START] Starting analysis run", logging.Fields{
		"stage": "INITIALIZATION",
	})

	lcoe, err := s.RunLCOE(ctx)
	if err != nil {
		s.metrics.RecordAnalysisRun("failed")
		s.logger.Error(ctx, "[ANALYSIS_FAILED] LCOE comparison failed", logging.Fields{"stage": "LCOE"}, err)
		return nil, fmt.Errorf("lcoe analysis: %w", err)
	}
	result.LCOE = lcoe
	result.Warnings = append(result.Warnings, lcoe.Warnings...)

	steps := []struct {
		name string
		run  func(context.Context) ([]models.Warning, error)
	}{
		{"eu_prices", func(ctx context.Context) ([]models.Warning, error) {
			section, w, err := s.RunEUPrices(ctx)
			result.EUPrices = section
			return w, err
		}},
		{"mortality", func(ctx context.Context) ([]models.Warning, error) {
			section, w, err := s.RunMortality(ctx)
			result.Mortality = section
			return w, err
		}},
		{"energy_mix", func(ctx context.Context) ([]models.Warning, error) {
			section, w, err := s.RunEnergyMix(ctx)
			result.EnergyMix = section
			return w, err
		}},
		{"sustainable", func(ctx context.Context) ([]models.Warning, error) {
			section, w, err := s.RunSustainable(ctx)
			result.Sustainable = section
			return w, err
		}},
	}
	for _, step := range steps {
		timer := s.metrics.NewTimer(nil)
		warnings, err := step.run(ctx)
		s.metrics.ProcessingTimeMS.WithLabelValues(step.name).Observe(float64(timer.ObserveDuration().Milliseconds()))
		if err != nil {
			s.metrics.RecordAnalysisRun("failed")
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
		result.Warnings = append(result.Warnings, warnings...)
	}

	result.FinishedAt = time.Now().UTC()
	s.metrics.RecordAnalysisRun("success")

	s.logger.Info(ctx, "[ANALYSIS_COMPLETE] Analysis run completed", logging.Fields{
		"record_count":     lcoe.RecordCount,
		"focus_mode":       lcoe.Focus.Mode,
		"focus_keys":       lcoe.Focus.Keys,
		"warning_count":    len(result.Warnings),
		"duration_seconds": result.FinishedAt.Sub(result.StartedAt).Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// RunLCOE compares the levelized cost of electricity across categories and, for the
// most active countries covering every category, per country
func (s *AnalysisService) RunLCOE(ctx context.Context) (*models.LCOEResult, error) {
	cfg := s.catalog.LCOE

	activity, activityReport, warnings, err := s.loadActivity(ctx, cfg.Activity)
	if err != nil {
		return nil, err
	}

	normalized, err := s.normalizer.Normalize(ctx, cfg.Sources)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, normalized.Warnings...)

	result := &models.LCOEResult{
		Records:     normalized.Records,
		RecordCount: len(normalized.Records),
		Activity:    activity,
		Sources:     append([]models.SourceReport{activityReport}, normalized.Sources...),
	}

	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("category_mean"))
	result.CategoryMeans = SortedCategorySummaries(MeanByCategory(normalized.Records))
	timer.ObserveDuration()
	if len(result.CategoryMeans) == 0 {
		warnings = append(warnings, s.emptyResult(ctx, "category_means", "no normalized records"))
	}

	timer = s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("complete_keys"))
	complete := KeysWithAllCategories(normalized.Records, cfg.RequiredCategories)
	timer.ObserveDuration()
	result.CompleteKeys = complete.Keys()

	focus, focusWarnings := SelectFocusKeys(complete, activity, cfg.TopN)
	result.Focus = focus
	for _, w := range focusWarnings {
		if w.Kind == models.WarnEmptyResult {
			s.metrics.RecordEmptyResult(w.Source)
		}
	}
	warnings = append(warnings, focusWarnings...)
	if focus.Mode == models.FocusAllQualifying {
		s.logger.Warn(ctx, "[LCOE_FOCUS_FALLBACK] Using all qualifying countries", logging.Fields{
			"requested":  cfg.TopN,
			"qualifying": complete.Len(),
		})
	}

	timer = s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("key_category_mean"))
	focusRecords := FilterKeys(normalized.Records, models.NewKeySet(focus.Keys...))
	result.FocusMeans = SortedKeyCategorySummaries(MeanByKeyAndCategory(focusRecords), focus.Keys)
	timer.ObserveDuration()
	if len(result.FocusMeans) == 0 && focus.Mode != models.FocusNone {
		warnings = append(warnings, s.emptyResult(ctx, "focus_means", "no records for the selected keys"))
	}

	result.Warnings = warnings

	s.logger.Info(ctx, "[LCOE_COMPLETE] LCOE comparison computed", logging.Fields{
		"record_count":  result.RecordCount,
		"categories":    len(result.CategoryMeans),
		"complete_keys": len(result.CompleteKeys),
		"focus_mode":    focus.Mode,
		"focus_keys":    focus.Keys,
	})

	return result, nil
}

// loadActivity reads the external activity metric. Duplicate keys keep their first value.
func (s *AnalysisService) loadActivity(ctx context.Context, spec models.SourceSpec) (map[string]float64, models.SourceReport, []models.Warning, error) {
	normalized, err := s.normalizer.Normalize(ctx, []models.SourceSpec{spec})
	if err != nil {
		return nil, models.SourceReport{}, nil, fmt.Errorf("activity table: %w", err)
	}

	activity := make(map[string]float64, len(normalized.Records))
	duplicates := 0
	for _, r := range normalized.Records {
		if _, ok := activity[r.Country]; ok {
			duplicates++
			continue
		}
		activity[r.Country] = r.Value
	}

	warnings := normalized.Warnings
	if duplicates > 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnDuplicateKey,
			Source:  spec.Name,
			Message: fmt.Sprintf("%d duplicate keys ignored, first occurrence kept", duplicates),
			Count:   duplicates,
		})
		s.logger.Warn(ctx, "[ACTIVITY_DUPLICATES] Duplicate activity keys ignored", logging.Fields{
			"source":     spec.Name,
			"duplicates": duplicates,
		})
	}

	var report models.SourceReport
	if len(normalized.Sources) > 0 {
		report = normalized.Sources[0]
	}
	return activity, report, warnings, nil
}

// RunEUPrices cleans the day-ahead price table and derives hourly averages, price gaps
// and candles. A nil result means the section is not configured or was skipped.
func (s *AnalysisService) RunEUPrices(ctx context.Context) (*models.EUPriceResult, []models.Warning, error) {
	spec := s.catalog.EUPrices
	if spec == nil {
		return nil, nil, nil
	}
	table, warnings, err := s.readSection(ctx, *spec)
	if table == nil || err != nil {
		return nil, warnings, err
	}

	points, stats, err := ParseEUPrices(table, spec.Decimal)
	if err != nil {
		w, ferr := s.sectionFailure(ctx, *spec, err)
		return nil, w, ferr
	}

	for reason, n := range stats.Dropped {
		s.metrics.RecordRowsDropped(spec.Name, reason, n)
	}
	s.metrics.RecordRowsRead(spec.Name, stats.RowsRead)
	if stats.UnmappedFlags > 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnUnmappedFlag,
			Source:  spec.Name,
			Message: fmt.Sprintf("%d unmapped green-energy flags treated as conventional", stats.UnmappedFlags),
			Count:   stats.UnmappedFlags,
		})
	}
	if dropped := stats.RowsRead - stats.RowsKept; dropped > 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnValueCoercion,
			Source:  spec.Name,
			Message: fmt.Sprintf("%d rows dropped: unparseable date, hour or price", dropped),
			Count:   dropped,
		})
	}

	result := &models.EUPriceResult{
		RowsRead:      stats.RowsRead,
		RowsKept:      stats.RowsKept,
		UnmappedFlags: stats.UnmappedFlags,
		Hourly:        HourlyAverages(points),
		Gaps:          PriceGaps(points),
		Candles:       Candles(points),
	}
	if len(result.Hourly) == 0 {
		warnings = append(warnings, s.emptyResult(ctx, "eu_hourly_prices", "no usable price rows"))
	}
	return result, warnings, nil
}

// RunMortality ranks energy sources by deaths per TWh
func (s *AnalysisService) RunMortality(ctx context.Context) (*models.MortalityResult, []models.Warning, error) {
	spec := s.catalog.Mortality
	if spec == nil {
		return nil, nil, nil
	}
	normalized, err := s.normalizer.Normalize(ctx, []models.SourceSpec{*spec})
	if err != nil {
		return nil, nil, err
	}
	report := normalized.Sources[0]
	if report.Status != models.SourceLoaded {
		return nil, normalized.Warnings, nil
	}

	result := &models.MortalityResult{
		Rates:  MortalityRates(normalized.Records),
		Source: report,
	}
	warnings := normalized.Warnings
	if len(result.Rates) == 0 {
		warnings = append(warnings, s.emptyResult(ctx, "mortality_rates", "no usable rate rows"))
	}
	return result, warnings, nil
}

// RunEnergyMix summarizes the global energy substitution table
func (s *AnalysisService) RunEnergyMix(ctx context.Context) (*models.EnergyMixResult, []models.Warning, error) {
	spec := s.catalog.Substitution
	if spec == nil {
		return nil, nil, nil
	}
	table, warnings, err := s.readSection(ctx, *spec)
	if table == nil || err != nil {
		return nil, warnings, err
	}

	result, err := EnergyMix(table)
	if err != nil {
		w, ferr := s.sectionFailure(ctx, *spec, err)
		return nil, w, ferr
	}
	if len(result.Series) == 0 {
		warnings = append(warnings, s.emptyResult(ctx, "energy_mix", "no rows with a year"))
	}
	return result, warnings, nil
}

// RunSustainable summarizes the sustainable energy panel
func (s *AnalysisService) RunSustainable(ctx context.Context) (*models.SustainableResult, []models.Warning, error) {
	spec := s.catalog.Sustainable
	if spec == nil {
		return nil, nil, nil
	}
	table, warnings, err := s.readSection(ctx, *spec)
	if table == nil || err != nil {
		return nil, warnings, err
	}

	result, err := SustainableEnergy(table)
	if err != nil {
		w, ferr := s.sectionFailure(ctx, *spec, err)
		return nil, w, ferr
	}
	if len(result.Latest) == 0 {
		warnings = append(warnings, s.emptyResult(ctx, "sustainable_latest", "no entity generated electricity in the latest year"))
	}
	return result, warnings, nil
}

// readSection reads a supplementary source. An unusable optional source returns a nil
// table and a warning; an unusable mandatory source returns the error.
func (s *AnalysisService) readSection(ctx context.Context, spec models.SourceSpec) (*models.RawTable, []models.Warning, error) {
	ctx = logging.WithSource(ctx, spec.Name)
	table, err := s.read(ctx, spec)
	if err != nil {
		w, ferr := s.sectionFailure(ctx, spec, err)
		return nil, w, ferr
	}
	s.metrics.RecordSource(string(models.SourceLoaded))
	return table, nil, nil
}

func (s *AnalysisService) sectionFailure(ctx context.Context, spec models.SourceSpec, err error) ([]models.Warning, error) {
	warning, recoverable := models.WarningFromError(err)
	if !recoverable || spec.Mandatory {
		return nil, err
	}
	if warning.Source == "" {
		warning.Source = spec.Name
	}
	s.metrics.RecordSource(string(models.SkipStatus(warning.Kind)))
	s.logger.Warn(ctx, "[SECTION_SKIPPED] Supplementary source skipped", logging.Fields{
		"source": spec.Name,
		"path":   spec.Path,
		"reason": err.Error(),
	})
	return []models.Warning{warning}, nil
}

func (s *AnalysisService) emptyResult(ctx context.Context, operation, detail string) models.Warning {
	s.metrics.RecordEmptyResult(operation)
	s.logger.Warn(ctx, "[EMPTY_RESULT] Aggregation produced no rows", logging.Fields{
		"operation": operation,
		"detail":    detail,
	})
	return models.EmptyResultWarning(operation, detail)
}
