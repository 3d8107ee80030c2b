package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"energy-analytics/internal/models"
	"energy-analytics/internal/reader"
	"energy-analytics/pkg/logging"
	"energy-analytics/pkg/metrics"
)

// TableReader loads a declared source into a RawTable
type TableReader func(ctx context.Context, spec models.SourceSpec) (*models.RawTable, error)

// Normalizer reshapes heterogeneous tabular sources into one long-format record list
type Normalizer struct {
	read    TableReader
	workers int
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewNormalizer creates a normalizer reading up to workers sources at a time
func NewNormalizer(workers int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Normalizer {
	if workers < 1 {
		workers = 1
	}
	return &Normalizer{
		read:    reader.Read,
		workers: workers,
		logger:  logger,
		metrics: metricsCollector,
	}
}

type sourceOutcome struct {
	records  []models.NormalizedRecord
	report   models.SourceReport
	warnings []models.Warning
}

// Normalize extracts the declared key and value columns of every source, tags each row
// with the source category and concatenates the extracts in declaration order.
//
// Optional sources that are missing or malformed are skipped and reported. The first
// mandatory source that is missing or malformed aborts the pass with its error.
func (n *Normalizer) Normalize(ctx context.Context, sources []models.SourceSpec) (*models.NormalizeResult, error) {
	timer := n.metrics.NewTimer(n.metrics.NormalizationDuration)

	n.logger.Info(ctx, "[NORMALIZE_START] Normalizing sources", logging.Fields{
		"source_count": len(sources),
		"workers":      n.workers,
		"stage":        "INITIALIZATION",
	})

	outcomes := make([]sourceOutcome, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i := range sources {
		i := i
		g.Go(func() error {
			out, err := n.normalizeSource(gctx, sources[i])
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &models.NormalizeResult{}
	for _, out := range outcomes {
		result.Records = append(result.Records, out.records...)
		result.Sources = append(result.Sources, out.report)
		result.Warnings = append(result.Warnings, out.warnings...)
	}
	result.Duration = timer.ObserveDuration()
	n.metrics.RecordsNormalized.Add(float64(len(result.Records)))

	n.logger.Info(ctx, "[NORMALIZE_COMPLETE] Normalization completed", logging.Fields{
		"record_count":     len(result.Records),
		"skipped_sources":  len(result.Skipped()),
		"warning_count":    len(result.Warnings),
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

// normalizeSource returns an error only when the pass must stop: a mandatory source
// failed, or the context was cancelled.
func (n *Normalizer) normalizeSource(ctx context.Context, spec models.SourceSpec) (sourceOutcome, error) {
	ctx = logging.WithSource(ctx, spec.Name)
	log := n.logger.WithFields(logging.Fields{
		"path":      spec.Path,
		"category":  spec.Category,
		"mandatory": spec.Mandatory,
	})
	report := models.SourceReport{
		Name:      spec.Name,
		Path:      spec.Path,
		Category:  spec.Category,
		Mandatory: spec.Mandatory,
	}

	table, err := n.read(ctx, spec)
	if err == nil {
		var records []models.NormalizedRecord
		var warnings []models.Warning
		records, warnings, err = n.extract(ctx, log, spec, table, &report)
		if err == nil {
			report.Status = models.SourceLoaded
			n.metrics.RecordSource(string(models.SourceLoaded))
			return sourceOutcome{records: records, report: report, warnings: warnings}, nil
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return sourceOutcome{}, ctxErr
	}

	warning, recoverable := models.WarningFromError(err)
	if !recoverable {
		return sourceOutcome{}, fmt.Errorf("source %s: %w", spec.Name, err)
	}
	if spec.Mandatory {
		log.Error(ctx, "[NORMALIZE_MANDATORY_FAILED] Mandatory source unusable", logging.Fields{
			"stage": "SOURCE_READ",
		}, err)
		n.metrics.RecordSource("failed")
		return sourceOutcome{}, err
	}

	report.Status = models.SkipStatus(warning.Kind)
	report.Error = err.Error()
	n.metrics.RecordSource(string(report.Status))

	log.Warn(ctx, "[NORMALIZE_SOURCE_SKIPPED] Optional source skipped", logging.Fields{
		"status": report.Status,
		"reason": err.Error(),
		"stage":  "SOURCE_READ",
	})

	return sourceOutcome{report: report, warnings: []models.Warning{warning}}, nil
}

// extract pulls (key, value) pairs positionally out of table
func (n *Normalizer) extract(ctx context.Context, log *logging.ContextLogger, spec models.SourceSpec, table *models.RawTable, report *models.SourceReport) ([]models.NormalizedRecord, []models.Warning, error) {
	keyCol, ok := spec.Key.Resolve(table.Header)
	if !ok {
		return nil, nil, &models.MalformedLayoutError{Source: spec.Name, Path: spec.Path, Reason: fmt.Sprintf("key column %s not found in header", spec.Key)}
	}
	valueCol, ok := spec.Value.Resolve(table.Header)
	if !ok {
		return nil, nil, &models.MalformedLayoutError{Source: spec.Name, Path: spec.Path, Reason: fmt.Sprintf("value column %s not found in header", spec.Value)}
	}

	report.RowsRead = len(table.Rows)
	report.DroppedByReason = make(map[models.CoercionFailure]int)
	records := make([]models.NormalizedRecord, 0, len(table.Rows))

	for i := range table.Rows {
		rawKey, _ := table.Cell(i, keyCol)
		key := strings.TrimSpace(rawKey)
		if key == "" {
			report.DroppedMissingKey++
			continue
		}

		rawValue, _ := table.Cell(i, valueCol)
		outcome := models.CoerceFloat(rawValue, spec.Decimal)
		if !outcome.OK() {
			report.DroppedByReason[outcome.Failure]++
			log.Debug(ctx, "[NORMALIZE_ROW_DROPPED] Value coercion failed", logging.Fields{
				"row":    i,
				"key":    key,
				"raw":    rawValue,
				"reason": outcome.Failure,
			})
			continue
		}

		records = append(records, models.NormalizedRecord{
			Country:  key,
			Category: spec.Category,
			Value:    outcome.Value,
			Source:   spec.Name,
		})
	}
	if len(report.DroppedByReason) == 0 {
		report.DroppedByReason = nil
	}
	report.RecordsKept = len(records)

	n.metrics.RecordRowsRead(spec.Name, report.RowsRead)
	n.metrics.RecordRowsDropped(spec.Name, "missing_key", report.DroppedMissingKey)

	var warnings []models.Warning
	if report.DroppedMissingKey > 0 {
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnMissingKey,
			Source:  spec.Name,
			Message: fmt.Sprintf("%d rows without a key dropped", report.DroppedMissingKey),
			Count:   report.DroppedMissingKey,
		})
	}
	for _, reason := range report.CoercionFailures() {
		count := report.DroppedByReason[reason]
		n.metrics.RecordRowsDropped(spec.Name, string(reason), count)
		warnings = append(warnings, models.Warning{
			Kind:    models.WarnValueCoercion,
			Source:  spec.Name,
			Message: fmt.Sprintf("%d rows dropped: value %s", count, reason),
			Count:   count,
		})
	}

	log.Info(ctx, "[NORMALIZE_SOURCE_LOADED] Source normalized", logging.Fields{
		"rows_read":    report.RowsRead,
		"records_kept": report.RecordsKept,
		"rows_dropped": report.Dropped(),
		"stage":        "SOURCE_EXTRACT",
	})

	return records, warnings, nil
}
